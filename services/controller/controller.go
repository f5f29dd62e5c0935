// services/controller/controller.go
package controller

import (
	"context"
	"fmt"
	"time"

	"hwmonitor-go/bus"
	"hwmonitor-go/errcode"
	"hwmonitor-go/services/button"
	"hwmonitor-go/services/display"
	"hwmonitor-go/services/menu"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/ota"
	"hwmonitor-go/services/portal"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/supervisor"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/types"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// Fetcher retrieves one telemetry sample.
type Fetcher interface {
	Fetch(ctx context.Context) (types.SystemData, error)
}

// Drainer is serviced once per tick (e.g. the MQTT status mirror).
type Drainer interface {
	Drain()
}

type Config struct {
	TelemetryPath  string
	ConnectTimeout time.Duration // boot association
	LoopPause      time.Duration
	ResetPause     time.Duration
	RestartPause   time.Duration
	ScreenWidth    int16
}

func DefaultConfig() Config {
	return Config{
		TelemetryPath:  "/system-info",
		ConnectTimeout: 15 * time.Second,
		LoopPause:      10 * time.Millisecond,
		ResetPause:     2 * time.Second,
		RestartPause:   1500 * time.Millisecond,
		ScreenWidth:    128,
	}
}

// Deps wires the controller to the rest of the device. Bus and Mirror are
// optional.
type Deps struct {
	ConfigStore   *storage.ConfigStore
	SettingsStore *storage.SettingsStore
	Link          wifi.Link
	Probe         *netcheck.Validator
	Button        *button.Classifier
	Display       display.Display
	Portal        *portal.Portal
	Supervisor    *supervisor.Supervisor
	Menu          *menu.Menu
	OTA           *ota.Mode
	NewFetcher    func(url string) Fetcher
	Bus           *bus.Connection
	Mirror        Drainer
	Clock         timex.Clock
	Log           *zap.Logger
}

// -----------------------------------------------------------------------------
// Controller
// -----------------------------------------------------------------------------

// Controller owns the operating mode. Everything runs on the goroutine
// calling Run (or Boot and Tick).
type Controller struct {
	cfg Config
	d   Deps
	log *zap.Logger

	mode       types.Mode
	rec        storage.ConfigRecord
	settings   storage.SettingsRecord
	portalFrom portal.Step

	fetch     Fetcher
	lastFetch time.Time
	force     bool
	serverUp  types.Link
	status    types.ConnectivityStatus

	queue    []types.ButtonEvent
	menuHold uint32 // press that opened the menu
	restart  string
}

func New(cfg Config, d Deps) *Controller {
	c := &Controller{
		cfg:      cfg,
		d:        d,
		log:      d.Log,
		serverUp: types.LinkUnknown,
	}
	d.Portal.SetPoll(c.pollButton)
	d.Probe.Yield = c.pollButton
	d.Button.SetHandler(c.enqueue)
	return c
}

func (c *Controller) Mode() types.Mode                 { return c.mode }
func (c *Controller) Record() storage.ConfigRecord     { return c.rec }
func (c *Controller) Settings() storage.SettingsRecord { return c.settings }
func (c *Controller) Fetcher() Fetcher                 { return c.fetch }

// Boot loads both records and picks the first mode. It never fails on a
// bad record: an invalid config means provisioning.
func (c *Controller) Boot(ctx context.Context) error {
	c.settings = c.d.SettingsStore.LoadOrReset()
	c.log.Info("settings",
		zap.Duration("refresh", c.settings.RefreshInterval()),
		zap.Uint8("display_mode", c.settings.DisplayMode))

	rec, err := c.d.ConfigStore.Load()
	if err != nil {
		c.log.Warn("no valid config, provisioning", zap.Error(err))
		c.rec.Clear()
		c.portalFrom = portal.StepServer
		c.setMode(types.ModeProvisioning)
		return nil
	}
	c.rec = rec
	c.log.Info("config loaded",
		zap.String("server", rec.ServerAddress),
		zap.Uint16("port", rec.ServerPort),
		zap.String("ssid", rec.SSID))

	c.d.Display.ShowStatus("Connecting", rec.SSID, "Please wait...")
	if c.d.Probe.TestWiFi(ctx, rec.SSID, rec.Password, c.cfg.ConnectTimeout) {
		c.d.Display.ShowStatus("WiFi OK!", "IP: "+c.d.Link.LocalIP())
	} else {
		c.log.Warn("boot association failed, supervisor will retry", zap.String("ssid", rec.SSID))
		c.d.Display.ShowStatus("WiFi Failed!", rec.SSID, "Retrying later")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.d.Supervisor.SetCredentials(rec.SSID, rec.Password)
	c.fetch = c.d.NewFetcher(rec.ServerURL(c.cfg.TelemetryPath))
	c.force = true
	c.setMode(types.ModeNormal)
	return nil
}

// Tick runs one pass of the control loop. It returns an errcode.Restart
// error when the device must reboot.
func (c *Controller) Tick(ctx context.Context) error {
	c.pollButton()
	for len(c.queue) > 0 && c.restart == "" {
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.dispatch(ctx, ev)
	}

	if c.restart == "" {
		switch c.mode {
		case types.ModeProvisioning:
			c.provision(ctx)
		case types.ModeMenu:
			c.onMenu(ctx, c.d.Menu.Update())
		case types.ModeOtaWeb:
			if c.d.OTA.Handle() {
				c.clock().Sleep(c.cfg.RestartPause)
				c.requestRestart("firmware updated")
			}
		case types.ModeNormal:
			c.normal(ctx)
		}
	}

	if c.d.Mirror != nil {
		c.d.Mirror.Drain()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.restart != "" {
		return errcode.New(errcode.Restart, "controller", c.restart)
	}
	return nil
}

// Run boots and then ticks until ctx ends or a restart is requested.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Boot(ctx); err != nil {
		return err
	}
	for {
		if err := c.Tick(ctx); err != nil {
			return err
		}
		c.clock().Sleep(c.cfg.LoopPause)
	}
}

func (c *Controller) clock() timex.Clock { return c.d.Clock }

// -----------------------------------------------------------------------------
// Button routing
// -----------------------------------------------------------------------------

func (c *Controller) pollButton() { c.d.Button.Poll() }

// enqueue defers events to the next Tick, except the provisioning cancel
// which must reach the portal while its session is running.
func (c *Controller) enqueue(ev types.ButtonEvent) {
	if c.mode == types.ModeProvisioning {
		if ev.Kind == types.ButtonLong {
			c.log.Info("provisioning cancelled by button")
			c.d.Portal.Cancel()
		}
		return
	}
	c.queue = append(c.queue, ev)
}

func (c *Controller) dispatch(ctx context.Context, ev types.ButtonEvent) {
	c.log.Debug("button", zap.Stringer("kind", ev.Kind), zap.Stringer("mode", c.mode))
	switch c.mode {
	case types.ModeNormal:
		switch ev.Kind {
		case types.ButtonShort:
			c.force = true
		case types.ButtonMedium:
			c.menuHold = ev.Hold
			c.d.Menu.Enter(c.settings)
			c.setMode(types.ModeMenu)
		case types.ButtonMultiClick:
			c.startOTA()
		}
	case types.ModeMenu:
		switch ev.Kind {
		case types.ButtonShort, types.ButtonMultiClick:
			// The classifier reports the click that completes a burst as
			// a multi-click instead of a short.
			c.onMenu(ctx, c.d.Menu.Next())
		case types.ButtonMedium:
			c.onMenu(ctx, c.d.Menu.Select())
		case types.ButtonLong:
			if ev.Hold == c.menuHold {
				c.log.Debug("long press from the opening hold ignored")
				return
			}
			c.onMenu(ctx, c.d.Menu.Back())
		}
	case types.ModeOtaWeb:
		if ev.Kind == types.ButtonMedium || ev.Kind == types.ButtonLong {
			c.d.OTA.Stop()
			c.toNormal()
		}
	}
}

// -----------------------------------------------------------------------------
// Mode handlers
// -----------------------------------------------------------------------------

func (c *Controller) provision(ctx context.Context) {
	out := c.d.Portal.Run(ctx, c.rec, c.portalFrom)
	c.log.Info("provisioning finished", zap.Stringer("outcome", out))
	c.requestRestart("provisioning " + out.String())
}

func (c *Controller) onMenu(ctx context.Context, act menu.Action) {
	if act == menu.ActionNone {
		return
	}
	c.settings = c.d.Menu.Settings()
	c.log.Info("menu action", zap.Stringer("action", act))

	switch act {
	case menu.ActionExit:
		c.toNormal()
	case menu.ActionServerConfig:
		c.portalFrom = portal.StepServer
		c.setMode(types.ModeProvisioning)
	case menu.ActionWiFiConfig:
		c.portalFrom = portal.StepWiFi
		c.setMode(types.ModeProvisioning)
	case menu.ActionOTA:
		c.toNormal()
		c.startOTA()
	case menu.ActionResetServer:
		c.resetAndRestart("server reset", (*storage.ConfigRecord).ClearServer)
	case menu.ActionResetWiFi:
		c.resetAndRestart("wifi reset", (*storage.ConfigRecord).ClearWiFi)
	case menu.ActionResetAll:
		c.resetAndRestart("factory reset", (*storage.ConfigRecord).Clear)
	case menu.ActionRestart:
		c.clock().Sleep(c.cfg.RestartPause)
		c.requestRestart("menu restart")
	}
}

func (c *Controller) resetAndRestart(reason string, clear func(*storage.ConfigRecord)) {
	c.clock().Sleep(c.cfg.ResetPause)
	clear(&c.rec)
	if err := c.d.ConfigStore.Save(c.rec); err != nil {
		c.log.Error("reset not saved", zap.String("reason", reason), zap.Error(err))
	}
	c.requestRestart(reason)
}

func (c *Controller) startOTA() {
	if c.d.Link.Status() != wifi.StatusConnected {
		c.log.Warn("ota needs wifi")
		c.d.Display.ShowStatus("OTA", "WiFi required")
		c.force = true
		return
	}
	if err := c.d.OTA.Start(c.d.Link.LocalIP()); err != nil {
		c.d.Display.ShowStatus("OTA Failed!", err.Error())
		c.force = true
		return
	}
	c.setMode(types.ModeOtaWeb)
}

func (c *Controller) toNormal() {
	c.force = true
	c.setMode(types.ModeNormal)
}

func (c *Controller) normal(ctx context.Context) {
	defer c.publishConnectivity()

	if c.d.Supervisor.Check(ctx) {
		c.fallback("WiFi lost")
		return
	}
	if c.d.Link.Status() != wifi.StatusConnected || c.fetch == nil {
		return
	}
	now := c.clock().Now()
	if !c.force && !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.settings.RefreshInterval() {
		return
	}
	c.force = false
	c.lastFetch = now

	data, err := c.fetch.Fetch(ctx)
	if err != nil {
		c.serverUp = types.LinkDown
		c.log.Warn("fetch failed", zap.Error(err), zap.Int("failures", c.d.Supervisor.ServerFailures()))
		if c.d.Supervisor.ReportServerFailure() {
			c.fallback("Server lost")
			return
		}
		c.d.Display.ShowStatus("Server Error",
			c.rec.ServerAddress,
			fmt.Sprintf("Failures: %d", c.d.Supervisor.ServerFailures()))
		return
	}
	c.serverUp = types.LinkUp
	c.d.Supervisor.ReportServerSuccess()
	display.Dashboard{
		Width:   c.cfg.ScreenWidth,
		Compact: c.settings.DisplayMode == storage.DisplayCompact,
	}.Render(c.d.Display, data)
}

// fallback wipes the configuration so the next boot provisions again.
func (c *Controller) fallback(reason string) {
	c.log.Error("connectivity budget spent, clearing config", zap.String("reason", reason))
	c.d.Display.ShowStatus(reason, "Config cleared", "Restarting...")
	c.rec.Clear()
	if err := c.d.ConfigStore.Save(c.rec); err != nil {
		c.log.Error("clear not saved", zap.Error(err))
	}
	c.clock().Sleep(c.cfg.ResetPause)
	c.requestRestart("fallback: " + reason)
}

func (c *Controller) requestRestart(reason string) {
	if c.restart == "" {
		c.log.Warn("restart requested", zap.String("reason", reason))
		c.restart = reason
	}
}

// -----------------------------------------------------------------------------
// Status publication
// -----------------------------------------------------------------------------

func (c *Controller) setMode(m types.Mode) {
	if m != c.mode {
		c.log.Info("mode", zap.Stringer("from", c.mode), zap.Stringer("to", m))
	}
	c.mode = m
	if c.d.Bus != nil {
		c.d.Bus.Publish(c.d.Bus.NewMessage(bus.T("mode"),
			types.ModeStatus{Mode: m.String(), TS: timex.NowMs(c.clock())}, true))
	}
}

func (c *Controller) publishConnectivity() {
	st := types.ConnectivityStatus{
		WiFi:           types.LinkDown,
		Server:         c.serverUp,
		WiFiFailures:   c.d.Supervisor.WiFiFailures(),
		ServerFailures: c.d.Supervisor.ServerFailures(),
	}
	if c.d.Link.Status() == wifi.StatusConnected {
		st.WiFi = types.LinkUp
		st.IP = c.d.Link.LocalIP()
	}
	prev := c.status
	prev.TS = 0
	if st == prev {
		return
	}
	st.TS = timex.NowMs(c.clock())
	c.status = st
	if c.d.Bus != nil {
		c.d.Bus.Publish(c.d.Bus.NewMessage(bus.T("status", "connectivity"), st, true))
	}
}
