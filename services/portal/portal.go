// services/portal/portal.go
package portal

import (
	"context"
	"net/http"
	"time"

	"hwmonitor-go/services/display"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/webserver"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/strx"
	"hwmonitor-go/x/timex"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Step is the capture stage the portal is waiting on.
type Step int

const (
	StepServer Step = iota
	StepWiFi
	StepValidate
	StepSave
)

func (s Step) String() string {
	switch s {
	case StepServer:
		return "server"
	case StepWiFi:
		return "wifi"
	case StepValidate:
		return "validate"
	case StepSave:
		return "save"
	default:
		return "unknown"
	}
}

// Outcome is how a portal session ended. Every outcome is followed by a
// restart; only OutcomeSaved and OutcomeReset have touched storage.
type Outcome int

const (
	OutcomeSaved Outcome = iota
	OutcomeTimedOut
	OutcomeCancelled
	OutcomeReset
	OutcomeSaveFailed
	OutcomeNoSSID
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeReset:
		return "reset"
	case OutcomeSaveFailed:
		return "save_failed"
	case OutcomeNoSSID:
		return "no_ssid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Config struct {
	APSSID       string
	APPassphrase string
	Listen       string

	ServerTimeout  time.Duration // server step
	WiFiTimeout    time.Duration // wifi step
	ConnectTimeout time.Duration // one station attempt
	ProbeTimeout   time.Duration // validation GET

	ConfirmDelay time.Duration
	NoticeDelay  time.Duration
	LoopPause    time.Duration
}

func DefaultConfig() Config {
	return Config{
		APSSID:         "ESP8266-Config",
		APPassphrase:   "12345678",
		Listen:         ":80",
		ServerTimeout:  5 * time.Minute,
		WiFiTimeout:    3 * time.Minute,
		ConnectTimeout: 15 * time.Second,
		ProbeTimeout:   5 * time.Second,
		ConfirmDelay:   3 * time.Second,
		NoticeDelay:    2 * time.Second,
		LoopPause:      10 * time.Millisecond,
	}
}

// Saver persists the captured record.
type Saver interface {
	Save(storage.ConfigRecord) error
}

type wifiRequest struct {
	ssid     string
	password string
}

// Portal runs one provisioning session: soft AP, server step, WiFi step,
// validation and save. All handlers run on the caller's goroutine.
type Portal struct {
	cfg   Config
	link  wifi.Link
	probe *netcheck.Validator
	store Saver
	disp  display.Display
	clock timex.Clock
	log   *zap.Logger

	web    *webserver.Server
	router *mux.Router

	poll func()

	// session
	rec       storage.ConfigRecord
	step      Step
	pending   *wifiRequest
	wifiErr   string
	cancelled bool
	reset     bool
	stop      context.CancelFunc
}

func New(cfg Config, link wifi.Link, probe *netcheck.Validator, store Saver,
	disp display.Display, clock timex.Clock, log *zap.Logger) *Portal {
	p := &Portal{
		cfg:    cfg,
		link:   link,
		probe:  probe,
		store:  store,
		disp:   disp,
		clock:  clock,
		log:    log,
		router: mux.NewRouter(),
	}
	p.web = webserver.New(log.Named("web"), 8, 0)
	p.web.Handle("/", p.router)
	p.routes()
	return p
}

// SetPoll installs the hook run on every wait iteration (button polling).
func (p *Portal) SetPoll(fn func()) { p.poll = fn }

// Handler exposes the portal routes.
func (p *Portal) Handler() http.Handler { return p.router }

// Addr is the web server's bound address while a session is running.
func (p *Portal) Addr() string { return p.web.Addr() }

func (p *Portal) Step() Step { return p.step }

// Record returns the record captured so far.
func (p *Portal) Record() storage.ConfigRecord { return p.rec }

// Cancel ends the session at the next wait iteration; an in-flight WiFi
// attempt is abandoned.
func (p *Portal) Cancel() {
	p.cancelled = true
	if p.stop != nil {
		p.stop()
	}
}

func (p *Portal) service() {
	p.web.HandleClient()
	if p.poll != nil {
		p.poll()
	}
}

// Run starts a session seeded with cur. from selects the first step;
// StepWiFi is honoured only when cur already has a server.
func (p *Portal) Run(ctx context.Context, cur storage.ConfigRecord, from Step) Outcome {
	ctx, p.stop = context.WithCancel(ctx)
	defer func() {
		p.stop()
		p.stop = nil
	}()

	p.rec = cur
	p.step = from
	if p.step != StepWiFi || !cur.HasServer() {
		p.step = StepServer
	}
	p.pending, p.wifiErr = nil, ""
	p.cancelled, p.reset = false, false

	p.log.Info("portal started", zap.Stringer("step", p.step), zap.String("ap", p.cfg.APSSID))

	if err := p.link.Begin(wifi.AccessPoint(p.cfg.APSSID, p.cfg.APPassphrase)); err != nil {
		p.log.Error("soft ap failed", zap.Error(err))
		p.notice("AP Failed!", err.Error())
		return OutcomeFailed
	}
	defer p.link.StopAP()

	if err := p.web.Start(p.cfg.Listen); err != nil {
		p.log.Error("web server failed", zap.Error(err))
		p.notice("Portal Failed!", err.Error())
		return OutcomeFailed
	}
	defer p.web.Stop()

	prevYield := p.probe.Yield
	p.probe.Yield = p.service
	defer func() { p.probe.Yield = prevYield }()

	if p.step == StepServer {
		p.showServerStep()
		if o, done := p.wait(ctx, StepServer, p.cfg.ServerTimeout); done {
			return o
		}
	}

	p.showWiFiStep()
	if o, done := p.wait(ctx, StepWiFi, p.cfg.WiFiTimeout); done {
		return o
	}

	p.validate(ctx)
	return p.save()
}

// wait services the web server and button until the session leaves step.
func (p *Portal) wait(ctx context.Context, step Step, timeout time.Duration) (Outcome, bool) {
	start := p.clock.Now()
	for p.step == step {
		p.service()

		switch {
		case p.reset:
			p.notice("Reset!", "Rebooting...")
			return OutcomeReset, true
		case p.cancelled || ctx.Err() != nil:
			p.log.Info("portal cancelled", zap.Stringer("step", step))
			p.notice("Cancelled", "Rebooting...")
			return OutcomeCancelled, true
		}

		if step == StepWiFi && p.pending != nil {
			p.tryWiFi(ctx)
			continue
		}

		if timex.Since(p.clock, start) >= timeout {
			p.log.Warn("portal timeout", zap.Stringer("step", step), zap.Duration("after", timeout))
			p.notice("Timeout!", "Rebooting...")
			return OutcomeTimedOut, true
		}
		p.clock.Sleep(p.cfg.LoopPause)
	}
	return 0, false
}

func (p *Portal) tryWiFi(ctx context.Context) {
	req := *p.pending
	p.pending = nil

	p.disp.ShowStatus("Connecting", req.ssid, "Please wait...")
	if !p.probe.TestWiFi(ctx, req.ssid, req.password, p.cfg.ConnectTimeout) {
		if p.cancelled {
			return
		}
		p.wifiErr = "Could not connect to " + req.ssid
		p.disp.ShowStatus("WiFi Failed!", req.ssid, "Try again")
		return
	}

	p.rec.SSID = p.link.SSID()
	p.rec.Password = p.choosePassword(req.password)
	p.wifiErr = ""
	p.step = StepValidate
	p.log.Info("wifi captured",
		zap.String("ssid", p.rec.SSID),
		zap.Int("password_len", len(p.rec.Password)),
		zap.String("ip", p.link.LocalIP()))
}

// choosePassword prefers what the radio reports it associated with, then
// the submitted value; either must be printable. Otherwise the record keeps
// no password and the radio's own copy is relied on.
func (p *Portal) choosePassword(submitted string) string {
	if rec, ok := p.link.(wifi.CredentialRecoverer); ok {
		if pw, ok := rec.StoredPassphrase(); ok && strx.IsPrintable(pw) {
			return pw
		}
	}
	if strx.IsPrintable(submitted) {
		return submitted
	}
	p.log.Warn("no printable password recovered, relying on radio credentials")
	return ""
}

// validate probes the server once. The result is advisory.
func (p *Portal) validate(ctx context.Context) {
	p.step = StepValidate
	p.disp.ShowStatus("Validating", p.rec.ServerAddress)
	if p.probe.TestServer(ctx, p.rec.ServerAddress, p.rec.ServerPort, p.cfg.ProbeTimeout) {
		p.log.Info("server reachable", zap.String("url", p.probe.URL(p.rec.ServerAddress, p.rec.ServerPort)))
		return
	}
	p.log.Warn("server not reachable, saving anyway",
		zap.String("url", p.probe.URL(p.rec.ServerAddress, p.rec.ServerPort)))
	p.notice("Server?", "Not reachable", "Saving anyway")
}

func (p *Portal) save() Outcome {
	p.step = StepSave
	if p.rec.SSID == "" {
		p.log.Error("no ssid captured, nothing saved")
		p.notice("No WiFi SSID", "Rebooting...")
		return OutcomeNoSSID
	}
	if err := p.store.Save(p.rec); err != nil {
		p.log.Error("save failed", zap.Error(err))
		p.notice("Save failed", "Rebooting...")
		return OutcomeSaveFailed
	}
	p.disp.ShowStatus("Saved!", p.rec.ServerURL(""), p.rec.SSID, "Rebooting...")
	p.clock.Sleep(p.cfg.ConfirmDelay)
	return OutcomeSaved
}

func (p *Portal) notice(title string, lines ...string) {
	p.disp.ShowStatus(title, lines...)
	p.clock.Sleep(p.cfg.NoticeDelay)
}

func (p *Portal) showServerStep() {
	p.disp.ShowStatus("Setup 1/2",
		"WiFi: "+p.cfg.APSSID,
		"Pass: "+p.cfg.APPassphrase,
		"http://"+p.link.LocalIP(),
		"Hold: Cancel")
}

func (p *Portal) showWiFiStep() {
	p.disp.ShowStatus("Setup 2/2",
		"Server: "+p.rec.ServerAddress,
		"WiFi: "+p.cfg.APSSID,
		"http://"+p.link.LocalIP()+"/wifi",
		"Hold: Cancel")
}
