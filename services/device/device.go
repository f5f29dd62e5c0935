// services/device/device.go
package device

import (
	"context"
	"errors"
	"net/http"

	"hwmonitor-go/bus"
	"hwmonitor-go/errcode"
	"hwmonitor-go/services/button"
	"hwmonitor-go/services/config"
	"hwmonitor-go/services/controller"
	"hwmonitor-go/services/display"
	"hwmonitor-go/services/menu"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/ota"
	"hwmonitor-go/services/portal"
	"hwmonitor-go/services/statusmqtt"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/supervisor"
	"hwmonitor-go/services/telemetry"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/types"
	"hwmonitor-go/x/strx"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

// Platform is the board-specific hardware a device runs on. Everything
// above it is shared between the host and TinyGo builds.
type Platform struct {
	Link    wifi.Link
	Pin     button.Pin
	Display display.Display
	Flash   storage.Backend
	Updater ota.Updater
	Clock   timex.Clock
	Log     *zap.Logger

	// Publisher mirrors bus status to MQTT; nil disables the mirror.
	Publisher statusmqtt.Publisher
	// HTTP serves the server probe and telemetry fetches; nil uses a
	// default client.
	HTTP *http.Client
	// Reset performs a hardware reset. When nil a restart request
	// rebuilds the device in place.
	Reset func()
}

// Run boots the device and keeps it running until ctx is cancelled. A
// restart request rebuilds every component over the same platform.
func Run(ctx context.Context, cfg config.Config, p Platform, version string) error {
	for boot := 1; ; boot++ {
		err := runOnce(ctx, cfg, p, version)
		if errcode.Of(err) != errcode.Restart {
			return err
		}
		p.Log.Info("restarting", zap.Int("boot", boot), zap.Error(err))
		if p.Reset != nil {
			p.Reset()
			return err
		}
	}
}

func runOnce(ctx context.Context, cfg config.Config, p Platform, version string) error {
	log := p.Log
	clk := p.Clock

	ee, err := storage.Open(p.Flash, storage.EEPROMSize)
	if err != nil {
		return err
	}
	configs := storage.NewConfigStore(ee, log.Named("config"))
	settings := storage.NewSettingsStore(ee, log.Named("settings"))

	probe := netcheck.New(p.Link, clk, cfg.Telemetry.Path, log.Named("netcheck"))
	if p.HTTP != nil {
		probe.HTTP = p.HTTP
	}

	pcfg := portal.DefaultConfig()
	pcfg.APSSID = cfg.AP.SSID
	pcfg.APPassphrase = cfg.AP.Passphrase
	pcfg.Listen = cfg.AP.Listen
	pcfg.ServerTimeout = cfg.Portal.ServerTimeout
	pcfg.WiFiTimeout = cfg.Portal.WiFiTimeout
	pcfg.ConnectTimeout = cfg.WiFi.ConnectTimeout
	pcfg.ProbeTimeout = cfg.Portal.ProbeTimeout
	prt := portal.New(pcfg, p.Link, probe, configs, p.Display, clk, log.Named("portal"))

	sup := supervisor.New(supervisor.Config{
		WiFiBudget:     cfg.Supervisor.WiFiBudget,
		ServerBudget:   cfg.Supervisor.ServerBudget,
		Debounce:       cfg.Supervisor.Debounce,
		ReconnectBase:  cfg.Supervisor.ReconnectBase,
		ReconnectStep:  cfg.Supervisor.ReconnectStep,
		ReconnectLimit: cfg.Supervisor.ReconnectLimit,
	}, p.Link, probe, p.Display, clk, log.Named("supervisor"))

	booted := clk.Now()
	mnu := menu.New(p.Display, settings, func() menu.NetInfo {
		return menu.NetInfo{
			SSID:   p.Link.SSID(),
			IP:     p.Link.LocalIP(),
			RSSI:   p.Link.RSSI(),
			Uptime: clk.Now().Sub(booted),
		}
	}, clk, log.Named("menu"))

	upd := ota.New(cfg.OTA.Listen, version, p.Updater, p.Display, clk, log.Named("ota"))
	defer upd.Close()

	btn := button.New(p.Pin, clk, button.Config{
		Debounce:         cfg.Button.Debounce,
		Medium:           cfg.Button.Medium,
		Long:             cfg.Button.Long,
		MultiClickWindow: cfg.Button.MultiClickWindow,
		MultiClickCount:  cfg.Button.MultiClickCount,
		ActiveLow:        cfg.Button.ActiveLow,
	})

	conn := bus.NewBus(16, "+", "#").NewConnection("device")
	defer conn.Disconnect()
	config.Publish(conn, cfg)
	conn.Publish(conn.NewMessage(bus.T("status", "device"), types.DeviceInfo{
		Name:    cfg.Device.Name,
		Version: version,
		TS:      clk.Now().UnixMilli(),
	}, true))

	deps := controller.Deps{
		ConfigStore:   configs,
		SettingsStore: settings,
		Link:          p.Link,
		Probe:         probe,
		Button:        btn,
		Display:       p.Display,
		Portal:        prt,
		Supervisor:    sup,
		Menu:          mnu,
		OTA:           upd,
		NewFetcher: func(url string) controller.Fetcher {
			c := telemetry.New(url, cfg.Telemetry.Timeout, log.Named("telemetry"))
			if p.HTTP != nil {
				c.HTTP = p.HTTP
			}
			return c
		},
		Bus:   conn,
		Clock: clk,
		Log:   log.Named("controller"),
	}
	if p.Publisher != nil {
		m := statusmqtt.New(p.Publisher, conn, strx.Coalesce(cfg.MQTT.Prefix, cfg.Device.Name), log.Named("mqtt"))
		defer m.Close()
		deps.Mirror = m
	}

	ccfg := controller.DefaultConfig()
	ccfg.TelemetryPath = cfg.Telemetry.Path
	ccfg.ConnectTimeout = cfg.WiFi.ConnectTimeout
	ccfg.ScreenWidth = int16(cfg.Display.Width)

	err = controller.New(ccfg, deps).Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("device stopped")
	}
	return err
}
