//go:build !tinygo

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hwmonitor-go/log"
	"hwmonitor-go/services/button"
	"hwmonitor-go/services/config"
	"hwmonitor-go/services/device"
	"hwmonitor-go/services/display"
	"hwmonitor-go/services/ota"
	"hwmonitor-go/services/statusmqtt"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	board := flag.String("board", "sim", "embedded board profile (sim, pi, st7789)")
	path := flag.String("config", "", "optional YAML overlay")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*board, *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}

	lg, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	lg = lg.With(zap.String("device", cfg.Device.Name))
	lg.Info("starting", zap.String("version", version), zap.String("board", *board))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Platform
	// --------------------

	p, closeAll, err := hostPlatform(cfg, lg)
	if err != nil {
		lg.Fatal("platform setup failed", zap.Error(err))
	}
	defer closeAll()

	if cfg.MQTT.Broker != "" {
		client, err := statusmqtt.Connect(statusmqtt.Options{
			Broker:   cfg.MQTT.Broker,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Prefix,
		}, lg.Named("mqtt"))
		if err != nil {
			lg.Warn("mqtt unavailable, status mirror disabled", zap.Error(err))
		} else {
			defer client.Disconnect(250)
			p.Publisher = client
		}
	}

	if err := device.Run(ctx, cfg, p, version); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("device stopped", zap.Error(err))
		os.Exit(1)
	}
}

// hostPlatform builds the hardware named by the board profile. The
// returned func releases everything that was opened.
func hostPlatform(cfg config.Config, lg *zap.Logger) (device.Platform, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				lg.Warn("close failed", zap.Error(err))
			}
		}
	}

	clk := timex.System{}
	p := device.Platform{
		Clock:   clk,
		Log:     lg,
		Updater: ota.NewFileUpdater(cfg.OTA.FirmwarePath, lg.Named("ota")),
	}

	// ---- radio ----
	switch cfg.WiFi.Backend {
	case "nmcli":
		p.Link = wifi.NewNmcli(cfg.WiFi.Interface, wifi.ExecRunner, lg.Named("nmcli"))
	default:
		sim := wifi.NewSim(clk)
		for _, n := range cfg.WiFi.SimNetworks {
			sim.AddNetwork(n.SSID, n.Passphrase, n.RSSI)
		}
		p.Link = sim
	}

	// ---- button ----
	switch cfg.Button.Backend {
	case "gpiocdev":
		pin, closePin, err := openButton(cfg.Button.Chip, cfg.Button.Line)
		if err != nil {
			closeAll()
			return p, nil, err
		}
		closers = append(closers, closePin)
		p.Pin = pin
	default:
		pin := button.NewSimPin(cfg.Button.ActiveLow)
		go keyboardButton(os.Stdin, pin, cfg.Button, lg.Named("keys"))
		p.Pin = pin
	}

	// ---- display ----
	switch cfg.Display.Backend {
	case "framebuffer":
		fb := display.NewFramebuffer(int16(cfg.Display.Width), int16(cfg.Display.Height))
		if cfg.Display.Device != "" {
			f, err := os.OpenFile(cfg.Display.Device, os.O_WRONLY, 0)
			if err != nil {
				closeAll()
				return p, nil, fmt.Errorf("open framebuffer: %w", err)
			}
			closers = append(closers, f.Close)
			fb.Out = f
		}
		p.Display = display.NewRaster(fb)
	default:
		p.Display = display.NewConsole(lg.Named("screen"))
	}

	// ---- flash ----
	if cfg.Device.EEPROMPath != "" {
		f, err := storage.OpenFile(cfg.Device.EEPROMPath, storage.EEPROMSize)
		if err != nil {
			closeAll()
			return p, nil, err
		}
		closers = append(closers, f.Close)
		p.Flash = f
	} else {
		p.Flash = storage.NewMem(storage.EEPROMSize)
	}

	return p, closeAll, nil
}

// keyboardButton drives the simulated button from stdin: s, m, l press
// for a short, medium or long hold and x sends a multi-click burst.
func keyboardButton(f *os.File, pin *button.SimPin, bc config.ButtonConfig, lg *zap.Logger) {
	press := func(hold time.Duration) {
		pin.Set(!bc.ActiveLow)
		time.Sleep(hold)
		pin.Set(bc.ActiveLow)
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "s":
			press(bc.Debounce * 4)
		case "m":
			press(bc.Medium + bc.Debounce*4)
		case "l":
			press(bc.Long + bc.Debounce*4)
		case "x":
			for i := 0; i < bc.MultiClickCount; i++ {
				press(bc.Debounce * 4)
				time.Sleep(bc.Debounce * 4)
			}
		case "":
		default:
			lg.Info("keys: s=short m=medium l=long x=multi-click")
		}
	}
}
