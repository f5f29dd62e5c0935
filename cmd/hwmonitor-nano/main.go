//go:build nano_rp2040 && ninafw

// cmd/hwmonitor-nano/main.go
//
// Firmware for an Arduino Nano RP2040 Connect (NINA WiFi module) driving an
// ST7789 panel on SPI0 and a push button on D6.
package main

import (
	"context"
	"machine"
	"time"

	"hwmonitor-go/log"
	"hwmonitor-go/services/button"
	"hwmonitor-go/services/config"
	"hwmonitor-go/services/device"
	"hwmonitor-go/services/display"
	"hwmonitor-go/services/ota"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/netlink/probe"
)

var version = "dev"

const (
	pinDC     = machine.D2
	pinCS     = machine.D3
	pinRST    = machine.D4
	pinBL     = machine.D5
	pinButton = machine.D6
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	cfg, err := config.Load("st7789", "")
	if err == nil {
		err = config.Validate(&cfg)
	}
	if err != nil {
		println("config:", err.Error())
		return
	}

	lg, err := log.NewUART(cfg.Log.Level, 115200, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	if err != nil {
		println("logger:", err.Error())
		return
	}
	lg.Info("boot", zap.String("version", version))

	// ---- radio ----
	nl, dev := probe.Probe()
	link := wifi.NewNetlink(nl)
	link.IPFunc = func() string {
		a, err := dev.Addr()
		if err != nil {
			return ""
		}
		return a.String()
	}

	// ---- panel ----
	if err := machine.SPI0.Configure(machine.SPIConfig{Frequency: 40_000_000}); err != nil {
		lg.Fatal("spi", zap.Error(err))
	}
	panel, err := display.NewTFT(cfg.Display.Backend, machine.SPI0,
		display.TFTPins{RST: pinRST, DC: pinDC, CS: pinCS, BL: pinBL},
		int16(cfg.Display.Width), int16(cfg.Display.Height), drivers.Rotation0)
	if err != nil {
		lg.Fatal("panel", zap.Error(err))
	}

	p := device.Platform{
		Link:    link,
		Pin:     button.NewMachinePin(pinButton),
		Display: display.NewRaster(panel),
		Flash:   storage.NewFlash(machine.Flash),
		Updater: ota.NoSlot{},
		Clock:   timex.System{},
		Log:     lg,
		Reset:   machine.CPUReset,
	}
	err = device.Run(context.Background(), cfg, p, version)
	lg.Error("device stopped", zap.Error(err))
}
