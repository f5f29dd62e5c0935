//go:build tinygo

// services/display/tft_tinygo.go
package display

import (
	"fmt"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ili9341"
	"tinygo.org/x/drivers/st7735"
	"tinygo.org/x/drivers/st7789"
)

// TFTPins are the SPI panel control lines.
type TFTPins struct {
	RST, DC, CS, BL machine.Pin
}

// NewTFT configures the panel named by kind and returns it as a Displayer.
func NewTFT(kind string, bus drivers.SPI, p TFTPins, width, height int16, rot drivers.Rotation) (drivers.Displayer, error) {
	switch kind {
	case "st7735":
		d := st7735.New(bus, p.RST, p.DC, p.CS, p.BL)
		d.Configure(st7735.Config{Width: width, Height: height, Rotation: rot})
		return &d, nil
	case "st7789":
		d := st7789.New(bus, p.RST, p.DC, p.CS, p.BL)
		d.Configure(st7789.Config{Width: width, Height: height, Rotation: rot})
		return &d, nil
	case "ili9341":
		d := ili9341.NewSPI(bus, p.DC, p.CS, p.RST)
		d.Configure(ili9341.Config{Width: width, Height: height, Rotation: rot})
		return d, nil
	default:
		return nil, fmt.Errorf("display: unknown panel %q", kind)
	}
}
