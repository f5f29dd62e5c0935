//go:build linux

// services/button/pin_linux.go
package button

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIOPin reads a button from a GPIO character device line.
type GPIOPin struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

// OpenGPIO requests offset on chipName as an input with the internal
// pull-up enabled (button to ground).
func OpenGPIO(chipName string, offset int) (*GPIOPin, error) {
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiod.AsInput, gpiod.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	return &GPIOPin{chip: chip, line: line}, nil
}

// Get returns the raw level. A read error reads as high (released).
func (p *GPIOPin) Get() bool {
	v, err := p.line.Value()
	if err != nil {
		return true
	}
	return v != 0
}

func (p *GPIOPin) Close() error {
	lerr := p.line.Close()
	cerr := p.chip.Close()
	if lerr != nil {
		return lerr
	}
	return cerr
}
