//go:build linux && !tinygo

package main

import (
	"hwmonitor-go/services/button"
)

func openButton(chip string, line int) (button.Pin, func() error, error) {
	pin, err := button.OpenGPIO(chip, line)
	if err != nil {
		return nil, nil, err
	}
	return pin, pin.Close, nil
}
