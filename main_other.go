//go:build !linux && !tinygo

package main

import (
	"errors"

	"hwmonitor-go/services/button"
)

func openButton(string, int) (button.Pin, func() error, error) {
	return nil, nil, errors.New("gpiocdev button requires linux")
}
