//go:build rp2040

package log

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"go.uber.org/zap"
)

// NewUART builds a console logger on UART0 for boards without a USB console.
func NewUART(level string, baud uint32, tx, rx machine.Pin) (*zap.Logger, error) {
	hw := uartx.UART0
	// Defaults inside uartx apply if zero.
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       tx,
		RX:       rx,
	}); err != nil {
		return nil, err
	}
	return NewTo(hw, level, "console")
}
