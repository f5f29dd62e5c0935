//go:build tinygo

// services/button/pin_tinygo.go
package button

import "machine"

// MachinePin reads a button wired to ground on an MCU pin.
type MachinePin struct{ p machine.Pin }

func NewMachinePin(p machine.Pin) *MachinePin {
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &MachinePin{p: p}
}

func (m *MachinePin) Get() bool { return m.p.Get() }
