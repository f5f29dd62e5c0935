// services/button/pin.go
package button

import "sync"

// SimPin is a settable level used by the simulator and tests.
type SimPin struct {
	mu    sync.Mutex
	level bool
}

// NewSimPin returns a pin idling at level.
func NewSimPin(level bool) *SimPin { return &SimPin{level: level} }

func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
