// services/button/classifier.go
package button

import (
	"time"

	"hwmonitor-go/types"
	"hwmonitor-go/x/timex"
)

// Pin reads the raw electrical level of the button input.
type Pin interface {
	Get() bool
}

type Config struct {
	Debounce         time.Duration
	Medium           time.Duration
	Long             time.Duration
	MultiClickWindow time.Duration
	MultiClickCount  int
	ActiveLow        bool // pressed reads as low (pull-up wiring)
}

func DefaultConfig() Config {
	return Config{
		Debounce:         50 * time.Millisecond,
		Medium:           2 * time.Second,
		Long:             7 * time.Second,
		MultiClickWindow: 2 * time.Second,
		MultiClickCount:  3,
		ActiveLow:        true,
	}
}

// Handler receives classified events. One handler is registered at a time.
type Handler func(types.ButtonEvent)

type state uint8

const (
	stIdle state = iota
	stDebouncing
	stHeld
)

// Classifier turns level samples into gestures. Poll must be called every
// loop iteration; it never blocks.
type Classifier struct {
	pin   Pin
	clock timex.Clock
	cfg   Config

	st         state
	pressAt    time.Time
	lastEdge   time.Time
	mediumDone bool
	longDone   bool
	hold       uint32

	clicks     int
	firstClick time.Time

	handler Handler
}

func New(pin Pin, clock timex.Clock, cfg Config) *Classifier {
	if cfg.MultiClickCount <= 0 {
		cfg.MultiClickCount = 3
	}
	return &Classifier{pin: pin, clock: clock, cfg: cfg}
}

// SetHandler replaces the registered handler (nil disables dispatch).
func (c *Classifier) SetHandler(h Handler) { c.handler = h }

// Pressed reports the debounced logical state.
func (c *Classifier) Pressed() bool { return c.st == stHeld }

// HeldFor is the current hold duration, zero when not held.
func (c *Classifier) HeldFor() time.Duration {
	if c.st != stHeld {
		return 0
	}
	return c.clock.Now().Sub(c.pressAt)
}

func (c *Classifier) logicalPressed() bool {
	lvl := c.pin.Get()
	if c.cfg.ActiveLow {
		return !lvl
	}
	return lvl
}

// Poll samples the pin, advances the state machine and dispatches at most
// one event, which is also returned (Kind ButtonNone when nothing fired).
func (c *Classifier) Poll() types.ButtonEvent {
	ev := c.step(c.clock.Now(), c.logicalPressed())
	if ev.Kind == types.ButtonNone {
		return ev
	}
	ev.Hold = c.hold
	if c.handler != nil {
		c.handler(ev)
	}
	return ev
}

func (c *Classifier) step(now time.Time, pressed bool) types.ButtonEvent {
	switch c.st {
	case stIdle:
		if !pressed {
			return types.ButtonEvent{}
		}
		if !c.lastEdge.IsZero() && now.Sub(c.lastEdge) < c.cfg.Debounce {
			return types.ButtonEvent{}
		}
		c.lastEdge = now
		c.pressAt = now
		c.hold++
		c.mediumDone, c.longDone = false, false
		c.st = stDebouncing
		return types.ButtonEvent{}

	case stDebouncing:
		if !pressed {
			c.st = stIdle
			return types.ButtonEvent{}
		}
		if now.Sub(c.pressAt) < c.cfg.Debounce {
			return types.ButtonEvent{}
		}
		c.st = stHeld
		return c.held(now)

	case stHeld:
		if pressed {
			return c.held(now)
		}
		c.st = stIdle
		return c.released(now)
	}
	return types.ButtonEvent{}
}

// held checks long before medium so a tick that first sees the hold past
// the long threshold suppresses medium for this hold.
func (c *Classifier) held(now time.Time) types.ButtonEvent {
	d := now.Sub(c.pressAt)
	switch {
	case !c.longDone && d >= c.cfg.Long:
		c.longDone = true
		c.mediumDone = true
		c.clicks = 0
		return types.ButtonEvent{Kind: types.ButtonLong, Duration: d}
	case !c.mediumDone && d >= c.cfg.Medium:
		c.mediumDone = true
		c.clicks = 0
		return types.ButtonEvent{Kind: types.ButtonMedium, Duration: d}
	}
	return types.ButtonEvent{}
}

func (c *Classifier) released(now time.Time) types.ButtonEvent {
	if c.mediumDone || c.longDone {
		return types.ButtonEvent{}
	}
	// A hold that crossed a threshold between samples is classified on release.
	if ev := c.held(now); ev.Kind != types.ButtonNone {
		return ev
	}

	if c.clicks == 0 || now.Sub(c.firstClick) > c.cfg.MultiClickWindow {
		c.clicks = 1
		c.firstClick = now
	} else {
		c.clicks++
	}
	if c.clicks >= c.cfg.MultiClickCount {
		n := c.clicks
		c.clicks = 0
		return types.ButtonEvent{Kind: types.ButtonMultiClick, Count: n}
	}
	return types.ButtonEvent{Kind: types.ButtonShort, Duration: now.Sub(c.pressAt)}
}
