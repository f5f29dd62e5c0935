package timex

import (
	"sync"
	"time"
)

// Clock is the time source for cooperative loops. Sleep is the only
// blocking primitive the control loop uses.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// NowMs returns Unix milliseconds as int64.
func NowMs(c Clock) int64 { return c.Now().UnixMilli() }

// Since is c.Now().Sub(t).
func Since(c Clock, t time.Time) time.Duration { return c.Now().Sub(t) }

// -----------------------------------------------------------------------------
// Manual clock
// -----------------------------------------------------------------------------

// Manual is a virtual clock. Sleep advances time instantly and then runs the
// OnSleep hook, which tests use to script inputs at exact instants.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	OnSleep func(now time.Time)
}

// NewManual returns a Manual clock starting at start (or a fixed epoch if zero).
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves time forward without running the hook.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	hook := m.OnSleep
	m.mu.Unlock()
	if hook != nil {
		hook(now)
	}
}
