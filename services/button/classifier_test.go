// services/button/classifier_test.go
package button

import (
	"testing"
	"time"

	"hwmonitor-go/types"
	"hwmonitor-go/x/timex"
)

// rig drives a classifier on a manual clock, sampling every tick.
type rig struct {
	clk  *timex.Manual
	pin  *SimPin
	c    *Classifier
	got  []types.ButtonEvent
	tick time.Duration
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clk := timex.NewManual(time.Time{})
	pin := NewSimPin(true) // pull-up idle
	r := &rig{clk: clk, pin: pin, tick: 10 * time.Millisecond}
	r.c = New(pin, clk, DefaultConfig())
	r.c.SetHandler(func(ev types.ButtonEvent) { r.got = append(r.got, ev) })
	return r
}

func (r *rig) run(d time.Duration) {
	for end := r.clk.Now().Add(d); r.clk.Now().Before(end); {
		r.c.Poll()
		r.clk.Advance(r.tick)
	}
}

func (r *rig) press(hold time.Duration) {
	r.pin.Set(false)
	r.run(hold)
	r.pin.Set(true)
	r.run(20 * time.Millisecond)
}

func (r *rig) kinds() []types.ButtonKind {
	out := make([]types.ButtonKind, 0, len(r.got))
	for _, ev := range r.got {
		out = append(out, ev.Kind)
	}
	return out
}

func expectKinds(t *testing.T, r *rig, want ...types.ButtonKind) {
	t.Helper()
	got := r.kinds()
	if len(got) != len(want) {
		t.Fatalf("events: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events: got %v want %v", got, want)
		}
	}
}

func TestShortPress(t *testing.T) {
	r := newRig(t)
	r.press(1500 * time.Millisecond)
	expectKinds(t, r, types.ButtonShort)
}

func TestMediumPressSuppressesShort(t *testing.T) {
	r := newRig(t)
	r.press(3 * time.Second)
	expectKinds(t, r, types.ButtonMedium)
	if r.got[0].Duration < 2*time.Second {
		t.Fatalf("medium duration = %v", r.got[0].Duration)
	}
}

func TestLongHoldFiresMediumThenLong(t *testing.T) {
	r := newRig(t)
	r.press(8 * time.Second)
	expectKinds(t, r, types.ButtonMedium, types.ButtonLong)
	if r.got[0].Hold == 0 || r.got[0].Hold != r.got[1].Hold {
		t.Fatalf("medium and long from one hold: %d %d", r.got[0].Hold, r.got[1].Hold)
	}
	r.press(3 * time.Second)
	if h := r.got[2].Hold; h == r.got[1].Hold {
		t.Fatalf("new press reused hold %d", h)
	}
}

func TestFirstSamplePastLongSuppressesMedium(t *testing.T) {
	clk := timex.NewManual(time.Time{})
	pin := NewSimPin(true)
	c := New(pin, clk, DefaultConfig())

	pin.Set(false)
	c.Poll() // edge
	clk.Advance(60 * time.Millisecond)
	c.Poll() // debounced, nothing yet
	clk.Advance(8 * time.Second)
	if ev := c.Poll(); ev.Kind != types.ButtonLong {
		t.Fatalf("got %v want long", ev.Kind)
	}
	clk.Advance(time.Second)
	if ev := c.Poll(); ev.Kind != types.ButtonNone {
		t.Fatalf("unexpected %v after long", ev.Kind)
	}
	pin.Set(true)
	if ev := c.Poll(); ev.Kind != types.ButtonNone {
		t.Fatalf("release after long produced %v", ev.Kind)
	}
}

func TestSparseSamplingClassifiesOnRelease(t *testing.T) {
	clk := timex.NewManual(time.Time{})
	pin := NewSimPin(true)
	c := New(pin, clk, DefaultConfig())

	pin.Set(false)
	c.Poll()
	clk.Advance(3 * time.Second)
	pin.Set(true)
	// Still debouncing on this sample; the release is read as a bounce.
	if ev := c.Poll(); ev.Kind != types.ButtonNone {
		t.Fatalf("got %v", ev.Kind)
	}

	pin.Set(false)
	clk.Advance(time.Second)
	c.Poll()
	clk.Advance(100 * time.Millisecond)
	c.Poll()
	clk.Advance(3 * time.Second)
	pin.Set(true)
	if ev := c.Poll(); ev.Kind != types.ButtonMedium {
		t.Fatalf("got %v want medium", ev.Kind)
	}
}

func TestBounceIgnored(t *testing.T) {
	r := newRig(t)
	r.pin.Set(false)
	r.run(20 * time.Millisecond)
	r.pin.Set(true)
	r.run(200 * time.Millisecond)
	expectKinds(t, r)
}

func TestMultiClick(t *testing.T) {
	r := newRig(t)
	// Releases land near t=0.1s, 0.7s and 2.0s: inside a 2s window.
	r.press(100 * time.Millisecond)
	r.run(480 * time.Millisecond)
	r.press(100 * time.Millisecond)
	r.run(1180 * time.Millisecond)
	r.press(100 * time.Millisecond)

	expectKinds(t, r, types.ButtonShort, types.ButtonShort, types.ButtonMultiClick)
	if r.got[2].Count != 3 {
		t.Fatalf("count = %d", r.got[2].Count)
	}
}

func TestMultiClickWindowExpires(t *testing.T) {
	r := newRig(t)
	r.press(100 * time.Millisecond)
	r.run(2380 * time.Millisecond)
	r.press(100 * time.Millisecond)
	r.press(100 * time.Millisecond)

	for _, k := range r.kinds() {
		if k == types.ButtonMultiClick {
			t.Fatalf("unexpected multi-click: %v", r.kinds())
		}
	}
	// The late click restarted the count: one more click completes it.
	r.press(100 * time.Millisecond)
	if got := r.kinds(); got[len(got)-1] != types.ButtonMultiClick {
		t.Fatalf("expected multi-click after restart, got %v", got)
	}
}

func TestMediumResetsClickCount(t *testing.T) {
	r := newRig(t)
	r.press(100 * time.Millisecond)
	r.press(100 * time.Millisecond)
	r.press(2500 * time.Millisecond)
	r.press(100 * time.Millisecond)
	expectKinds(t, r, types.ButtonShort, types.ButtonShort, types.ButtonMedium, types.ButtonShort)
}

func TestActiveHigh(t *testing.T) {
	clk := timex.NewManual(time.Time{})
	pin := NewSimPin(false)
	cfg := DefaultConfig()
	cfg.ActiveLow = false
	c := New(pin, clk, cfg)

	var n int
	c.SetHandler(func(types.ButtonEvent) { n++ })
	pin.Set(true)
	for i := 0; i < 20; i++ {
		c.Poll()
		clk.Advance(10 * time.Millisecond)
	}
	if !c.Pressed() || c.HeldFor() <= 0 {
		t.Fatal("expected held")
	}
	pin.Set(false)
	c.Poll()
	if n != 1 {
		t.Fatalf("handler calls = %d", n)
	}
}
