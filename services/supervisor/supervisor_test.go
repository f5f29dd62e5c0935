// services/supervisor/supervisor_test.go
package supervisor

import (
	"context"
	"testing"
	"time"

	"hwmonitor-go/services/display"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*timex.Manual, *wifi.Sim, *display.Console, *Supervisor) {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := timex.NewManual(time.Time{})
	sim := wifi.NewSim(clk)
	sim.AddNetwork("HomeNet", "supersecret", -50)
	disp := display.NewConsole(log)
	s := New(DefaultConfig(), sim, netcheck.New(sim, clk, "", log), disp, clk, log)
	s.SetCredentials("HomeNet", "supersecret")
	return clk, sim, disp, s
}

func TestReconnectTimeoutProgression(t *testing.T) {
	_, _, _, s := setup(t)
	want := map[int]time.Duration{
		0: 5 * time.Second,
		1: 10 * time.Second,
		2: 15 * time.Second,
		5: 30 * time.Second,
		9: 30 * time.Second,
	}
	for n, d := range want {
		if got := s.ReconnectTimeout(n); got != d {
			t.Errorf("ReconnectTimeout(%d) = %v want %v", n, got, d)
		}
	}
}

func TestWiFiBudgetReachesExactlyFive(t *testing.T) {
	clk, sim, disp, s := setup(t)
	sim.SetInRange("HomeNet", false)
	ctx := context.Background()

	prev := 0
	for i := 0; i < 1000; i++ {
		fallback := s.Check(ctx)
		n := s.WiFiFailures()
		if n < prev || n > prev+1 {
			t.Fatalf("counter jumped %d -> %d", prev, n)
		}
		prev = n
		if fallback {
			if n != 5 {
				t.Fatalf("fallback at %d failures", n)
			}
			if sim.Begins() != 5 {
				t.Fatalf("reconnect attempts = %d", sim.Begins())
			}
			if !disp.Contains("5/5") {
				t.Fatalf("screen = %q", disp.String())
			}
			return
		}
		clk.Advance(time.Second)
	}
	t.Fatal("budget never reached")
}

func TestDebounceCountsOncePerPeriod(t *testing.T) {
	clk, sim, _, s := setup(t)
	sim.SetInRange("HomeNet", false)
	s.SetCredentials("", "")
	ctx := context.Background()

	s.Check(ctx)
	for i := 0; i < 9; i++ {
		clk.Advance(time.Second)
		s.Check(ctx)
	}
	if s.WiFiFailures() != 1 {
		t.Fatalf("failures = %d within one debounce period", s.WiFiFailures())
	}
	clk.Advance(time.Second)
	s.Check(ctx)
	if s.WiFiFailures() != 2 {
		t.Fatalf("failures = %d after debounce", s.WiFiFailures())
	}
	if sim.Begins() != 0 {
		t.Fatal("no reconnect without credentials")
	}
}

func TestReconnectResetsCounter(t *testing.T) {
	clk, sim, disp, s := setup(t)
	sim.SetInRange("HomeNet", false)
	ctx := context.Background()

	for s.WiFiFailures() < 2 {
		s.Check(ctx)
		clk.Advance(time.Second)
	}
	sim.SetInRange("HomeNet", true)
	clk.Advance(10 * time.Second)
	if s.Check(ctx) {
		t.Fatal("unexpected fallback")
	}
	if s.WiFiFailures() != 0 {
		t.Fatalf("failures = %d after reconnect", s.WiFiFailures())
	}
	if !disp.Contains("WiFi OK!") {
		t.Fatalf("screen = %q", disp.String())
	}
	if s.Check(ctx) || s.WiFiFailures() != 0 {
		t.Fatal("connected link must keep the counter at zero")
	}
}

func TestServerBudgetIndependentOfWiFi(t *testing.T) {
	clk, sim, _, s := setup(t)
	sim.SetInRange("HomeNet", false)
	s.SetCredentials("", "")
	s.Check(context.Background())
	if s.WiFiFailures() != 1 {
		t.Fatal("setup: expected one wifi failure")
	}

	for i := 1; i <= 10; i++ {
		tripped := s.ReportServerFailure()
		// Debounced duplicates never count.
		if s.ReportServerFailure() {
			t.Fatal("debounced failure tripped the budget")
		}
		if s.ServerFailures() != i {
			t.Fatalf("server failures = %d want %d", s.ServerFailures(), i)
		}
		if tripped != (i == 10) {
			t.Fatalf("tripped=%v at %d", tripped, i)
		}
		clk.Advance(10 * time.Second)
	}
	if s.WiFiFailures() != 1 {
		t.Fatalf("wifi counter changed to %d", s.WiFiFailures())
	}
}

func TestServerSuccessIdempotent(t *testing.T) {
	_, _, _, s := setup(t)
	s.ReportServerSuccess()
	s.ReportServerSuccess()
	if s.ServerFailures() != 0 {
		t.Fatal("counter should stay zero")
	}
	s.ReportServerFailure()
	s.ReportServerSuccess()
	if s.ServerFailures() != 0 {
		t.Fatal("success should reset")
	}
	// The debounce window is cleared with the counter.
	if s.ReportServerFailure(); s.ServerFailures() != 1 {
		t.Fatal("failure right after success should count")
	}
}
