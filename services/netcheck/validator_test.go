package netcheck

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*timex.Manual, *wifi.Sim, *Validator) {
	clk := timex.NewManual(time.Time{})
	sim := wifi.NewSim(clk)
	sim.AddNetwork("home", "hunter22", -55)
	return clk, sim, New(sim, clk, "/system-info", zaptest.NewLogger(t))
}

func TestTestWiFi_ConnectsAndPollsAtInterval(t *testing.T) {
	clk, sim, v := setup(t)
	start := clk.Now()
	yields := 0
	v.Yield = func() { yields++ }

	if !v.TestWiFi(context.Background(), "home", "hunter22", 10*time.Second) {
		t.Fatal("expected success")
	}
	// AssocDelay 1.5s polled at 500ms: three sleeps.
	if got := clk.Now().Sub(start); got != 1500*time.Millisecond {
		t.Fatalf("elapsed %v", got)
	}
	if yields != 3 {
		t.Fatalf("yields = %d", yields)
	}
	if sim.Status() != wifi.StatusConnected {
		t.Fatal("radio should stay connected")
	}
}

func TestTestWiFi_Timeout(t *testing.T) {
	clk, sim, v := setup(t)
	start := clk.Now()
	if v.TestWiFi(context.Background(), "home", "wrongpass", 4*time.Second) {
		t.Fatal("expected failure")
	}
	if got := clk.Now().Sub(start); got != 4*time.Second {
		t.Fatalf("should wait the full timeout, waited %v", got)
	}
	if sim.Status() != wifi.StatusConnectFailed {
		t.Fatalf("radio state left as produced, got %v", sim.Status())
	}
}

func TestTestWiFi_RejectsBadParams(t *testing.T) {
	_, _, v := setup(t)
	if v.TestWiFi(context.Background(), "", "", time.Second) {
		t.Fatal("empty ssid must fail")
	}
}

func TestTestWiFi_ContextCancel(t *testing.T) {
	clk, _, v := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	v.Yield = cancel
	start := clk.Now()
	if v.TestWiFi(ctx, "home", "wrongpass", time.Minute) {
		t.Fatal("expected failure")
	}
	if clk.Now().Sub(start) != PollInterval {
		t.Fatal("cancel should stop polling after one interval")
	}
}

func serverAt(t *testing.T, h http.HandlerFunc) (string, uint16) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return host, uint16(p)
}

func connect(t *testing.T, clk *timex.Manual, sim *wifi.Sim) {
	_ = sim.Begin(wifi.Station("home", "hunter22"))
	clk.Advance(sim.AssocDelay)
	if sim.Status() != wifi.StatusConnected {
		t.Fatal("setup: not connected")
	}
}

func TestTestServer_StatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusOK, true},
		{http.StatusMovedPermanently, true},
		{http.StatusFound, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		clk, sim, v := setup(t)
		connect(t, clk, sim)
		hits := 0
		host, port := serverAt(t, func(w http.ResponseWriter, r *http.Request) {
			hits++
			if r.URL.Path != "/system-info" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if c.code/100 == 3 {
				w.Header().Set("Location", "/elsewhere")
			}
			w.WriteHeader(c.code)
		})
		if got := v.TestServer(context.Background(), host, port, time.Second); got != c.want {
			t.Fatalf("code %d: got %v want %v", c.code, got, c.want)
		}
		if hits != 1 {
			t.Fatalf("code %d: %d requests, want exactly one", c.code, hits)
		}
	}
}

func TestTestServer_FailsFastWithoutWiFi(t *testing.T) {
	_, _, v := setup(t)
	hits := 0
	host, port := serverAt(t, func(w http.ResponseWriter, r *http.Request) { hits++ })
	if v.TestServer(context.Background(), host, port, time.Second) {
		t.Fatal("must fail without association")
	}
	if hits != 0 {
		t.Fatal("no request may be sent without association")
	}
}

func TestTestServer_TransportError(t *testing.T) {
	clk, sim, v := setup(t)
	connect(t, clk, sim)
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()
	h, p, _ := net.SplitHostPort(addr)
	pn, _ := strconv.Atoi(p)
	if v.TestServer(context.Background(), h, uint16(pn), 500*time.Millisecond) {
		t.Fatal("closed server must fail")
	}
}

func TestURL(t *testing.T) {
	_, _, v := setup(t)
	if got := v.URL("192.168.1.50", 80); got != "http://192.168.1.50:80/system-info" {
		t.Fatalf("URL = %s", got)
	}
}
