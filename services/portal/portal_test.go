// services/portal/portal_test.go
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"hwmonitor-go/errcode"
	"hwmonitor-go/services/display"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap/zaptest"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type event struct {
	at time.Duration
	fn func()
}

type fixture struct {
	t     *testing.T
	clk   *timex.Manual
	start time.Time
	sim   *wifi.Sim
	disp  *display.Console
	mem   *storage.Mem
	store *storage.ConfigStore
	v     *netcheck.Validator
	p     *Portal

	events []event
	probes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := timex.NewManual(time.Time{})
	f := &fixture{t: t, clk: clk, start: clk.Now()}

	f.sim = wifi.NewSim(clk)
	f.sim.AddNetwork("HomeNet", "supersecret", -48)
	f.sim.AddNetwork("Cafe", "", -80)
	f.disp = display.NewConsole(log)

	f.mem = storage.NewMem(storage.EEPROMSize)
	ee, err := storage.Open(f.mem, storage.EEPROMSize)
	if err != nil {
		t.Fatal(err)
	}
	f.store = storage.NewConfigStore(ee, log)

	f.v = netcheck.New(f.sim, clk, "/system-info", log)
	f.v.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		f.probes++
		return nil, errors.New("connection refused")
	})}

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	f.p = New(cfg, f.sim, f.v, f.store, f.disp, clk, log)

	clk.OnSleep = f.fire
	return f
}

// at schedules fn on the control loop once d of virtual time has passed.
func (f *fixture) at(d time.Duration, fn func()) {
	f.events = append(f.events, event{at: d, fn: fn})
}

func (f *fixture) fire(now time.Time) {
	el := now.Sub(f.start)
	for len(f.events) > 0 && f.events[0].at <= el {
		ev := f.events[0]
		f.events = f.events[1:]
		ev.fn()
	}
}

func (f *fixture) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.p.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) expectCode(rec *httptest.ResponseRecorder, want int) {
	f.t.Helper()
	if rec.Code != want {
		f.t.Errorf("status = %d want %d, body %q", rec.Code, want, rec.Body.String())
	}
}

func (f *fixture) run(cur storage.ConfigRecord, from Step) Outcome {
	return f.p.Run(context.Background(), cur, from)
}

func fresh() storage.ConfigRecord {
	var r storage.ConfigRecord
	r.Clear()
	return r
}

func (f *fixture) imageUntouched() bool {
	for _, b := range f.mem.Bytes()[:200] {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// ---- tests ----

func TestServerThenWiFiSavesWithAdvisoryProbe(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() {
		f.expectCode(f.do("POST", "/server", url.Values{"ip": {"192.168.1.50"}, "port": {""}}), http.StatusOK)
		if f.p.Step() != StepWiFi {
			t.Errorf("step = %v after server", f.p.Step())
		}
	})
	f.at(2*time.Second, func() {
		f.expectCode(f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"supersecret"}}), http.StatusAccepted)
	})

	if o := f.run(fresh(), StepServer); o != OutcomeSaved {
		t.Fatalf("outcome = %v", o)
	}
	if f.probes != 1 {
		t.Fatalf("probes = %d", f.probes)
	}

	got, err := f.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	want := storage.ConfigRecord{ServerAddress: "192.168.1.50", ServerPort: 80, SSID: "HomeNet", Password: "supersecret"}
	if got != want {
		t.Fatalf("saved %+v want %+v", got, want)
	}
	if got.ServerURL("/system-info") != "http://192.168.1.50:80/system-info" {
		t.Fatalf("url = %s", got.ServerURL("/system-info"))
	}
	if f.sim.APActive() {
		t.Fatal("soft AP left running")
	}
	if !f.disp.Contains("Saved!") {
		t.Fatalf("screen = %q", f.disp.String())
	}
}

func TestPasswordRecovery(t *testing.T) {
	cases := []struct {
		name      string
		remember  bool
		garble    bool
		submitted string
		want      string
	}{
		{"recovered from radio", true, false, "", "supersecret"},
		{"garbled recovery and empty submit", true, true, "", ""},
		{"garbled recovery falls back to submitted", false, true, "supersecret", "supersecret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.remember {
				f.sim.Remember("HomeNet", "supersecret")
			}
			f.sim.Garble = tc.garble
			f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"monitor.local"}, "port": {"8080"}}) })
			f.at(2*time.Second, func() {
				f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {tc.submitted}})
			})
			if o := f.run(fresh(), StepServer); o != OutcomeSaved {
				t.Fatalf("outcome = %v", o)
			}
			got, err := f.store.Load()
			if err != nil {
				t.Fatal(err)
			}
			if got.Password != tc.want {
				t.Fatalf("password = %q want %q", got.Password, tc.want)
			}
			if got.ServerPort != 8080 {
				t.Fatalf("port = %d", got.ServerPort)
			}
		})
	}
}

func TestFailedWiFiAttemptStaysInStep(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
	f.at(2*time.Second, func() {
		f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"wrongpass"}})
	})
	f.at(30*time.Second, func() {
		var st Status
		if err := json.Unmarshal(f.do("GET", "/status", nil).Body.Bytes(), &st); err != nil {
			t.Fatal(err)
		}
		if st.Step != "wifi" || st.WiFiError == "" || st.HasWiFiConfig {
			t.Errorf("status after failure = %+v", st)
		}
		f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"supersecret"}})
	})

	if o := f.run(fresh(), StepServer); o != OutcomeSaved {
		t.Fatalf("outcome = %v", o)
	}
	if got, _ := f.store.Load(); got.Password != "supersecret" {
		t.Fatalf("saved %+v", got)
	}
}

func TestServerStepTimeout(t *testing.T) {
	f := newFixture(t)
	if o := f.run(fresh(), StepServer); o != OutcomeTimedOut {
		t.Fatalf("outcome = %v", o)
	}
	if el := f.clk.Now().Sub(f.start); el < 5*time.Minute {
		t.Fatalf("returned after %v", el)
	}
	if !f.imageUntouched() {
		t.Fatal("timeout must not persist anything")
	}
	if f.sim.APActive() {
		t.Fatal("soft AP left running")
	}
}

func TestWiFiStepTimeout(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
	if o := f.run(fresh(), StepServer); o != OutcomeTimedOut {
		t.Fatalf("outcome = %v", o)
	}
	if el := f.clk.Now().Sub(f.start); el < time.Second+3*time.Minute {
		t.Fatalf("returned after %v", el)
	}
	if !f.imageUntouched() {
		t.Fatal("timeout must not persist anything")
	}
}

func TestCancel(t *testing.T) {
	t.Run("button", func(t *testing.T) {
		f := newFixture(t)
		f.at(time.Second, f.p.Cancel)
		if o := f.run(fresh(), StepServer); o != OutcomeCancelled {
			t.Fatalf("outcome = %v", o)
		}
		if !f.imageUntouched() {
			t.Fatal("cancel must not persist anything")
		}
	})
	t.Run("route during wifi step", func(t *testing.T) {
		f := newFixture(t)
		f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
		f.at(2*time.Second, func() { f.do("POST", "/cancel", nil) })
		if o := f.run(fresh(), StepServer); o != OutcomeCancelled {
			t.Fatalf("outcome = %v", o)
		}
	})
	t.Run("during connection attempt", func(t *testing.T) {
		f := newFixture(t)
		f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
		f.at(2*time.Second, func() { f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"wrongpass"}}) })
		f.at(4*time.Second, f.p.Cancel)
		if o := f.run(fresh(), StepServer); o != OutcomeCancelled {
			t.Fatalf("outcome = %v", o)
		}
		if el := f.clk.Now().Sub(f.start); el > 10*time.Second {
			t.Fatalf("attempt not abandoned, returned after %v", el)
		}
	})
}

func TestServerFormValidation(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() {
		f.expectCode(f.do("POST", "/server", url.Values{"ip": {"  "}}), http.StatusBadRequest)
		f.expectCode(f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}, "port": {"70000"}}), http.StatusBadRequest)
		f.expectCode(f.do("POST", "/server", url.Values{"ip": {strings.Repeat("a", 64)}}), http.StatusBadRequest)
		f.expectCode(f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}}), http.StatusFound)
		if f.p.Step() != StepServer {
			t.Errorf("step advanced on bad input: %v", f.p.Step())
		}
		f.expectCode(f.do("GET", "/", nil), http.StatusOK)
		f.p.Cancel()
	})
	f.run(fresh(), StepServer)
}

func TestWiFiFormValidation(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() {
		f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}})
		f.expectCode(f.do("GET", "/", nil), http.StatusFound)
		rec := f.do("GET", "/wifi", nil)
		f.expectCode(rec, http.StatusOK)
		body := rec.Body.String()
		if strings.Index(body, "HomeNet") > strings.Index(body, "Cafe") {
			t.Errorf("networks not sorted by signal: %s", body)
		}
		f.expectCode(f.do("POST", "/wifi", url.Values{"ssid": {""}}), http.StatusBadRequest)
		f.expectCode(f.do("POST", "/wifi", url.Values{"ssid": {strings.Repeat("s", 32)}}), http.StatusBadRequest)
		f.p.Cancel()
	})
	f.run(fresh(), StepServer)
}

func TestRouteMethods(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		method, path string
		code         int
	}{
		{"GET", "/", http.StatusOK},
		{"POST", "/", http.StatusMethodNotAllowed},
		{"GET", "/server", http.StatusSeeOther},
		{"PUT", "/server", http.StatusMethodNotAllowed},
		{"DELETE", "/wifi", http.StatusMethodNotAllowed},
		{"POST", "/status", http.StatusMethodNotAllowed},
		{"POST", "/test", http.StatusMethodNotAllowed},
		{"GET", "/test", http.StatusOK},
		{"GET", "/status", http.StatusOK},
		{"GET", "/nope", http.StatusNotFound},
	} {
		rec := f.do(tc.method, tc.path, nil)
		if rec.Code != tc.code {
			t.Errorf("%s %s: got %d want %d", tc.method, tc.path, rec.Code, tc.code)
		}
	}
	if f.p.Step() != StepServer {
		t.Fatalf("rejected methods changed the step: %v", f.p.Step())
	}
}

func TestParsePort(t *testing.T) {
	cases := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"", 80, true},
		{" ", 80, true},
		{"8080", 8080, true},
		{"65535", 65535, true},
		{"0", 0, false},
		{"65536", 0, false},
		{"http", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePort(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParsePort(%q) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResetRoute(t *testing.T) {
	f := newFixture(t)
	f.at(time.Second, func() { f.expectCode(f.do("POST", "/reset", nil), http.StatusOK) })
	if o := f.run(fresh(), StepServer); o != OutcomeReset {
		t.Fatalf("outcome = %v", o)
	}
	got, err := f.store.Load()
	if errcode.Of(err) != errcode.InvalidRecord {
		t.Fatalf("cleared record should not load as valid: %v", err)
	}
	if got.ServerPort != storage.DefaultServerPort || got.HasServer() || got.HasWiFi() {
		t.Fatalf("cleared record = %+v", got)
	}
}

func TestSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.mem.SyncErr = errors.New("flash worn")
	f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
	f.at(2*time.Second, func() { f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"supersecret"}}) })
	if o := f.run(fresh(), StepServer); o != OutcomeSaveFailed {
		t.Fatalf("outcome = %v", o)
	}
	if !f.disp.Contains("Save failed") {
		t.Fatalf("screen = %q", f.disp.String())
	}
}

type blankSSID struct{ *wifi.Sim }

func (blankSSID) SSID() string { return "" }

func TestEmptyCapturedSSIDSavesNothing(t *testing.T) {
	f := newFixture(t)
	f.p.link = blankSSID{f.sim}
	f.at(time.Second, func() { f.do("POST", "/server", url.Values{"ip": {"10.0.0.2"}}) })
	f.at(2*time.Second, func() { f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"supersecret"}}) })
	if o := f.run(fresh(), StepServer); o != OutcomeNoSSID {
		t.Fatalf("outcome = %v", o)
	}
	if !f.imageUntouched() {
		t.Fatal("nothing may be persisted without an ssid")
	}
}

func TestStartAtWiFiStepKeepsServer(t *testing.T) {
	f := newFixture(t)
	cur := storage.ConfigRecord{ServerAddress: "10.0.0.9", ServerPort: 9000, SSID: "Old", Password: "oldpassword"}
	f.at(time.Second, func() {
		if f.p.Step() != StepWiFi {
			t.Errorf("step = %v", f.p.Step())
		}
		var st Status
		json.Unmarshal(f.do("GET", "/status", nil).Body.Bytes(), &st)
		if st.ServerIP != "10.0.0.9" || st.ServerPort != 9000 || !st.HasServerConfig {
			t.Errorf("status = %+v", st)
		}
		f.do("POST", "/wifi", url.Values{"ssid": {"HomeNet"}, "password": {"supersecret"}})
	})
	if o := f.run(cur, StepWiFi); o != OutcomeSaved {
		t.Fatalf("outcome = %v", o)
	}
	got, _ := f.store.Load()
	if got.ServerAddress != "10.0.0.9" || got.ServerPort != 9000 || got.SSID != "HomeNet" {
		t.Fatalf("saved %+v", got)
	}

	// Without a server the WiFi step is not allowed to be first.
	f2 := newFixture(t)
	f2.at(time.Second, func() {
		if f2.p.Step() != StepServer {
			t.Errorf("step = %v", f2.p.Step())
		}
		f2.p.Cancel()
	})
	f2.run(fresh(), StepWiFi)
}

func TestPollHookRunsWhileWaiting(t *testing.T) {
	f := newFixture(t)
	polls := 0
	f.p.SetPoll(func() {
		polls++
		if polls == 50 {
			f.p.Cancel()
		}
	})
	if o := f.run(fresh(), StepServer); o != OutcomeCancelled {
		t.Fatalf("outcome = %v", o)
	}
	if polls != 50 {
		t.Fatalf("polls = %d", polls)
	}
}

func TestOverRealHTTP(t *testing.T) {
	log := zaptest.NewLogger(t)
	clk := timex.System{}
	sim := wifi.NewSim(clk)
	mem := storage.NewMem(storage.EEPROMSize)
	ee, _ := storage.Open(mem, storage.EEPROMSize)
	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.ServerTimeout = 5 * time.Second
	cfg.NoticeDelay = 0
	p := New(cfg, sim, netcheck.New(sim, clk, "", log), storage.NewConfigStore(ee, log), display.NewConsole(log), clk, log)

	done := make(chan Outcome, 1)
	go func() { done <- p.Run(context.Background(), fresh(), StepServer) }()

	var addr string
	for i := 0; i < 200 && addr == ""; i++ {
		time.Sleep(5 * time.Millisecond)
		addr = p.Addr()
	}
	if addr == "" {
		t.Fatal("portal never listened")
	}

	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var st Status
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Step != "server" || st.HasServerConfig {
		t.Fatalf("status = %+v", st)
	}

	resp, err = http.PostForm("http://"+addr+"/cancel", url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	select {
	case o := <-done:
		if o != OutcomeCancelled {
			t.Fatalf("outcome = %v", o)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("portal did not stop")
	}
}
