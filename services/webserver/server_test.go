// services/webserver/server_test.go
package webserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestHandlersRunOnlyInHandleClient(t *testing.T) {
	s := New(zaptest.NewLogger(t), 4, time.Second)
	ran := make(chan struct{}, 1)
	s.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ran <- struct{}{}
		io.WriteString(w, "hello")
	})

	ts := httptest.NewServer(s)
	defer ts.Close()

	type result struct {
		body string
		code int
		err  error
	}
	res := make(chan result, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/")
		if err != nil {
			res <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		res <- result{body: string(b), code: resp.StatusCode}
	}()

	// Nothing runs until the loop services the queue.
	select {
	case <-ran:
		t.Fatal("handler ran outside HandleClient")
	case <-time.After(50 * time.Millisecond):
	}

	deadline := time.Now().Add(time.Second)
	served := 0
	for served == 0 && time.Now().Before(deadline) {
		served = s.HandleClient()
		time.Sleep(5 * time.Millisecond)
	}
	if served != 1 {
		t.Fatalf("served = %d", served)
	}
	r := <-res
	if r.err != nil || r.code != http.StatusOK || r.body != "hello" {
		t.Fatalf("got %+v", r)
	}
}

func TestUnservicedRequestTimesOut(t *testing.T) {
	s := New(zaptest.NewLogger(t), 4, 50*time.Millisecond)
	s.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	// The abandoned job is skipped.
	if n := s.HandleClient(); n != 0 {
		t.Fatalf("served abandoned job: %d", n)
	}
}

func TestStartStop(t *testing.T) {
	s := New(zaptest.NewLogger(t), 4, time.Second)
	s.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "pong") })

	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if err := s.Start("127.0.0.1:0"); err == nil {
		t.Fatal("second start should fail")
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("no addr")
	}

	done := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/ping")
		if err != nil {
			done <- -1
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	var code int
	for code == 0 {
		s.HandleClient()
		select {
		case code = <-done:
		case <-time.After(5 * time.Millisecond):
		}
	}
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	s.Stop()
	if s.Addr() != "" {
		t.Fatal("addr after stop")
	}
	s.Stop()
}
