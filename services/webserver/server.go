// services/webserver/server.go
package webserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds how long a request waits for the control loop.
const DefaultTimeout = 10 * time.Second

// Server accepts connections on net/http goroutines but runs handlers only
// inside HandleClient, on the caller's goroutine.
type Server struct {
	log     *zap.Logger
	mux     *http.ServeMux
	queue   chan *job
	timeout time.Duration

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

type job struct {
	w     http.ResponseWriter
	r     *http.Request
	taken atomic.Bool
	done  chan struct{}
}

// New returns a server with a pending-request queue of depth queueLen.
func New(log *zap.Logger, queueLen int, timeout time.Duration) *Server {
	if queueLen <= 0 {
		queueLen = 8
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		log:     log,
		mux:     http.NewServeMux(),
		queue:   make(chan *job, queueLen),
		timeout: timeout,
	}
}

func (s *Server) Handle(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

func (s *Server) HandleFunc(pattern string, h func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, h)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("webserver: already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("serve stopped", zap.Error(err))
		}
	}()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, empty when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop closes the listener and all connections. Queued requests are
// abandoned.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
	}
	s.log.Info("stopped")
}

// HandleClient runs every queued request and returns how many it served.
func (s *Server) HandleClient() int {
	n := 0
	for {
		select {
		case j := <-s.queue:
			if !j.taken.CompareAndSwap(false, true) {
				continue
			}
			s.mux.ServeHTTP(j.w, j.r)
			close(j.done)
			n++
		default:
			return n
		}
	}
}

// ServeHTTP is the net/http entry point: it parks the request until the
// control loop serves it or the timeout elapses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	j := &job{w: w, r: r, done: make(chan struct{})}
	select {
	case s.queue <- j:
	default:
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	t := time.NewTimer(s.timeout)
	defer t.Stop()
	select {
	case <-j.done:
		return
	case <-t.C:
	case <-r.Context().Done():
	}
	if j.taken.CompareAndSwap(false, true) {
		http.Error(w, "device busy", http.StatusServiceUnavailable)
		return
	}
	// The loop picked it up just now; let it finish.
	<-j.done
}
