// cmd/telemetry-mock/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hwmonitor-go/types"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var (
	listen  = flag.String("listen", ":8080", "HTTP listen address")
	path    = flag.String("path", "/system-info", "Telemetry path")
	igpu    = flag.Bool("igpu", false, "Report an integrated GPU")
	failPct = flag.Float64("fail", 0, "Probability of answering 503 (0.0-1.0)")
)

// Generator produces plausible drifting samples.
type Generator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last types.SystemData
	igpu bool
}

func NewGenerator(seed int64, igpu bool) *Generator {
	g := &Generator{rng: rand.New(rand.NewSource(seed)), igpu: igpu}
	g.last = types.SystemData{
		CPU: types.CPU{Name: "AMD Ryzen 7 5800X", Temp: 48, Load: 12, Power: 35},
		RAM: types.RAM{Used: 9.5, Total: 32},
		GPUDiscrete: types.DiscreteGPU{
			Name: "NVIDIA GeForce RTX 3070", Temp: 42, Load: 5, Power: 25,
			MemUsed: 900, MemTotal: 8192,
		},
		Disks: []types.Disk{
			{Name: "Samsung 980 PRO", Temp: 38, Load: 61},
			{Name: "WD Blue", Temp: 31, Load: 44},
		},
		Network: types.Network{Name: "eth0"},
	}
	if igpu {
		g.last.GPUIntegrated = types.IntegratedGPU{Name: "AMD Radeon Graphics", Temp: 40, Load: 3}
	}
	return g
}

func (g *Generator) walk(v, step, lo, hi float64) float64 {
	v += (g.rng.Float64()*2 - 1) * step
	return math.Round(math.Max(lo, math.Min(hi, v))*10) / 10
}

// Next advances every reading by a bounded random step.
func (g *Generator) Next() types.SystemData {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.last
	s.CPU.Load = g.walk(s.CPU.Load, 8, 0, 100)
	s.CPU.Temp = g.walk(40+s.CPU.Load*0.4, 2, 30, 95)
	s.CPU.Power = g.walk(20+s.CPU.Load, 5, 5, 142)
	s.RAM.Used = g.walk(s.RAM.Used, 0.4, 2, s.RAM.Total)
	s.RAM.Percent = math.Round(s.RAM.Used/s.RAM.Total*1000) / 10
	s.GPUDiscrete.Load = g.walk(s.GPUDiscrete.Load, 10, 0, 100)
	s.GPUDiscrete.Temp = g.walk(35+s.GPUDiscrete.Load*0.45, 2, 30, 90)
	s.GPUDiscrete.Power = g.walk(15+s.GPUDiscrete.Load*2, 6, 10, 220)
	s.GPUDiscrete.MemUsed = int(g.walk(float64(s.GPUDiscrete.MemUsed), 150, 300, float64(s.GPUDiscrete.MemTotal)))
	if s.GPUIntegrated.Name != "" {
		s.GPUIntegrated.Load = g.walk(s.GPUIntegrated.Load, 4, 0, 100)
		s.GPUIntegrated.Temp = g.walk(s.GPUIntegrated.Temp, 1, 30, 80)
	}
	disks := make([]types.Disk, len(s.Disks))
	for i, d := range s.Disks {
		d.Temp = g.walk(d.Temp, 0.5, 25, 70)
		disks[i] = d
	}
	s.Disks = disks
	s.Network.Download = g.walk(s.Network.Download, 400, 0, 12000)
	s.Network.Upload = g.walk(s.Network.Upload, 60, 0, 2000)

	g.last = s
	return s
}

func handler(g *Generator, fail float64, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fail > 0 && rand.Float64() < fail {
			log.Info("injected failure", zap.String("remote", r.RemoteAddr))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		s := g.Next()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s); err != nil {
			log.Warn("encode failed", zap.Error(err))
			return
		}
		log.Debug("served", zap.String("remote", r.RemoteAddr), zap.Float64("cpu_load", s.CPU.Load))
	}
}

// newRouter serves samples on GET path only.
func newRouter(path string, g *Generator, fail float64, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Handle(path, handler(g, fail, log)).Methods(http.MethodGet)
	return r
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	r := newRouter(*path, NewGenerator(time.Now().UnixNano(), *igpu), *failPct, logger)
	srv := &http.Server{Addr: *listen, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	logger.Info("telemetry mock started",
		zap.String("listen", *listen),
		zap.String("path", *path),
		zap.Float64("fail", *failPct))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("telemetry mock stopped")
}
