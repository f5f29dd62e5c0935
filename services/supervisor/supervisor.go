// services/supervisor/supervisor.go
package supervisor

import (
	"context"
	"fmt"
	"time"

	"hwmonitor-go/services/display"
	"hwmonitor-go/services/netcheck"
	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/mathx"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

type Config struct {
	WiFiBudget     int
	ServerBudget   int
	Debounce       time.Duration
	ReconnectBase  time.Duration
	ReconnectStep  time.Duration
	ReconnectLimit time.Duration
}

func DefaultConfig() Config {
	return Config{
		WiFiBudget:     5,
		ServerBudget:   10,
		Debounce:       10 * time.Second,
		ReconnectBase:  5 * time.Second,
		ReconnectStep:  5 * time.Second,
		ReconnectLimit: 30 * time.Second,
	}
}

// Supervisor watches the station link and the telemetry server while the
// device is in normal mode. It never clears configuration itself: it only
// reports when a failure budget is spent.
type Supervisor struct {
	cfg   Config
	link  wifi.Link
	probe *netcheck.Validator
	disp  display.Display
	clock timex.Clock
	log   *zap.Logger

	ssid, pass string

	wifiFails   int
	lastWiFi    time.Time
	okShown     bool
	serverFails int
	lastServer  time.Time
}

func New(cfg Config, link wifi.Link, probe *netcheck.Validator, disp display.Display,
	clock timex.Clock, log *zap.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, link: link, probe: probe, disp: disp, clock: clock, log: log}
}

// SetCredentials sets the stored station credentials used for reconnects.
func (s *Supervisor) SetCredentials(ssid, pass string) {
	s.ssid, s.pass = ssid, pass
}

func (s *Supervisor) WiFiFailures() int   { return s.wifiFails }
func (s *Supervisor) ServerFailures() int { return s.serverFails }

// ReconnectTimeout is base + n*step, capped at the limit.
func (s *Supervisor) ReconnectTimeout(n int) time.Duration {
	return mathx.Min(s.cfg.ReconnectBase+time.Duration(n)*s.cfg.ReconnectStep, s.cfg.ReconnectLimit)
}

// Check runs once per normal-mode tick. It returns true when the WiFi
// failure budget is spent and the device should fall back to provisioning.
func (s *Supervisor) Check(ctx context.Context) bool {
	if s.link.Status() == wifi.StatusConnected {
		if s.wifiFails > 0 {
			s.log.Info("wifi recovered", zap.Int("after_failures", s.wifiFails))
		}
		s.wifiFails = 0
		s.okShown = false
		return false
	}

	now := s.clock.Now()
	if !s.lastWiFi.IsZero() && now.Sub(s.lastWiFi) < s.cfg.Debounce {
		return false
	}
	s.wifiFails++
	s.lastWiFi = now
	s.log.Warn("wifi down", zap.Int("failures", s.wifiFails), zap.Int("budget", s.cfg.WiFiBudget))

	if s.ssid != "" {
		s.disp.ShowStatus("WiFi Lost!",
			"Reconnecting",
			fmt.Sprintf("Attempt %d/%d", s.wifiFails, s.cfg.WiFiBudget),
			s.ssid)

		timeout := s.ReconnectTimeout(s.wifiFails)
		if s.probe.TestWiFi(ctx, s.ssid, s.pass, timeout) {
			s.log.Info("wifi reconnected", zap.String("ip", s.link.LocalIP()))
			if !s.okShown {
				s.disp.ShowStatus("WiFi OK!", "Connected!", "IP: "+s.link.LocalIP())
				s.okShown = true
			}
			s.wifiFails = 0
			return false
		}
		s.log.Warn("reconnect failed", zap.Duration("timeout", timeout))
		s.disp.ShowStatus("Retry...", fmt.Sprintf("%d/%d", s.wifiFails, s.cfg.WiFiBudget))
	}

	if s.wifiFails >= s.cfg.WiFiBudget {
		s.log.Error("wifi failure budget spent", zap.Int("failures", s.wifiFails))
		return true
	}
	return false
}

// ReportServerFailure counts an unreachable fetch, at most one per debounce
// period. It returns true once the server budget is spent.
func (s *Supervisor) ReportServerFailure() bool {
	now := s.clock.Now()
	if !s.lastServer.IsZero() && now.Sub(s.lastServer) < s.cfg.Debounce {
		return false
	}
	s.serverFails++
	s.lastServer = now
	s.log.Warn("server unreachable", zap.Int("failures", s.serverFails), zap.Int("budget", s.cfg.ServerBudget))
	if s.serverFails >= s.cfg.ServerBudget {
		s.log.Error("server failure budget spent", zap.Int("failures", s.serverFails))
		return true
	}
	return false
}

// ReportServerSuccess clears the server counter.
func (s *Supervisor) ReportServerSuccess() {
	if s.serverFails > 0 {
		s.log.Info("server recovered", zap.Int("after_failures", s.serverFails))
	}
	s.serverFails = 0
	s.lastServer = time.Time{}
}
