// services/wifi/sim.go
package wifi

import (
	"sync"
	"time"

	"hwmonitor-go/x/timex"

	"tinygo.org/x/drivers/netlink"
)

// Sim is a simulated radio for the host build and tests. Association
// completes AssocDelay after Begin if the network is in range and the
// passphrase matches.
type Sim struct {
	mu    sync.Mutex
	clock timex.Clock

	networks map[string]simNet

	AssocDelay time.Duration
	IP         string

	status  Status
	ssid    string
	pass    string
	started time.Time
	apSSID  string

	// stored holds the passphrases the radio remembers per SSID; Garble
	// corrupts what StoredPassphrase returns.
	stored map[string]string
	Garble bool

	begins int
}

type simNet struct {
	pass string
	rssi int
	up   bool
}

func NewSim(clock timex.Clock) *Sim {
	return &Sim{
		clock:      clock,
		networks:   map[string]simNet{},
		stored:     map[string]string{},
		AssocDelay: 1500 * time.Millisecond,
		IP:         "192.168.1.77",
	}
}

// AddNetwork puts a network in range.
func (s *Sim) AddNetwork(ssid, pass string, rssi int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[ssid] = simNet{pass: pass, rssi: rssi, up: true}
}

// Remember seeds the radio's own credential store.
func (s *Sim) Remember(ssid, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[ssid] = pass
}

// SetInRange toggles a network; taking the associated network away drops
// the link.
func (s *Sim) SetInRange(ssid string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[ssid]
	if !ok {
		return
	}
	n.up = up
	s.networks[ssid] = n
	if !up && s.ssid == ssid && s.status == StatusConnected {
		s.status = StatusDisconnected
	}
}

// Drop simulates a link loss.
func (s *Sim) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusConnected {
		s.status = StatusDisconnected
	}
}

// Begins counts Begin calls in station mode.
func (s *Sim) Begins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

// APActive reports whether the soft AP is up.
func (s *Sim) APActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apSSID != ""
}

func (s *Sim) Begin(p *netlink.ConnectParams) error {
	if err := CheckParams(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ConnectMode == netlink.ConnectModeAP {
		s.apSSID = p.Ssid
		return nil
	}
	s.begins++
	s.ssid = p.Ssid
	s.pass = p.Passphrase
	s.status = StatusConnecting
	s.started = s.clock.Now()
	return nil
}

func (s *Sim) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusDisconnected
}

func (s *Sim) StopAP() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apSSID = ""
}

func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	return s.status
}

// resolve settles a pending association once AssocDelay has passed.
// Callers hold mu.
func (s *Sim) resolve() {
	if s.status != StatusConnecting || s.clock.Now().Sub(s.started) < s.AssocDelay {
		return
	}
	n, ok := s.networks[s.ssid]
	switch {
	case !ok || !n.up:
		s.status = StatusNoSSID
	case s.pass != "" && s.pass != n.pass:
		s.status = StatusConnectFailed
	case s.pass == "" && n.pass != "" && s.stored[s.ssid] != n.pass:
		// Nothing usable remembered for a secured network.
		s.status = StatusConnectFailed
	default:
		s.status = StatusConnected
		if s.pass != "" {
			s.stored[s.ssid] = s.pass
		}
	}
}

func (s *Sim) SSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	if s.status != StatusConnected {
		return ""
	}
	return s.ssid
}

func (s *Sim) LocalIP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	if s.status != StatusConnected {
		if s.apSSID != "" {
			return "192.168.4.1"
		}
		return ""
	}
	return s.IP
}

func (s *Sim) RSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	if s.status != StatusConnected {
		return 0
	}
	return s.networks[s.ssid].rssi
}

func (s *Sim) Scan() ([]Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Network
	for ssid, n := range s.networks {
		if n.up {
			out = append(out, Network{SSID: ssid, RSSI: n.rssi, Secure: n.pass != ""})
		}
	}
	return out, nil
}

func (s *Sim) StoredPassphrase() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	pw := s.stored[s.ssid]
	if s.status != StatusConnected || pw == "" {
		return "", false
	}
	if s.Garble {
		return "\xff\x00" + pw, true
	}
	return pw, true
}
