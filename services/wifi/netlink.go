// services/wifi/netlink.go
package wifi

import (
	"sync"

	"tinygo.org/x/drivers/netlink"
)

// Netlink adapts a TinyGo netlink.Netlinker (e.g. an espat or cyw43439
// driver) to Link. NetConnect blocks, so it runs on its own goroutine and
// only the resulting status is handed back to the control loop.
type Netlink struct {
	dev netlink.Netlinker

	mu     sync.Mutex
	status Status
	ssid   string
	pass   string
	gen    int

	// IPFunc reports the local address when the driver exposes one.
	IPFunc func() string
}

func NewNetlink(dev netlink.Netlinker) *Netlink {
	l := &Netlink{dev: dev}
	dev.NetNotify(l.onEvent)
	return l
}

func (l *Netlink) onEvent(e netlink.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch e {
	case netlink.EventNetUp:
		if l.status != StatusAP {
			l.status = StatusConnected
		}
	case netlink.EventNetDown:
		if l.status == StatusConnected {
			l.status = StatusDisconnected
		}
	}
}

func (l *Netlink) Begin(p *netlink.ConnectParams) error {
	if err := CheckParams(p); err != nil {
		return err
	}
	cp := *p

	l.mu.Lock()
	l.gen++
	gen := l.gen
	if cp.ConnectMode == netlink.ConnectModeAP {
		l.status = StatusAP
	} else {
		l.status = StatusConnecting
		l.ssid = cp.Ssid
		l.pass = cp.Passphrase
	}
	l.mu.Unlock()

	go func() {
		err := l.dev.NetConnect(&cp)
		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.gen || cp.ConnectMode == netlink.ConnectModeAP {
			return
		}
		switch err {
		case nil:
			l.status = StatusConnected
		case netlink.ErrMissingSSID:
			l.status = StatusNoSSID
		default:
			l.status = StatusConnectFailed
		}
	}()
	return nil
}

func (l *Netlink) Disconnect() {
	l.mu.Lock()
	l.gen++
	l.status = StatusDisconnected
	l.mu.Unlock()
	l.dev.NetDisconnect()
}

func (l *Netlink) StopAP() {
	l.mu.Lock()
	wasAP := l.status == StatusAP
	if wasAP {
		l.gen++
		l.status = StatusIdle
	}
	l.mu.Unlock()
	if wasAP {
		l.dev.NetDisconnect()
	}
}

func (l *Netlink) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Netlink) SSID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusConnected {
		return ""
	}
	return l.ssid
}

func (l *Netlink) LocalIP() string {
	if l.IPFunc == nil || l.Status() != StatusConnected {
		return ""
	}
	return l.IPFunc()
}

// RSSI is not part of the netlink contract.
func (l *Netlink) RSSI() int { return 0 }

func (l *Netlink) Scan() ([]Network, error) { return nil, netlink.ErrNotSupported }

// StoredPassphrase returns the passphrase of the last successful association.
func (l *Netlink) StoredPassphrase() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusConnected || l.pass == "" {
		return "", false
	}
	return l.pass, true
}
