// services/wifi/nmcli.go
package wifi

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/drivers/netlink"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const hotspotConn = "Hotspot"

// Nmcli drives NetworkManager through the nmcli CLI for Linux hosts.
// Association commands block, so they run in the background; queries are
// short and run inline.
type Nmcli struct {
	iface string
	run   Runner
	log   *zap.Logger

	mu     sync.Mutex
	status Status
	ssid   string
	gen    int
}

func NewNmcli(iface string, run Runner, log *zap.Logger) *Nmcli {
	if run == nil {
		run = ExecRunner
	}
	return &Nmcli{iface: iface, run: run, log: log}
}

func (n *Nmcli) query(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := n.run(ctx, "nmcli", args...)
	return strings.TrimSpace(string(out)), err
}

func (n *Nmcli) Begin(p *netlink.ConnectParams) error {
	if err := CheckParams(p); err != nil {
		return err
	}
	var args []string
	if p.ConnectMode == netlink.ConnectModeAP {
		args = []string{"device", "wifi", "hotspot", "ifname", n.iface, "con-name", hotspotConn, "ssid", p.Ssid}
		if p.Passphrase != "" {
			args = append(args, "password", p.Passphrase)
		}
	} else {
		args = []string{"device", "wifi", "connect", p.Ssid, "ifname", n.iface}
		if p.Passphrase != "" {
			args = append(args, "password", p.Passphrase)
		}
	}
	timeout := p.ConnectTimeout
	if timeout == 0 {
		timeout = netlink.DefaultConnectTimeout
	}

	n.mu.Lock()
	n.gen++
	gen := n.gen
	ap := p.ConnectMode == netlink.ConnectModeAP
	if ap {
		n.status = StatusAP
	} else {
		n.status = StatusConnecting
		n.ssid = p.Ssid
	}
	n.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := n.run(ctx, "nmcli", args...)
		n.mu.Lock()
		defer n.mu.Unlock()
		if gen != n.gen {
			return
		}
		switch {
		case err == nil && !ap:
			n.status = StatusConnected
		case err != nil && ap:
			n.log.Warn("hotspot failed", zap.Error(err))
			n.status = StatusIdle
		case err != nil:
			n.log.Info("nmcli connect failed", zap.String("ssid", p.Ssid), zap.Error(err))
			n.status = StatusConnectFailed
		}
	}()
	return nil
}

func (n *Nmcli) Disconnect() {
	n.mu.Lock()
	n.gen++
	n.status = StatusDisconnected
	n.mu.Unlock()
	_, _ = n.query("device", "disconnect", n.iface)
}

func (n *Nmcli) StopAP() {
	n.mu.Lock()
	if n.status == StatusAP {
		n.gen++
		n.status = StatusIdle
	}
	n.mu.Unlock()
	_, _ = n.query("connection", "down", hotspotConn)
}

// Status trusts the background result while an attempt is in flight and
// asks NetworkManager otherwise, so link drops are noticed.
func (n *Nmcli) Status() Status {
	n.mu.Lock()
	st := n.status
	n.mu.Unlock()
	if st != StatusConnected {
		return st
	}
	out, err := n.query("-t", "-f", "GENERAL.STATE", "device", "show", n.iface)
	if err != nil {
		return st
	}
	// GENERAL.STATE:100 (connected)
	if _, v, ok := strings.Cut(out, ":"); ok && !strings.HasPrefix(v, "100") {
		n.mu.Lock()
		if n.status == StatusConnected {
			n.status = StatusDisconnected
		}
		st = n.status
		n.mu.Unlock()
	}
	return st
}

func (n *Nmcli) SSID() string {
	if n.Status() != StatusConnected {
		return ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ssid
}

func (n *Nmcli) LocalIP() string {
	out, err := n.query("-t", "-f", "IP4.ADDRESS", "device", "show", n.iface)
	if err != nil {
		return ""
	}
	// IP4.ADDRESS[1]:192.168.1.5/24
	for _, line := range strings.Split(out, "\n") {
		if _, v, ok := strings.Cut(line, ":"); ok && v != "" {
			ip, _, _ := strings.Cut(v, "/")
			return ip
		}
	}
	return ""
}

// RSSI converts NetworkManager's 0..100 signal quality to approximate dBm.
func (n *Nmcli) RSSI() int {
	out, err := n.query("-t", "-f", "ACTIVE,SIGNAL", "device", "wifi", "list", "ifname", n.iface)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "yes:"); ok {
			q, err := strconv.Atoi(v)
			if err != nil {
				return 0
			}
			return q/2 - 100
		}
	}
	return 0
}

func (n *Nmcli) Scan() ([]Network, error) {
	out, err := n.query("-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list", "ifname", n.iface, "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var nets []Network
	for _, line := range strings.Split(out, "\n") {
		f := splitTerse(line)
		if len(f) < 3 || f[0] == "" || seen[f[0]] {
			continue
		}
		q, _ := strconv.Atoi(f[1])
		seen[f[0]] = true
		nets = append(nets, Network{SSID: f[0], RSSI: q/2 - 100, Secure: f[2] != "" && f[2] != "--"})
	}
	return nets, nil
}

// StoredPassphrase reads the PSK NetworkManager holds for the active SSID.
func (n *Nmcli) StoredPassphrase() (string, bool) {
	ssid := n.SSID()
	if ssid == "" {
		return "", false
	}
	out, err := n.query("-s", "-g", "802-11-wireless-security.psk", "connection", "show", ssid)
	if err != nil || out == "" {
		return "", false
	}
	return out, true
}

// splitTerse splits an nmcli -t line on unescaped colons.
func splitTerse(line string) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(out, cur.String())
}
