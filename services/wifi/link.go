// services/wifi/link.go
package wifi

import (
	"tinygo.org/x/drivers/netlink"
)

// Status is the radio association state as seen by the control loop.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusConnectFailed
	StatusNoSSID
	StatusDisconnected
	StatusAP
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusConnectFailed:
		return "connect_failed"
	case StatusNoSSID:
		return "no_ssid"
	case StatusDisconnected:
		return "disconnected"
	case StatusAP:
		return "ap"
	default:
		return "unknown"
	}
}

// Network is one scan result.
type Network struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"`
	Secure bool   `json:"secure"`
}

// Link is the WiFi radio. Begin never blocks on association: callers poll
// Status from their own loop.
type Link interface {
	// Begin starts station association (ConnectModeSTA) or brings up a
	// soft access point (ConnectModeAP).
	Begin(p *netlink.ConnectParams) error
	Disconnect()
	StopAP()
	Status() Status
	SSID() string
	LocalIP() string
	RSSI() int
	Scan() ([]Network, error)
}

// CredentialRecoverer reads back the passphrase the radio actually
// associated with. The value is best effort and may be empty or garbage.
type CredentialRecoverer interface {
	StoredPassphrase() (string, bool)
}

// CheckParams applies the netlink rules for station and AP parameters.
func CheckParams(p *netlink.ConnectParams) error {
	if p == nil || p.Ssid == "" {
		return netlink.ErrMissingSSID
	}
	if n := len(p.Passphrase); n > 0 && n < 8 {
		return netlink.ErrShortPassphrase
	}
	switch p.ConnectMode {
	case netlink.ConnectModeSTA, netlink.ConnectModeAP:
	default:
		return netlink.ErrConnectModeNoGood
	}
	return nil
}

// Station builds station params. An empty passphrase means "use whatever
// the radio has stored for ssid".
func Station(ssid, passphrase string) *netlink.ConnectParams {
	auth := netlink.AuthType(netlink.AuthTypeWPA2)
	if passphrase == "" {
		auth = netlink.AuthTypeOpen
	}
	return &netlink.ConnectParams{
		ConnectMode: netlink.ConnectModeSTA,
		Ssid:        ssid,
		Passphrase:  passphrase,
		AuthType:    auth,
		Retries:     1,
	}
}

// AccessPoint builds soft-AP params.
func AccessPoint(ssid, passphrase string) *netlink.ConnectParams {
	auth := netlink.AuthType(netlink.AuthTypeWPA2)
	if passphrase == "" {
		auth = netlink.AuthTypeOpen
	}
	return &netlink.ConnectParams{
		ConnectMode: netlink.ConnectModeAP,
		Ssid:        ssid,
		Passphrase:  passphrase,
		AuthType:    auth,
	}
}
