package types

import "time"

// ---- Operating mode ----

// Mode is the single active operating mode of the device.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeProvisioning
	ModeMenu
	ModeOtaWeb
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeProvisioning:
		return "provisioning"
	case ModeMenu:
		return "menu"
	case ModeOtaWeb:
		return "ota_web"
	default:
		return "unknown"
	}
}

// ---- Button events ----

type ButtonKind uint8

const (
	ButtonNone ButtonKind = iota
	ButtonShort
	ButtonMedium
	ButtonLong
	ButtonMultiClick
)

func (k ButtonKind) String() string {
	switch k {
	case ButtonShort:
		return "short"
	case ButtonMedium:
		return "medium"
	case ButtonLong:
		return "long"
	case ButtonMultiClick:
		return "multi_click"
	default:
		return "none"
	}
}

// ButtonEvent is one classified gesture. Duration is set for medium and
// long presses; Count for multi-clicks. Hold numbers the physical press
// that produced the event, so a medium and a long from one hold share it.
type ButtonEvent struct {
	Kind     ButtonKind
	Duration time.Duration
	Count    int
	Hold     uint32
}

// ---- Retained status payloads ----

// Link is the reachability reported for WiFi or the telemetry server.
type Link string

const (
	LinkUp      Link = "up"
	LinkDown    Link = "down"
	LinkUnknown Link = "unknown"
)

type ModeStatus struct {
	Mode string `json:"mode"`
	TS   int64  `json:"ts_ms"`
}

type ConnectivityStatus struct {
	WiFi           Link   `json:"wifi"`
	Server         Link   `json:"server"`
	WiFiFailures   int    `json:"wifi_failures"`
	ServerFailures int    `json:"server_failures"`
	IP             string `json:"ip,omitempty"`
	TS             int64  `json:"ts_ms"`
}

type DeviceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	TS      int64  `json:"ts_ms"`
}
