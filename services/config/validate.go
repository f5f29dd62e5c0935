package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// ACCESS POINT
	// ------------------------------------------------------------

	if cfg.AP.SSID == "" {
		return fmt.Errorf("ap.ssid must not be empty")
	}
	if n := len(cfg.AP.Passphrase); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("ap.passphrase must be empty or 8..63 characters, got %d", n)
	}

	// ------------------------------------------------------------
	// BACKENDS
	// ------------------------------------------------------------

	switch cfg.WiFi.Backend {
	case "sim", "nmcli":
	default:
		return fmt.Errorf("wifi.backend %q is not supported", cfg.WiFi.Backend)
	}
	if cfg.WiFi.Backend == "nmcli" && cfg.WiFi.Interface == "" {
		return fmt.Errorf("wifi.interface is required for the nmcli backend")
	}
	for i, n := range cfg.WiFi.SimNetworks {
		if n.SSID == "" || len(n.SSID) > 32 {
			return fmt.Errorf("wifi.sim_networks[%d]: ssid must be 1..32 characters", i)
		}
	}

	switch cfg.Button.Backend {
	case "sim", "gpiocdev":
	default:
		return fmt.Errorf("button.backend %q is not supported", cfg.Button.Backend)
	}
	if cfg.Button.Backend == "gpiocdev" && (cfg.Button.Chip == "" || cfg.Button.Line < 0) {
		return fmt.Errorf("button.chip and button.line are required for the gpiocdev backend")
	}

	switch cfg.Display.Backend {
	case "console", "framebuffer", "st7735", "st7789", "ili9341":
	default:
		return fmt.Errorf("display.backend %q is not supported", cfg.Display.Backend)
	}
	if cfg.Display.Width <= 0 || cfg.Display.Height <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", cfg.Display.Width, cfg.Display.Height)
	}

	// ------------------------------------------------------------
	// BUTTON THRESHOLDS
	// ------------------------------------------------------------

	b := cfg.Button
	if b.Debounce <= 0 || b.Medium <= b.Debounce || b.Long <= b.Medium {
		return fmt.Errorf("button thresholds must ascend: debounce=%v medium=%v long=%v", b.Debounce, b.Medium, b.Long)
	}
	if b.MultiClickCount < 2 || b.MultiClickWindow <= 0 {
		return fmt.Errorf("button multi-click needs count >= 2 and a positive window")
	}

	// ------------------------------------------------------------
	// NETWORK POLICY
	// ------------------------------------------------------------

	s := cfg.Supervisor
	if s.WiFiBudget <= 0 || s.ServerBudget <= 0 {
		return fmt.Errorf("supervisor budgets must be positive")
	}
	if s.ReconnectBase <= 0 || s.ReconnectLimit < s.ReconnectBase || s.ReconnectStep < 0 {
		return fmt.Errorf("supervisor reconnect timing is inconsistent: base=%v step=%v limit=%v",
			s.ReconnectBase, s.ReconnectStep, s.ReconnectLimit)
	}
	if cfg.Telemetry.Path == "" || cfg.Telemetry.Path[0] != '/' {
		return fmt.Errorf("telemetry.path must start with '/'")
	}
	if cfg.Portal.ServerTimeout <= 0 || cfg.Portal.WiFiTimeout <= 0 {
		return fmt.Errorf("portal timeouts must be positive")
	}

	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is not supported", cfg.Log.Format)
	}
	return nil
}
