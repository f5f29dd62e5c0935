package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"hwmonitor-go/bus"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Runtime configuration
// -----------------------------------------------------------------------------

const configPrefix = "config"

type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	AP         APConfig         `yaml:"ap"`
	WiFi       WiFiConfig       `yaml:"wifi"`
	Button     ButtonConfig     `yaml:"button"`
	Display    DisplayConfig    `yaml:"display"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Portal     PortalConfig     `yaml:"portal"`
	OTA        OTAConfig        `yaml:"ota"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name       string `yaml:"name"`
	EEPROMPath string `yaml:"eeprom_path"` // empty keeps the image in RAM
}

// ---- RADIO ----

type APConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	Listen     string `yaml:"listen"`
}

type WiFiConfig struct {
	Backend        string        `yaml:"backend"` // sim | nmcli
	Interface      string        `yaml:"interface"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SimNetworks    []SimNetwork  `yaml:"sim_networks"`
}

// SimNetwork is a network the simulated radio can see.
type SimNetwork struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	RSSI       int    `yaml:"rssi"`
}

// ---- INPUT / OUTPUT ----

type ButtonConfig struct {
	Backend          string        `yaml:"backend"` // sim | gpiocdev
	Chip             string        `yaml:"chip"`
	Line             int           `yaml:"line"`
	ActiveLow        bool          `yaml:"active_low"`
	Debounce         time.Duration `yaml:"debounce"`
	Medium           time.Duration `yaml:"medium"`
	Long             time.Duration `yaml:"long"`
	MultiClickWindow time.Duration `yaml:"multi_click_window"`
	MultiClickCount  int           `yaml:"multi_click_count"`
}

type DisplayConfig struct {
	Backend string `yaml:"backend"` // console | framebuffer | st7735 | st7789 | ili9341
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Device  string `yaml:"device"` // framebuffer output, e.g. /dev/fb1; empty renders in memory
}

// ---- NETWORK POLICY ----

type TelemetryConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type SupervisorConfig struct {
	WiFiBudget     int           `yaml:"wifi_budget"`
	ServerBudget   int           `yaml:"server_budget"`
	Debounce       time.Duration `yaml:"debounce"`
	ReconnectBase  time.Duration `yaml:"reconnect_base"`
	ReconnectStep  time.Duration `yaml:"reconnect_step"`
	ReconnectLimit time.Duration `yaml:"reconnect_limit"`
}

type PortalConfig struct {
	ServerTimeout time.Duration `yaml:"server_timeout"`
	WiFiTimeout   time.Duration `yaml:"wifi_timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

type OTAConfig struct {
	Listen       string `yaml:"listen"`
	FirmwarePath string `yaml:"firmware_path"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables the mirror
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{Name: "hwmonitor"},
		AP: APConfig{
			SSID:       "ESP8266-Config",
			Passphrase: "12345678",
			Listen:     ":8080",
		},
		WiFi: WiFiConfig{Backend: "sim", ConnectTimeout: 15 * time.Second},
		Button: ButtonConfig{
			Backend:          "sim",
			Chip:             "gpiochip0",
			ActiveLow:        true,
			Debounce:         50 * time.Millisecond,
			Medium:           2 * time.Second,
			Long:             7 * time.Second,
			MultiClickWindow: 2 * time.Second,
			MultiClickCount:  3,
		},
		Display:   DisplayConfig{Backend: "console", Width: 128, Height: 160},
		Telemetry: TelemetryConfig{Path: "/system-info", Timeout: 5 * time.Second},
		Supervisor: SupervisorConfig{
			WiFiBudget:     5,
			ServerBudget:   10,
			Debounce:       10 * time.Second,
			ReconnectBase:  5 * time.Second,
			ReconnectStep:  5 * time.Second,
			ReconnectLimit: 30 * time.Second,
		},
		Portal: PortalConfig{
			ServerTimeout: 5 * time.Minute,
			WiFiTimeout:   3 * time.Minute,
			ProbeTimeout:  5 * time.Second,
		},
		OTA:  OTAConfig{Listen: ":8081", FirmwarePath: "firmware.bin"},
		MQTT: MQTTConfig{ClientID: "hwmonitor", Prefix: "hwmonitor"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

// Load resolves the configuration for a board: built-in defaults, then the
// embedded profile for board (if any), then the YAML file at path (if
// non-empty), then .env and HWMON_* environment overrides.
func Load(board, path string) (Config, error) {
	cfg := Default()

	if board != "" {
		raw, ok := EmbeddedProfileLookup(board)
		if !ok {
			return cfg, errors.New("no embedded profile for board: " + board)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("profile %s: %w", board, err)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()
	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Device.EEPROMPath = getEnv("HWMON_EEPROM_PATH", cfg.Device.EEPROMPath)
	cfg.AP.SSID = getEnv("HWMON_AP_SSID", cfg.AP.SSID)
	cfg.AP.Passphrase = getEnv("HWMON_AP_PASSPHRASE", cfg.AP.Passphrase)
	cfg.AP.Listen = getEnv("HWMON_PORTAL_LISTEN", cfg.AP.Listen)
	cfg.WiFi.Backend = getEnv("HWMON_WIFI_BACKEND", cfg.WiFi.Backend)
	cfg.WiFi.Interface = getEnv("HWMON_WIFI_IFACE", cfg.WiFi.Interface)
	cfg.Button.Backend = getEnv("HWMON_BUTTON_BACKEND", cfg.Button.Backend)
	cfg.Button.Chip = getEnv("HWMON_BUTTON_CHIP", cfg.Button.Chip)
	cfg.Button.Line = getEnvInt("HWMON_BUTTON_LINE", cfg.Button.Line)
	cfg.Display.Backend = getEnv("HWMON_DISPLAY_BACKEND", cfg.Display.Backend)
	cfg.Display.Device = getEnv("HWMON_DISPLAY_DEVICE", cfg.Display.Device)
	cfg.OTA.Listen = getEnv("HWMON_OTA_LISTEN", cfg.OTA.Listen)
	cfg.OTA.FirmwarePath = getEnv("HWMON_FIRMWARE_PATH", cfg.OTA.FirmwarePath)
	cfg.MQTT.Broker = getEnv("HWMON_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.User = getEnv("HWMON_MQTT_USER", cfg.MQTT.User)
	cfg.MQTT.Password = getEnv("HWMON_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.Log.Level = getEnv("HWMON_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("HWMON_LOG_FORMAT", cfg.Log.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// -----------------------------------------------------------------------------
// Bus publication
// -----------------------------------------------------------------------------

// Publish exposes the non-secret sections as retained config/<section>
// messages so other services can read the active board profile.
func Publish(conn *bus.Connection, cfg Config) {
	radio := cfg.WiFi
	radio.SimNetworks = nil // passphrases
	sections := map[string]any{
		"device":     cfg.Device,
		"wifi":       radio,
		"button":     cfg.Button,
		"display":    cfg.Display,
		"telemetry":  cfg.Telemetry,
		"supervisor": cfg.Supervisor,
		"portal":     cfg.Portal,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}
