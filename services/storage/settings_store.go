// services/storage/settings_store.go
package storage

import (
	"encoding/binary"
	"time"

	"hwmonitor-go/errcode"
	"hwmonitor-go/x/mathx"

	"go.uber.org/zap"
)

const (
	settingsMagic uint16 = 0xFEED
	settingsSize         = 2 + 2 + 1 + 10

	MinRefreshMs     = 500
	MaxRefreshMs     = 60000
	DefaultRefreshMs = 5000
)

// Display layouts.
const (
	DisplayFull    uint8 = 0
	DisplayCompact uint8 = 1
)

// SettingsRecord holds user preferences.
type SettingsRecord struct {
	RefreshMs   uint16
	DisplayMode uint8
}

func DefaultSettings() SettingsRecord {
	return SettingsRecord{RefreshMs: DefaultRefreshMs, DisplayMode: DisplayFull}
}

func (r SettingsRecord) RefreshInterval() time.Duration {
	return time.Duration(r.RefreshMs) * time.Millisecond
}

// SetRefreshInterval accepts values in [500, 60000] ms and reports whether
// the value was taken.
func (r *SettingsRecord) SetRefreshInterval(ms int) bool {
	if !mathx.Between(ms, MinRefreshMs, MaxRefreshMs) {
		return false
	}
	r.RefreshMs = uint16(ms)
	return true
}

// CycleRefreshRate steps 5s -> 3s -> 1s -> 0.5s -> 5s. Custom values jump to 5s.
func (r *SettingsRecord) CycleRefreshRate() {
	switch r.RefreshMs {
	case 5000:
		r.RefreshMs = 3000
	case 3000:
		r.RefreshMs = 1000
	case 1000:
		r.RefreshMs = 500
	default:
		r.RefreshMs = 5000
	}
}

func (r SettingsRecord) RefreshRateText() string {
	switch r.RefreshMs {
	case 500:
		return "0.5s (2Hz)"
	case 1000:
		return "1s (1Hz)"
	case 3000:
		return "3s (0.33Hz)"
	case 5000:
		return "5s (0.2Hz)"
	default:
		return "Custom"
	}
}

func (r SettingsRecord) encode() []byte {
	b := make([]byte, settingsSize)
	binary.LittleEndian.PutUint16(b[0:], settingsMagic)
	binary.LittleEndian.PutUint16(b[2:], r.RefreshMs)
	b[4] = r.DisplayMode
	return b
}

// -----------------------------------------------------------------------------
// SettingsStore
// -----------------------------------------------------------------------------

type SettingsStore struct {
	ee  *EEPROM
	log *zap.Logger
}

func NewSettingsStore(ee *EEPROM, log *zap.Logger) *SettingsStore {
	return &SettingsStore{ee: ee, log: log}
}

// Load validates the magic only. An out-of-range interval is clamped.
func (s *SettingsStore) Load() (SettingsRecord, error) {
	b := make([]byte, settingsSize)
	if err := s.ee.Get(SettingsOffset, b); err != nil {
		return DefaultSettings(), errcode.Wrap(errcode.InvalidRecord, "settings.load", err)
	}
	if binary.LittleEndian.Uint16(b[0:]) != settingsMagic {
		return DefaultSettings(), errcode.New(errcode.InvalidRecord, "settings.load", "bad magic")
	}
	r := SettingsRecord{
		RefreshMs:   mathx.Clamp(binary.LittleEndian.Uint16(b[2:]), MinRefreshMs, MaxRefreshMs),
		DisplayMode: b[4],
	}
	return r, nil
}

func (s *SettingsStore) Save(r SettingsRecord) error {
	if err := s.ee.Put(SettingsOffset, r.encode()); err != nil {
		return err
	}
	if err := s.ee.Commit(); err != nil {
		s.log.Error("settings save failed", zap.Error(err))
		return err
	}
	s.log.Debug("settings saved", zap.Uint16("refresh_ms", r.RefreshMs))
	return nil
}

// LoadOrReset never fails: an invalid record is replaced by the defaults,
// which are saved immediately.
func (s *SettingsStore) LoadOrReset() SettingsRecord {
	r, err := s.Load()
	if err == nil {
		s.log.Info("settings loaded", zap.Uint16("refresh_ms", r.RefreshMs))
		return r
	}
	s.log.Info("no valid settings, using defaults", zap.Error(err))
	r = DefaultSettings()
	if err := s.Save(r); err != nil {
		s.log.Warn("default settings not persisted", zap.Error(err))
	}
	return r
}
