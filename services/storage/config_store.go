// services/storage/config_store.go
package storage

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"hwmonitor-go/errcode"
	"hwmonitor-go/x/strx"

	"go.uber.org/zap"
)

// Image geometry. The two records sit at disjoint offsets so their
// read/write lifecycles never overlap.
const (
	EEPROMSize     = 512
	ConfigOffset   = 0
	SettingsOffset = 200
)

const (
	configMagic   uint16 = 0x4553 // "ES"
	configVersion uint8  = 1

	addrLen = 64
	ssidLen = 32
	passLen = 64

	offMagic    = 0
	offVersion  = 2
	offAddr     = 3
	offPort     = offAddr + addrLen
	offSSID     = offPort + 2
	offPass     = offSSID + ssidLen
	offChecksum = offPass + passLen
	configSize  = offChecksum + 1

	DefaultServerPort uint16 = 8080
)

// Longest values that survive a round trip (one byte per field is the NUL).
const (
	MaxServerAddress = addrLen - 1
	MaxSSID          = ssidLen - 1
	MaxPassword      = passLen - 1
)

// ConfigRecord is the persisted connection configuration.
type ConfigRecord struct {
	ServerAddress string // IP or hostname
	ServerPort    uint16
	SSID          string
	Password      string // may be empty: the radio keeps its own copy
}

// Clear zeroes all fields and restores the default port. It does not touch
// storage.
func (r *ConfigRecord) Clear() {
	*r = ConfigRecord{ServerPort: DefaultServerPort}
}

// ClearServer drops the server address, keeping WiFi credentials.
func (r *ConfigRecord) ClearServer() {
	r.ServerAddress = ""
	r.ServerPort = DefaultServerPort
}

// ClearWiFi drops the WiFi credentials, keeping the server address.
func (r *ConfigRecord) ClearWiFi() {
	r.SSID = ""
	r.Password = ""
}

func (r ConfigRecord) HasServer() bool { return r.ServerAddress != "" }
func (r ConfigRecord) HasWiFi() bool   { return r.SSID != "" }

// ServerURL returns http://<address>:<port><path>.
func (r ConfigRecord) ServerURL(path string) string {
	return "http://" + r.ServerAddress + ":" + strconv.Itoa(int(r.ServerPort)) + path
}

func xorSum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}

// encode lays the record out with magic, version and checksum stamped.
func (r ConfigRecord) encode() []byte {
	b := make([]byte, configSize)
	binary.LittleEndian.PutUint16(b[offMagic:], configMagic)
	b[offVersion] = configVersion
	strx.PutC(b[offAddr:offAddr+addrLen], r.ServerAddress)
	binary.LittleEndian.PutUint16(b[offPort:], r.ServerPort)
	strx.PutC(b[offSSID:offSSID+ssidLen], r.SSID)
	strx.PutC(b[offPass:offPass+passLen], r.Password)
	b[offChecksum] = xorSum(b[:offChecksum])
	return b
}

func decodeConfig(b []byte) (ConfigRecord, error) {
	var r ConfigRecord
	r.Clear()
	if len(b) < configSize {
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "short record")
	}
	if m := binary.LittleEndian.Uint16(b[offMagic:]); m != configMagic {
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "bad magic 0x"+strconv.FormatUint(uint64(m), 16))
	}
	if v := b[offVersion]; v != configVersion {
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "unsupported version "+strconv.Itoa(int(v)))
	}
	if want := xorSum(b[:offChecksum]); b[offChecksum] != want {
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "checksum mismatch")
	}
	r = ConfigRecord{
		ServerAddress: strx.GetC(b[offAddr : offAddr+addrLen]),
		ServerPort:    binary.LittleEndian.Uint16(b[offPort:]),
		SSID:          strx.GetC(b[offSSID : offSSID+ssidLen]),
		Password:      strx.GetC(b[offPass : offPass+passLen]),
	}
	switch {
	case r.ServerAddress == "":
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "server address empty")
	case r.SSID == "":
		return r, errcode.New(errcode.InvalidRecord, "config.decode", "ssid empty")
	}
	return r, nil
}

// -----------------------------------------------------------------------------
// ConfigStore
// -----------------------------------------------------------------------------

type ConfigStore struct {
	ee  *EEPROM
	log *zap.Logger
}

func NewConfigStore(ee *EEPROM, log *zap.Logger) *ConfigStore {
	return &ConfigStore{ee: ee, log: log}
}

// Load reads and validates the record. Any failure is an InvalidRecord
// error; the returned record then holds whatever fields survived the
// integrity checks (cleared defaults if the frame itself is bad).
func (s *ConfigStore) Load() (ConfigRecord, error) {
	raw := make([]byte, configSize)
	if err := s.ee.Get(ConfigOffset, raw); err != nil {
		var r ConfigRecord
		r.Clear()
		return r, errcode.Wrap(errcode.InvalidRecord, "config.load", err)
	}
	r, err := decodeConfig(raw)
	if err != nil {
		s.log.Info("no valid config", zap.Error(err))
		return r, err
	}
	s.log.Info("config loaded",
		zap.String("server", r.ServerAddress),
		zap.Uint16("port", r.ServerPort),
		zap.String("ssid", r.SSID),
		zap.Bool("password_set", r.Password != ""))
	return r, nil
}

// Save stamps and writes r, commits, then reads the medium back and compares
// the address and SSID fields byte for byte.
func (s *ConfigStore) Save(r ConfigRecord) error {
	b := r.encode()
	if err := s.ee.Put(ConfigOffset, b); err != nil {
		return err
	}
	if err := s.ee.Commit(); err != nil {
		s.log.Error("config commit failed", zap.Error(err))
		return err
	}

	verify := make([]byte, configSize)
	if err := s.ee.ReadBack(ConfigOffset, verify); err != nil {
		return errcode.Wrap(errcode.VerifyFailed, "config.save", err)
	}
	if !bytes.Equal(verify[offAddr:offAddr+addrLen], b[offAddr:offAddr+addrLen]) {
		s.log.Error("config verify failed", zap.String("field", "server_address"))
		return errcode.New(errcode.VerifyFailed, "config.save", "server address mismatch")
	}
	if !bytes.Equal(verify[offSSID:offSSID+ssidLen], b[offSSID:offSSID+ssidLen]) {
		s.log.Error("config verify failed", zap.String("field", "ssid"))
		return errcode.New(errcode.VerifyFailed, "config.save", "ssid mismatch")
	}
	s.log.Info("config saved",
		zap.String("server", r.ServerAddress),
		zap.Uint16("port", r.ServerPort),
		zap.String("ssid", r.SSID))
	return nil
}
