package config

// -----------------------------------------------------------------------------
// Embedded board profiles
//
// Key: board name passed on the command line.
// Val: YAML overlay applied on top of Default().
// -----------------------------------------------------------------------------

const profileSim = `
device:
  name: hwmonitor-sim
wifi:
  backend: sim
  sim_networks:
    - {ssid: HomeNet, passphrase: supersecret, rssi: -48}
    - {ssid: Cafe, passphrase: "", rssi: -80}
button:
  backend: sim
display:
  backend: console
log:
  format: console
`

const profilePiGPIO = `
device:
  name: hwmonitor-pi
  eeprom_path: /var/lib/hwmonitor/eeprom.bin
wifi:
  backend: nmcli
  interface: wlan0
button:
  backend: gpiocdev
  chip: gpiochip0
  line: 17
  active_low: true
display:
  backend: framebuffer
  device: /dev/fb1
  width: 240
  height: 320
`

const profileST7789 = `
device:
  name: hwmonitor-tft
display:
  backend: st7789
  width: 240
  height: 240
`

var embeddedProfiles = map[string][]byte{
	"sim":    []byte(profileSim),
	"pi":     []byte(profilePiGPIO),
	"st7789": []byte(profileST7789),
}

// EmbeddedProfileLookup allows overriding how board profiles are resolved.
var EmbeddedProfileLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedProfiles[board]
	return b, ok
}
