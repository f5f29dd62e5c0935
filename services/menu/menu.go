// services/menu/menu.go
package menu

import (
	"fmt"
	"time"

	"hwmonitor-go/services/display"
	"hwmonitor-go/services/storage"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

// DefaultTimeout closes the menu after this long without input.
const DefaultTimeout = 10 * time.Second

type Item int

const (
	ItemSystemInfo Item = iota
	ItemRefreshRate
	ItemLayout
	ItemNetworkInfo
	ItemServerConfig
	ItemWiFiConfig
	ItemOTAUpdate
	ItemResetServer
	ItemResetWiFi
	ItemResetAll
	ItemRestart
	itemCount
)

var items = [itemCount]struct {
	label string
	icon  string
}{
	ItemSystemInfo:   {"System Info", "*"},
	ItemRefreshRate:  {"Refresh Rate", "o"},
	ItemLayout:       {"Layout", "="},
	ItemNetworkInfo:  {"Network Info", "~"},
	ItemServerConfig: {"Server Config", "#"},
	ItemWiFiConfig:   {"WiFi Config", "@"},
	ItemOTAUpdate:    {"OTA Update", "^"},
	ItemResetServer:  {"Reset Server", "x"},
	ItemResetWiFi:    {"Reset WiFi", "X"},
	ItemResetAll:     {"Reset All", "!"},
	ItemRestart:      {"Restart", "+"},
}

func (i Item) String() string {
	if i < 0 || i >= itemCount {
		return "Unknown"
	}
	return items[i].label
}

// Sub is the open sub-screen, if any.
type Sub int

const (
	SubNone Sub = iota
	SubRefresh
	SubNetwork
	SubConfirm
)

// Action is what the controller must do after a menu input.
type Action int

const (
	ActionNone Action = iota
	ActionExit
	ActionServerConfig
	ActionWiFiConfig
	ActionOTA
	ActionResetServer
	ActionResetWiFi
	ActionResetAll
	ActionRestart
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionExit:
		return "exit"
	case ActionServerConfig:
		return "server_config"
	case ActionWiFiConfig:
		return "wifi_config"
	case ActionOTA:
		return "ota"
	case ActionResetServer:
		return "reset_server"
	case ActionResetWiFi:
		return "reset_wifi"
	case ActionResetAll:
		return "reset_all"
	case ActionRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// NetInfo feeds the network info screen.
type NetInfo struct {
	SSID   string
	IP     string
	RSSI   int
	Uptime time.Duration
}

type SettingsSaver interface {
	Save(storage.SettingsRecord) error
}

// Menu is the button-driven settings menu. Short press moves or backs out,
// medium press selects or confirms. Destructive work is left to the caller.
type Menu struct {
	disp     display.Display
	settings SettingsSaver
	netinfo  func() NetInfo
	clock    timex.Clock
	log      *zap.Logger

	Timeout time.Duration

	active  bool
	cur     Item
	sub     Sub
	confirm Item
	last    time.Time
	rec     storage.SettingsRecord
}

func New(disp display.Display, settings SettingsSaver, netinfo func() NetInfo,
	clock timex.Clock, log *zap.Logger) *Menu {
	return &Menu{
		disp:     disp,
		settings: settings,
		netinfo:  netinfo,
		clock:    clock,
		log:      log,
		Timeout:  DefaultTimeout,
	}
}

func (m *Menu) Active() bool  { return m.active }
func (m *Menu) Current() Item { return m.cur }
func (m *Menu) Sub() Sub      { return m.sub }

// Settings returns the settings as last edited in the menu.
func (m *Menu) Settings() storage.SettingsRecord { return m.rec }

// Enter opens the menu at the first item.
func (m *Menu) Enter(rec storage.SettingsRecord) {
	m.active = true
	m.cur = ItemSystemInfo
	m.sub = SubNone
	m.rec = rec
	m.touch()
	m.log.Info("menu entered")
	m.drawMain()
}

func (m *Menu) touch() { m.last = m.clock.Now() }

func (m *Menu) exit() Action {
	m.active = false
	m.sub = SubNone
	m.disp.Clear()
	m.log.Info("menu exited")
	return ActionExit
}

// Next handles a short press.
func (m *Menu) Next() Action {
	if !m.active {
		return ActionNone
	}
	m.touch()
	if m.sub != SubNone {
		m.sub = SubNone
		m.drawMain()
		return ActionNone
	}
	m.cur = (m.cur + 1) % itemCount
	m.log.Debug("menu move", zap.Stringer("item", m.cur))
	m.drawMain()
	return ActionNone
}

// Back handles a long press: leave the menu from anywhere.
func (m *Menu) Back() Action {
	if !m.active {
		return ActionNone
	}
	return m.exit()
}

// Update closes the menu after the inactivity timeout.
func (m *Menu) Update() Action {
	if !m.active {
		return ActionNone
	}
	if timex.Since(m.clock, m.last) > m.Timeout {
		m.log.Info("menu timeout")
		return m.exit()
	}
	return ActionNone
}

// Select handles a medium press.
func (m *Menu) Select() Action {
	if !m.active {
		return ActionNone
	}
	m.touch()

	switch m.sub {
	case SubRefresh:
		m.rec.CycleRefreshRate()
		m.save()
		m.drawRefresh()
		return ActionNone
	case SubNetwork:
		m.sub = SubNone
		m.drawMain()
		return ActionNone
	case SubConfirm:
		return m.confirmed()
	}

	m.log.Info("menu select", zap.Stringer("item", m.cur))
	switch m.cur {
	case ItemSystemInfo:
		return m.exit()
	case ItemRefreshRate:
		m.sub = SubRefresh
		m.drawRefresh()
	case ItemLayout:
		if m.rec.DisplayMode == storage.DisplayFull {
			m.rec.DisplayMode = storage.DisplayCompact
		} else {
			m.rec.DisplayMode = storage.DisplayFull
		}
		m.save()
		m.drawMain()
	case ItemNetworkInfo:
		m.sub = SubNetwork
		m.drawNetwork()
	case ItemServerConfig:
		m.exit()
		return ActionServerConfig
	case ItemWiFiConfig:
		m.exit()
		return ActionWiFiConfig
	case ItemOTAUpdate:
		m.exit()
		return ActionOTA
	case ItemResetServer:
		m.openConfirm("RESET SERVER", "WiFi kept!")
	case ItemResetWiFi:
		m.openConfirm("RESET WIFI", "Server kept!")
	case ItemResetAll:
		m.openConfirm("RESET ALL", "WiFi + Server!")
	case ItemRestart:
		m.openConfirm("RESTART", "Hold to confirm")
	}
	return ActionNone
}

func (m *Menu) openConfirm(title, msg string) {
	m.sub = SubConfirm
	m.confirm = m.cur
	m.disp.Clear()
	m.disp.Draw(title, 30, 40, display.Red, 1)
	m.disp.Draw(msg, 20, 70, display.Yellow, 1)
	m.disp.Draw("Hold: Confirm", 15, 110, display.White, 1)
	m.disp.Draw("Press: Cancel", 15, 125, display.Cyan, 1)
}

func (m *Menu) confirmed() Action {
	item := m.confirm
	m.active = false
	m.sub = SubNone
	m.log.Warn("menu confirmed", zap.Stringer("item", item))

	m.disp.Clear()
	switch item {
	case ItemResetServer:
		m.disp.Draw("RESET SERVER", 10, 50, display.Yellow, 2)
		m.disp.Draw("WiFi kept!", 20, 80, display.Green, 1)
		return ActionResetServer
	case ItemResetWiFi:
		m.disp.Draw("RESET WIFI", 10, 50, display.Yellow, 2)
		m.disp.Draw("Server kept!", 15, 80, display.Green, 1)
		return ActionResetWiFi
	case ItemResetAll:
		m.disp.Draw("RESET ALL", 15, 50, display.Red, 2)
		m.disp.Draw("Please wait", 20, 80, display.White, 1)
		return ActionResetAll
	default:
		m.disp.Draw("RESTARTING", 20, 50, display.Yellow, 2)
		return ActionRestart
	}
}

func (m *Menu) save() {
	if err := m.settings.Save(m.rec); err != nil {
		m.log.Warn("settings not saved", zap.Error(err))
	}
}

// ---- rendering ----

func (m *Menu) drawMain() {
	m.disp.Clear()
	m.disp.Draw("MENU", 30, 5, display.Cyan, 2)
	for i := -1; i <= 1; i++ {
		idx := (int(m.cur) + i + int(itemCount)) % int(itemCount)
		y := int16(35 + (i+1)*30)
		it := items[idx]
		if i == 0 {
			m.disp.Draw(">", 5, y, display.Yellow, 2)
			m.disp.Draw(it.icon, 20, y, display.Yellow, 1)
			m.disp.Draw(it.label, 35, y, display.White, 1)
		} else {
			m.disp.Draw(it.icon, 20, y, display.Grey, 1)
			m.disp.Draw(it.label, 35, y, display.Grey, 1)
		}
	}
	m.disp.Draw("Press: Next", 10, 125, display.Cyan, 1)
	m.disp.Draw("Hold: Select", 10, 135, display.Cyan, 1)
}

func (m *Menu) drawRefresh() {
	m.disp.Clear()
	m.disp.Draw("REFRESH RATE", 15, 10, display.Cyan, 1)
	m.disp.Draw("Current:", 20, 40, display.White, 1)
	m.disp.Draw(m.rec.RefreshRateText(), 20, 60, display.Yellow, 2)
	m.disp.Draw("Hold: Change", 10, 100, display.Green, 1)
	m.disp.Draw("Press: Back", 10, 115, display.White, 1)
}

func (m *Menu) drawNetwork() {
	ni := NetInfo{}
	if m.netinfo != nil {
		ni = m.netinfo()
	}
	up := int(ni.Uptime / time.Second)
	m.disp.Clear()
	m.disp.Draw("NETWORK INFO", 15, 5, display.Cyan, 1)
	m.disp.Draw("SSID:", 5, 25, display.White, 1)
	m.disp.Draw(ni.SSID, 5, 40, display.Yellow, 1)
	m.disp.Draw("IP:", 5, 60, display.White, 1)
	m.disp.Draw(ni.IP, 5, 75, display.Green, 1)
	m.disp.Draw("Signal:", 5, 95, display.White, 1)
	m.disp.Draw(fmt.Sprintf("%d dBm", ni.RSSI), 5, 110, display.Cyan, 1)
	m.disp.Draw("Uptime:", 5, 130, display.White, 1)
	m.disp.Draw(fmt.Sprintf("%dm %ds", up/60, up%60), 5, 145, display.White, 1)
}
