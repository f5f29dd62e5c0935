// services/portal/handlers.go
package portal

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"hwmonitor-go/services/storage"
	"hwmonitor-go/services/wifi"

	"go.uber.org/zap"
)

const defaultHTTPPort = 80

func (p *Portal) routes() {
	r := p.router
	r.HandleFunc("/", p.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/server", p.handleServer).Methods(http.MethodPost)
	r.HandleFunc("/server", redirectTo("/")).Methods(http.MethodGet)
	r.HandleFunc("/wifi", p.handleWiFiPage).Methods(http.MethodGet)
	r.HandleFunc("/wifi", p.handleWiFiSubmit).Methods(http.MethodPost)
	r.HandleFunc("/cancel", p.handleCancel).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/test", p.handleTest).Methods(http.MethodGet)
	r.HandleFunc("/status", p.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/reset", p.handleReset).Methods(http.MethodGet, http.MethodPost)
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func (p *Portal) handleRoot(w http.ResponseWriter, r *http.Request) {
	if p.step != StepServer {
		http.Redirect(w, r, "/wifi", http.StatusFound)
		return
	}
	render(w, http.StatusOK, "server", serverView{Address: p.rec.ServerAddress, Port: portText(p.rec)})
}

// ParsePort maps an empty field to 80 and rejects anything outside 1..65535.
func ParsePort(s string) (uint16, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultHTTPPort, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, false
	}
	return uint16(n), true
}

func (p *Portal) handleServer(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.FormValue("ip"))
	if addr == "" {
		renderError(w, http.StatusBadRequest, "Server address is required.")
		return
	}
	if len(addr) > storage.MaxServerAddress {
		renderError(w, http.StatusBadRequest, "Server address is too long.")
		return
	}
	port, ok := ParsePort(r.FormValue("port"))
	if !ok {
		renderError(w, http.StatusBadRequest, "Port must be between 1 and 65535.")
		return
	}

	p.rec.ServerAddress = addr
	p.rec.ServerPort = port
	if p.step == StepServer {
		p.step = StepWiFi
		p.showWiFiStep()
	}
	p.log.Info("server captured", zap.String("address", addr), zap.Uint16("port", port))
	render(w, http.StatusOK, "server_ok", serverOKView{
		APSSID: p.cfg.APSSID,
		Target: targetText(addr, port),
	})
}

func (p *Portal) handleWiFiPage(w http.ResponseWriter, r *http.Request) {
	if p.step == StepServer {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	nets, err := p.link.Scan()
	if err != nil {
		p.log.Info("scan unavailable", zap.Error(err))
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i].RSSI > nets[j].RSSI })
	render(w, http.StatusOK, "wifi", wifiView{
		Target:   targetText(p.rec.ServerAddress, p.rec.ServerPort),
		Networks: nets,
		Error:    p.wifiErr,
	})
}

func (p *Portal) handleWiFiSubmit(w http.ResponseWriter, r *http.Request) {
	if p.step == StepServer {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	ssid := strings.TrimSpace(r.FormValue("ssid"))
	pass := r.FormValue("password")
	switch {
	case ssid == "":
		renderError(w, http.StatusBadRequest, "WiFi network name is required.")
		return
	case len(ssid) > storage.MaxSSID:
		renderError(w, http.StatusBadRequest, "WiFi network name is too long.")
		return
	case len(pass) > storage.MaxPassword:
		renderError(w, http.StatusBadRequest, "WiFi password is too long.")
		return
	case p.step != StepWiFi:
		renderError(w, http.StatusConflict, "A connection attempt is already running.")
		return
	}
	p.pending = &wifiRequest{ssid: ssid, password: pass}
	p.log.Info("wifi submitted", zap.String("ssid", ssid), zap.Int("password_len", len(pass)))
	render(w, http.StatusAccepted, "testing", nil)
}

func (p *Portal) handleCancel(w http.ResponseWriter, r *http.Request) {
	p.Cancel()
	render(w, http.StatusOK, "message", messageView{Title: "Cancelled", Text: "Setup cancelled. The device is restarting."})
}

func (p *Portal) handleTest(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "testing", nil)
}

// Status is the /status document.
type Status struct {
	ServerIP        string `json:"serverIP"`
	ServerPort      uint16 `json:"serverPort"`
	HasServerConfig bool   `json:"hasServerConfig"`
	HasWiFiConfig   bool   `json:"hasWifiConfig"`
	Step            string `json:"step"`
	WiFiError       string `json:"wifiError,omitempty"`
}

func (p *Portal) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Status{
		ServerIP:        p.rec.ServerAddress,
		ServerPort:      p.rec.ServerPort,
		HasServerConfig: p.rec.HasServer(),
		HasWiFiConfig:   p.rec.HasWiFi(),
		Step:            p.step.String(),
		WiFiError:       p.wifiErr,
	})
}

func (p *Portal) handleReset(w http.ResponseWriter, r *http.Request) {
	var rec storage.ConfigRecord
	rec.Clear()
	if err := p.store.Save(rec); err != nil {
		p.log.Error("reset save failed", zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Reset failed: "+err.Error())
		return
	}
	p.rec = rec
	p.reset = true
	p.log.Warn("config reset from portal")
	render(w, http.StatusOK, "message", messageView{Title: "Reset", Text: "Configuration cleared. Rebooting..."})
}

func portText(r storage.ConfigRecord) string {
	if !r.HasServer() {
		return ""
	}
	return strconv.Itoa(int(r.ServerPort))
}

// targetText hides the default HTTP port.
func targetText(addr string, port uint16) string {
	if port == defaultHTTPPort {
		return addr
	}
	return addr + ":" + strconv.Itoa(int(port))
}

type serverView struct {
	Address string
	Port    string
}

type serverOKView struct {
	APSSID string
	Target string
}

type wifiView struct {
	Target   string
	Networks []wifi.Network
	Error    string
}

type messageView struct {
	Title string
	Text  string
}
