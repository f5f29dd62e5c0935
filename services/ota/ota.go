// services/ota/ota.go
package ota

import (
	"html/template"
	"io"
	"net/http"
	"time"

	"hwmonitor-go/services/display"
	"hwmonitor-go/services/webserver"
	"hwmonitor-go/x/timex"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// FieldName is the multipart field carrying the image.
const FieldName = "firmware"

// Mode is the firmware-upload web mode.
type Mode struct {
	listen string
	up     Updater
	disp   display.Display
	clock  timex.Clock
	log    *zap.Logger

	web    *webserver.Server
	router *mux.Router

	ClosedDelay time.Duration

	active  bool
	ip      string
	updated bool
	version string
}

func New(listen, version string, up Updater, disp display.Display, clock timex.Clock, log *zap.Logger) *Mode {
	m := &Mode{
		listen:      listen,
		version:     version,
		up:          up,
		disp:        disp,
		clock:       clock,
		log:         log,
		router:      mux.NewRouter(),
		ClosedDelay: 1500 * time.Millisecond,
	}
	m.web = webserver.New(log.Named("web"), 4, 0)
	m.web.Handle("/", m.router)
	m.router.HandleFunc("/", m.handleRoot).Methods(http.MethodGet)
	m.router.HandleFunc("/update", m.handleUpdatePage).Methods(http.MethodGet)
	m.router.HandleFunc("/upload", m.handleUpload).Methods(http.MethodPost)
	m.router.Handle("/upload", http.RedirectHandler("/update", http.StatusSeeOther)).Methods(http.MethodGet)
	return m
}

func (m *Mode) Active() bool          { return m.active }
func (m *Mode) Handler() http.Handler { return m.router }
func (m *Mode) Addr() string          { return m.web.Addr() }

// Start serves the upload pages and shows where to find them.
func (m *Mode) Start(ip string) error {
	if m.active {
		return nil
	}
	if err := m.web.Start(m.listen); err != nil {
		m.log.Error("ota server failed", zap.Error(err))
		return err
	}
	m.active, m.ip, m.updated = true, ip, false
	m.log.Info("ota mode active", zap.String("url", "http://"+ip+"/update"))

	m.disp.Clear()
	m.disp.Draw("FIRMWARE", 10, 5, display.Cyan, 2)
	m.disp.Draw("UPDATE MODE", 10, 25, display.Cyan, 2)
	m.disp.Draw("1. Open browser", 5, 55, display.White, 1)
	m.disp.Draw("2. Enter URL:", 5, 70, display.White, 1)
	m.disp.Draw(ip, 10, 85, display.Green, 1)
	m.disp.Draw("/update", 10, 100, display.Green, 1)
	m.disp.Draw("Exit: hold", 5, 115, display.Yellow, 1)
	return nil
}

// Stop closes the web server and shows the closed screen.
func (m *Mode) Stop() {
	if !m.active {
		return
	}
	m.web.Stop()
	m.up.Abort()
	m.active = false
	m.log.Info("ota mode closed")

	m.disp.Clear()
	m.disp.Draw("UPDATE", 20, 60, display.Yellow, 2)
	m.disp.Draw("MODE", 20, 85, display.Yellow, 2)
	m.disp.Draw("CLOSED", 20, 110, display.White, 2)
	m.clock.Sleep(m.ClosedDelay)
}

// Close releases the web server without touching the screen.
func (m *Mode) Close() {
	if !m.active {
		return
	}
	m.web.Stop()
	m.active = false
}

// Handle services pending requests and reports whether an image was
// installed (the device must restart).
func (m *Mode) Handle() bool {
	if !m.active {
		return false
	}
	m.web.HandleClient()
	return m.updated
}

func (m *Mode) handleRoot(w http.ResponseWriter, r *http.Request) {
	m.page(w, "root")
}

func (m *Mode) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	m.page(w, "update")
}

func (m *Mode) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "FAIL: "+err.Error(), http.StatusBadRequest)
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			http.Error(w, "FAIL: no "+FieldName+" field", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "FAIL: "+err.Error(), http.StatusBadRequest)
			return
		}
		if part.FormName() != FieldName {
			part.Close()
			continue
		}
		n, err := m.install(part)
		part.Close()
		if err != nil {
			m.log.Error("upload failed", zap.Int64("bytes", n), zap.Error(err))
			m.disp.ShowStatus("UPDATE FAIL", err.Error())
			http.Error(w, "FAIL", http.StatusInternalServerError)
			return
		}
		m.log.Info("upload success", zap.String("file", part.FileName()), zap.Int64("bytes", n))
		m.disp.ShowStatus("UPDATE OK", "Rebooting...")
		m.updated = true
		io.WriteString(w, "OK")
		return
	}
}

func (m *Mode) install(src io.Reader) (int64, error) {
	m.disp.ShowStatus("Updating", "Do not power off")
	if err := m.up.Begin(-1); err != nil {
		return 0, err
	}
	n, err := io.Copy(m.up, src)
	if err != nil {
		m.up.Abort()
		return n, err
	}
	if err := m.up.End(); err != nil {
		m.log.Warn("image rejected, slot aborted", zap.Int64("bytes", n), zap.Error(err))
		m.up.Abort()
		return n, err
	}
	return n, nil
}

var pages = template.Must(template.New("ota").Parse(`
{{define "root"}}<!DOCTYPE html><html><head><meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1"><title>System Monitor</title></head>
<body><h1>System Monitor</h1><p>Firmware {{.}}</p><p><a href="/update">Firmware update</a></p></body></html>{{end}}
{{define "update"}}<!DOCTYPE html><html><head><meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1"><title>Firmware Update</title></head>
<body><h1>Firmware Update</h1><p>Current version {{.}}</p>
<form method="POST" action="/upload" enctype="multipart/form-data">
<input type="file" name="firmware" accept=".bin" required>
<button type="submit">Upload</button>
</form></body></html>{{end}}
`))

func (m *Mode) page(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, m.version); err != nil {
		m.log.Warn("render failed", zap.String("page", name), zap.Error(err))
	}
}
