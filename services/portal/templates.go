// services/portal/templates.go
package portal

import (
	"bytes"
	"html/template"
	"net/http"
)

const baseCSS = `*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,'Segoe UI',Roboto,sans-serif;background:linear-gradient(135deg,#667eea,#764ba2);min-height:100vh;padding:20px}
.c{max-width:560px;margin:32px auto;background:#fff;border-radius:12px;overflow:hidden}
.h{background:#2c3e50;color:#fff;padding:20px;text-align:center}
.b{padding:24px}
.s{background:#f8f9fa;padding:12px;border-left:4px solid #667eea;border-radius:8px;margin-bottom:20px}
.e{background:#f8d7da;color:#721c24;padding:12px;border-radius:8px;margin-bottom:20px}
label{display:block;margin:12px 0 6px;font-weight:500}
input,select{width:100%;padding:10px;border:2px solid #e9ecef;border-radius:8px}
button{width:100%;margin-top:16px;padding:12px;border:0;border-radius:8px;color:#fff;background:#667eea;font-weight:600}
small{color:#6c757d}`

var pages = template.Must(template.New("portal").Parse(`
{{define "head"}}<!DOCTYPE html><html><head><meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.}}</title><style>` + baseCSS + `</style></head><body><div class="c">{{end}}
{{define "foot"}}</div></body></html>{{end}}

{{define "server"}}{{template "head" "Device Setup"}}
<div class="h"><h1>System Monitor</h1><p>Server configuration</p></div>
<div class="b">
<div class="s"><strong>Step 1 of 2</strong><br><small>Telemetry server connection</small></div>
<form action="/server" method="POST">
<label>Server address (IP or domain)</label>
<input type="text" name="ip" value="{{.Address}}" placeholder="192.168.1.100 or example.com" required>
<label>Server port (optional)</label>
<input type="number" name="port" value="{{.Port}}" placeholder="80 (default)" min="1" max="65535">
<small>Leave empty for port 80.</small>
<button type="submit">Continue to WiFi setup</button>
</form>
<form action="/cancel" method="POST"><button type="submit">Cancel</button></form>
</div>{{template "foot"}}{{end}}

{{define "server_ok"}}{{template "head" "Server Saved"}}
<div class="h"><h1>Server set</h1><p>Step 1 completed</p></div>
<div class="b">
<div class="s"><strong>{{.Target}}</strong></div>
<p>Stay connected to <strong>{{.APSSID}}</strong> and continue with the
<a href="/wifi">WiFi setup</a>.</p>
</div>{{template "foot"}}{{end}}

{{define "wifi"}}{{template "head" "WiFi Setup"}}
<div class="h"><h1>System Monitor</h1><p>WiFi configuration</p></div>
<div class="b">
<div class="s"><strong>Step 2 of 2</strong><br><small>Server: {{.Target}}</small></div>
{{if .Error}}<div class="e">{{.Error}}</div>{{end}}
<form action="/wifi" method="POST">
<label>Network</label>
<input type="text" name="ssid" list="nets" required>
<datalist id="nets">{{range .Networks}}<option value="{{.SSID}}">{{.RSSI}} dBm{{if .Secure}} secured{{end}}</option>{{end}}</datalist>
<label>Password</label>
<input type="password" name="password">
<button type="submit">Connect</button>
</form>
<form action="/cancel" method="POST"><button type="submit">Cancel</button></form>
</div>{{template "foot"}}{{end}}

{{define "testing"}}{{template "head" "Validating"}}
<div class="h"><h1>Validating configuration</h1></div>
<div class="b"><p>Please wait while the device tests the connection.
Check <a href="/status">status</a> or the device screen.</p></div>{{template "foot"}}{{end}}

{{define "message"}}{{template "head" .Title}}
<div class="h"><h1>{{.Title}}</h1></div>
<div class="b"><p>{{.Text}}</p></div>{{template "foot"}}{{end}}

{{define "error"}}{{template "head" "Configuration Error"}}
<div class="h"><h1>Configuration error</h1></div>
<div class="b"><div class="e">{{.}}</div><a href="/">Try again</a></div>{{template "foot"}}{{end}}
`))

func render(w http.ResponseWriter, code int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}

func renderError(w http.ResponseWriter, code int, msg string) {
	render(w, code, "error", msg)
}
