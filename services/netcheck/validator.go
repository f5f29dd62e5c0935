// services/netcheck/validator.go
package netcheck

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hwmonitor-go/services/wifi"
	"hwmonitor-go/x/timex"

	"go.uber.org/zap"
)

// PollInterval is the association polling period of TestWiFi.
const PollInterval = 500 * time.Millisecond

// Validator holds the two stateless connectivity probes. Neither retries.
type Validator struct {
	link  wifi.Link
	clock timex.Clock
	log   *zap.Logger
	path  string

	// HTTP is used by TestServer; its redirect policy is overridden.
	HTTP *http.Client

	// Yield runs once per poll interval so a waiting caller keeps servicing
	// its web server and button.
	Yield func()
}

func New(link wifi.Link, clock timex.Clock, path string, log *zap.Logger) *Validator {
	if path == "" {
		path = "/system-info"
	}
	return &Validator{
		link:  link,
		clock: clock,
		log:   log,
		path:  path,
		HTTP:  &http.Client{},
	}
}

// TestWiFi associates with ssid and polls until connected, timeout or ctx
// cancellation. The radio is left in whatever state the attempt produced.
func (v *Validator) TestWiFi(ctx context.Context, ssid, password string, timeout time.Duration) bool {
	v.log.Info("testing wifi", zap.String("ssid", ssid), zap.Duration("timeout", timeout))

	v.link.Disconnect()
	if err := v.link.Begin(wifi.Station(ssid, password)); err != nil {
		v.log.Info("wifi params rejected", zap.Error(err))
		return false
	}

	start := v.clock.Now()
	for v.link.Status() != wifi.StatusConnected && timex.Since(v.clock, start) < timeout {
		if ctx.Err() != nil {
			break
		}
		v.clock.Sleep(PollInterval)
		if v.Yield != nil {
			v.Yield()
		}
	}

	ok := v.link.Status() == wifi.StatusConnected
	if ok {
		v.log.Info("wifi ok", zap.String("ip", v.link.LocalIP()))
	} else {
		v.log.Info("wifi failed", zap.Stringer("status", v.link.Status()))
	}
	return ok
}

// URL returns the probe URL for address and port.
func (v *Validator) URL(address string, port uint16) string {
	return "http://" + address + ":" + strconv.Itoa(int(port)) + v.path
}

// TestServer issues one GET to the telemetry path. 200 and 301 count as
// reachable; redirects are not followed.
func (v *Validator) TestServer(ctx context.Context, address string, port uint16, timeout time.Duration) bool {
	url := v.URL(address, port)
	if v.link.Status() != wifi.StatusConnected {
		v.log.Info("server test skipped, wifi not connected", zap.String("url", url))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		v.log.Info("server test bad url", zap.String("url", url), zap.Error(err))
		return false
	}

	c := *v.HTTP
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := c.Do(req)
	if err != nil {
		v.log.Info("server test failed", zap.String("url", url), zap.Error(err))
		return false
	}
	resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMovedPermanently
	v.log.Info("server test", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Bool("ok", ok))
	return ok
}
