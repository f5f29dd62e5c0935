// services/telemetry/client.go
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"hwmonitor-go/errcode"
	"hwmonitor-go/types"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 5 * time.Second

	// maxBody bounds one telemetry document.
	maxBody = 16 << 10
)

// Client fetches SystemData from the configured server.
type Client struct {
	url     string
	timeout time.Duration
	log     *zap.Logger

	HTTP *http.Client
}

func New(url string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, timeout: timeout, log: log, HTTP: &http.Client{}}
}

func (c *Client) URL() string { return c.url }

// Fetch performs one GET. Transport errors, non-200 replies and malformed
// JSON are all FetchFailed.
func (c *Client) Fetch(ctx context.Context) (types.SystemData, error) {
	var out types.SystemData

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return out, errcode.Wrap(errcode.InvalidParams, "telemetry.fetch", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, errcode.Wrap(errcode.FetchFailed, "telemetry.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return out, errcode.New(errcode.FetchFailed, "telemetry.fetch", "http "+strconv.Itoa(resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return out, errcode.Wrap(errcode.FetchFailed, "telemetry.decode", err)
	}

	c.log.Debug("telemetry",
		zap.String("cpu", out.CPU.Name),
		zap.Float64("cpu_temp", out.CPU.Temp),
		zap.Float64("cpu_load", out.CPU.Load),
		zap.Float64("ram_pct", out.RAM.Percent),
		zap.Int("disks", len(out.Disks)),
	)
	return out, nil
}
