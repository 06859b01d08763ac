package report

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// MaxBeaconPayload is the largest body a beacon accepts.
const MaxBeaconPayload = 64 << 10

// HTTPBeacon queues fire-and-forget POSTs. Outcomes are only logged.
type HTTPBeacon struct {
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ ports.Beacon = (*HTTPBeacon)(nil)

// NewHTTPBeacon creates a beacon over client. A nil client uses http.DefaultClient.
func NewHTTPBeacon(client *http.Client, logger *slog.Logger) *HTTPBeacon {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBeacon{client: client, logger: logger}
}

// SendBeacon queues body for url. It refuses oversized payloads and
// malformed URLs.
func (b *HTTPBeacon) SendBeacon(url string, body []byte) bool {
	if len(body) > MaxBeaconPayload {
		return false
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set(domain.MonitorReportHeader, "true")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		resp, err := b.client.Do(req)
		if err != nil {
			b.logger.Warn("beacon delivery failed", slog.String("url", url), slog.String("error", err.Error()))
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
	}()
	return true
}

// Flush waits for queued beacons to finish.
func (b *HTTPBeacon) Flush() {
	b.wg.Wait()
}
