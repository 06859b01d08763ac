package capture

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// WrapTransport decorates the promise-style network surface. Failing calls
// are captured; the caller always receives the original response and error.
func (e *Engine) WrapTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, engine: e}
}

type transport struct {
	base   http.RoundTripper
	engine *Engine
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.EqualFold(req.Header.Get(domain.MonitorReportHeader), "true") {
		return t.base.RoundTrip(req)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	info := &domain.RequestInfo{
		URL:            req.URL.String(),
		Method:         method,
		Headers:        req.Header.Clone(),
		StartTimestamp: t.engine.nowMillis(),
	}

	resp, err := t.base.RoundTrip(req)
	end := t.engine.nowMillis()

	switch {
	case err != nil:
		kind := domain.HTTPExceptionNetwork
		if isTimeout(err) {
			kind = domain.HTTPExceptionTimeout
		}
		info.Error = err
		info.Finish(end, kind)
		t.engine.handleRequest(channelTransport, info)
	case resp.StatusCode >= http.StatusBadRequest:
		info.Status = resp.StatusCode
		info.StatusText = http.StatusText(resp.StatusCode)
		info.Finish(end, domain.HTTPExceptionStatus)
		t.engine.handleRequest(channelTransport, info)
	}

	return resp, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
