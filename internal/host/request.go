package host

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Request is a callback-style HTTP request. Its lifecycle is reported to the
// observers registered on the Process; outcomes are delivered to the On*
// callbacks from a separate goroutine.
type Request struct {
	// Timeout bounds the whole call. Zero means no timeout.
	Timeout time.Duration

	OnLoad    func(resp *http.Response, body []byte)
	OnError   func(err error)
	OnTimeout func()

	proc   *Process
	client *http.Client
	method string
	url    string
	header http.Header
	done   chan struct{}
}

// NewRequest creates a callback-style request. It uses the transport that was
// in place before any decorator was installed.
func (p *Process) NewRequest() *Request {
	return &Request{
		proc:   p,
		client: &http.Client{Transport: p.original},
		header: make(http.Header),
		done:   make(chan struct{}),
	}
}

// Open sets the method and URL.
func (r *Request) Open(method, url string) {
	r.method, r.url = method, url
	for _, o := range r.proc.requestObservers() {
		o.Open(r, method, url)
	}
}

// SetRequestHeader adds a request header. It must be called before Send.
func (r *Request) SetRequestHeader(key, value string) {
	r.header.Add(key, value)
	for _, o := range r.proc.requestObservers() {
		o.SetRequestHeader(r, key, value)
	}
}

// Send dispatches the request asynchronously.
func (r *Request) Send(ctx context.Context, body io.Reader) {
	observers := r.proc.requestObservers()
	for _, o := range observers {
		o.Send(r)
	}

	go func() {
		defer close(r.done)

		if r.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
		if err != nil {
			r.fail(observers, err)
			return
		}
		req.Header = r.header

		resp, err := r.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				for _, o := range observers {
					o.Timeout(r)
				}
				if r.OnTimeout != nil {
					r.OnTimeout()
				}
				return
			}
			r.fail(observers, err)
			return
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			r.fail(observers, err)
			return
		}
		for _, o := range observers {
			o.Load(r, resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		if r.OnLoad != nil {
			r.OnLoad(resp, data)
		}
	}()
}

// Done is closed once the request has completed and its callback returned.
func (r *Request) Done() <-chan struct{} { return r.done }

func (r *Request) fail(observers []ports.RequestObserver, err error) {
	for _, o := range observers {
		o.Error(r, err)
	}
	if r.OnError != nil {
		r.OnError(err)
	}
}
