// Package hosttest provides an in-memory host for tests.
package hosttest

import (
	"net/http"
	"slices"
	"sync"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Fake is a host whose channels are fired by the test. It never touches
// process-wide state.
type Fake struct {
	// Base is the transport wrapped by WrapTransport. Nil means http.DefaultTransport.
	Base http.RoundTripper
	Page domain.PageInfo

	mu          sync.Mutex
	onError     []func(*domain.ErrorEvent)
	errorOpts   []ports.SubscribeOptions
	onRejection []func(*domain.RejectionEvent)
	wraps       []func(http.RoundTripper) http.RoundTripper
	observers   []ports.RequestObserver
}

var _ ports.Host = (*Fake)(nil)

func (f *Fake) OnError(handler func(*domain.ErrorEvent), opts ports.SubscribeOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = append(f.onError, handler)
	f.errorOpts = append(f.errorOpts, opts)
}

func (f *Fake) OnUnhandledRejection(handler func(*domain.RejectionEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRejection = append(f.onRejection, handler)
}

func (f *Fake) WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wraps = append(f.wraps, wrap)
}

func (f *Fake) ObserveRequests(observer ports.RequestObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, observer)
}

func (f *Fake) PageInfo() domain.PageInfo { return f.Page }

// ErrorSubscriptions returns the options every script-error handler was
// registered with.
func (f *Fake) ErrorSubscriptions() []ports.SubscribeOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.SubscribeOptions(nil), f.errorOpts...)
}

// EmitError fires the script-error channel and reports whether a handler
// suppressed default handling.
func (f *Fake) EmitError(ev *domain.ErrorEvent) bool {
	f.mu.Lock()
	handlers := slices.Clone(f.onError)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
	return ev.DefaultPrevented()
}

// EmitRejection fires the rejection channel and reports whether a handler
// suppressed default handling.
func (f *Fake) EmitRejection(ev *domain.RejectionEvent) bool {
	f.mu.Lock()
	handlers := slices.Clone(f.onRejection)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
	return ev.DefaultPrevented()
}

// Transport returns Base with every registered decorator applied.
func (f *Fake) Transport() http.RoundTripper {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt := f.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	for _, wrap := range f.wraps {
		rt = wrap(rt)
	}
	return rt
}

// Client returns an HTTP client over Transport.
func (f *Fake) Client() *http.Client {
	return &http.Client{Transport: f.Transport()}
}

// Observer returns a RequestObserver that fans out to every registered observer.
func (f *Fake) Observer() ports.RequestObserver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fanout(append([]ports.RequestObserver(nil), f.observers...))
}

type fanout []ports.RequestObserver

func (o fanout) Open(req any, method, url string) {
	for _, x := range o {
		x.Open(req, method, url)
	}
}

func (o fanout) SetRequestHeader(req any, key, value string) {
	for _, x := range o {
		x.SetRequestHeader(req, key, value)
	}
}

func (o fanout) Send(req any) {
	for _, x := range o {
		x.Send(req)
	}
}

func (o fanout) Load(req any, status int, statusText string) {
	for _, x := range o {
		x.Load(req, status, statusText)
	}
}

func (o fanout) Error(req any, err error) {
	for _, x := range o {
		x.Error(req, err)
	}
}

func (o fanout) Timeout(req any) {
	for _, x := range o {
		x.Timeout(req)
	}
}
