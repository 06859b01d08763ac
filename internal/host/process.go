// Package host adapts a running Go process to the agent's host interface.
//
// Panics recovered through Recover feed the script-error channel, errors
// returned from goroutines started with Go feed the rejection channel,
// http.DefaultTransport is the promise-style network surface and Request is
// the callback-style one.
package host

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Process is a Host backed by the current process.
type Process struct {
	page   domain.PageInfo
	logger *slog.Logger

	mu          sync.RWMutex
	onError     []func(*domain.ErrorEvent)
	onRejection []func(*domain.RejectionEvent)
	observers   []ports.RequestObserver

	// original is the transport in place before any decorator was installed.
	// Callback-style requests use it so they are observed once.
	original http.RoundTripper
}

var _ ports.Host = (*Process)(nil)

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithLogger sets the logger used for default handling of unhandled signals.
func WithLogger(logger *slog.Logger) ProcessOption {
	return func(p *Process) { p.logger = logger }
}

// NewProcess creates a process host describing itself with page.
func NewProcess(page domain.PageInfo, opts ...ProcessOption) *Process {
	p := &Process{
		page:     page,
		logger:   slog.Default(),
		original: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Process) OnError(handler func(*domain.ErrorEvent), opts ports.SubscribeOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if opts.Capture {
		p.onError = append([]func(*domain.ErrorEvent){handler}, p.onError...)
		return
	}
	p.onError = append(p.onError, handler)
}

func (p *Process) OnUnhandledRejection(handler func(*domain.RejectionEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRejection = append(p.onRejection, handler)
}

// WrapTransport replaces http.DefaultTransport with its decorated form. There
// is no unwrap; the decorator stays for the lifetime of the process.
func (p *Process) WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) {
	p.mu.Lock()
	defer p.mu.Unlock()
	http.DefaultTransport = wrap(http.DefaultTransport)
}

func (p *Process) ObserveRequests(observer ports.RequestObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *Process) PageInfo() domain.PageInfo { return p.page }

// Recover must be deferred directly. It turns a panic into a script error and
// swallows it when a handler suppressed default handling; otherwise the panic
// continues.
func (p *Process) Recover() {
	r := recover()
	if r == nil {
		return
	}
	if !p.reportPanic(r, 4) {
		panic(r)
	}
}

// ReportResourceError fires the script-error channel for a failed load of
// target.
func (p *Process) ReportResourceError(target domain.ResourceTarget) {
	ev := &domain.ErrorEvent{Target: &target}
	if !p.emitError(ev) {
		p.logger.Error("resource load failed",
			slog.String("src", target.Src),
			slog.String("tag_name", target.TagName),
		)
	}
}

// Go runs fn in a new goroutine. A returned error nobody handles fires the
// rejection channel; a panic fires the script-error channel.
func (p *Process) Go(fn func() error) {
	go func() {
		defer p.Recover()
		if err := fn(); err != nil {
			p.Reject(err)
		}
	}()
}

// Reject fires the rejection channel for err.
func (p *Process) Reject(err error) {
	ev := &domain.RejectionEvent{
		Reason: domain.ScriptError{
			Name:    fmt.Sprintf("%T", err),
			Message: err.Error(),
			Stack:   formatStack(err.Error(), callers(3)),
		},
	}
	p.mu.RLock()
	handlers := slices.Clone(p.onRejection)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	if !ev.DefaultPrevented() {
		p.logger.Error("unhandled rejection", slog.String("error", err.Error()))
	}
}

func (p *Process) reportPanic(r any, skip int) bool {
	msg := fmt.Sprint(r)
	name := "panic"
	if err, ok := r.(error); ok {
		name = fmt.Sprintf("%T", err)
	}
	frames := callers(skip)
	ev := &domain.ErrorEvent{
		Message: msg,
		Error: &domain.ScriptError{
			Name:    name,
			Message: msg,
			Stack:   formatStack(msg, frames),
		},
	}
	if len(frames) > 0 {
		ev.Filename = frames[0].File
		ev.Lineno = frames[0].Line
	}
	return p.emitError(ev)
}

func (p *Process) emitError(ev *domain.ErrorEvent) bool {
	p.mu.RLock()
	handlers := slices.Clone(p.onError)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	return ev.DefaultPrevented()
}

func (p *Process) requestObservers() []ports.RequestObserver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ports.RequestObserver(nil), p.observers...)
}
