// Package ports defines the interfaces the agent core consumes from, or
// exposes to, its surroundings.
package ports

import (
	"net/http"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// SubscribeOptions controls how a handler is attached to a channel.
type SubscribeOptions struct {
	// Capture asks for the signal before the host's default handling runs.
	Capture bool
}

// Host is the environment the agent observes. Implementations own the
// process-wide channels and network surfaces, including the original
// (unwrapped) calls, so the agent never patches global state itself.
type Host interface {
	// OnError subscribes to the synchronous script-error channel. Script
	// errors and resource-load failures both arrive here.
	OnError(handler func(*domain.ErrorEvent), opts SubscribeOptions)

	// OnUnhandledRejection subscribes to the asynchronous-rejection channel.
	OnUnhandledRejection(handler func(*domain.RejectionEvent))

	// WrapTransport installs a decorator around the promise-style network
	// surface for the lifetime of the process.
	WrapTransport(wrap func(http.RoundTripper) http.RoundTripper)

	// ObserveRequests attaches an observer to the callback-style network surface.
	ObserveRequests(observer RequestObserver)

	// PageInfo describes the running application.
	PageInfo() domain.PageInfo
}

// RequestObserver receives the lifecycle of callback-style requests. The req
// argument identifies the request object; implementations must not retain it
// past completion.
type RequestObserver interface {
	Open(req any, method, url string)
	SetRequestHeader(req any, key, value string)
	Send(req any)
	Load(req any, status int, statusText string)
	Error(req any, err error)
	Timeout(req any)
}
