package capture

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// maxOpenRequests bounds the trace arena. Requests that are opened but never
// complete are evicted oldest first once the bound is reached.
const maxOpenRequests = 256

// requestObserver follows callback-style requests. Traces live in an arena
// keyed by request identity and are purged when the request completes or is
// re-opened, so the observer never holds a finished request. Request keys
// must be comparable; hosts pass pointers.
type requestObserver struct {
	engine *Engine

	mu     sync.Mutex
	traces *simplelru.LRU[any, *domain.RequestInfo]
}

func newRequestObserver(e *Engine) *requestObserver {
	traces, err := simplelru.NewLRU[any, *domain.RequestInfo](maxOpenRequests, nil)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &requestObserver{engine: e, traces: traces}
}

// Open starts a fresh trace. Re-opening a request discards its previous trace.
func (o *requestObserver) Open(req any, method, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.traces.Remove(req)
	o.traces.Add(req, &domain.RequestInfo{Method: method, URL: url})
}

func (o *requestObserver) SetRequestHeader(req any, key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if info, ok := o.traces.Peek(req); ok {
		info.SetHeader(key, value)
	}
}

func (o *requestObserver) Send(req any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if info, ok := o.traces.Get(req); ok {
		info.StartTimestamp = o.engine.nowMillis()
	}
}

// Load completes a request that received a response. Only error statuses
// become exceptions.
func (o *requestObserver) Load(req any, status int, statusText string) {
	info := o.take(req)
	if info == nil || status < 400 {
		return
	}
	info.Status = status
	info.StatusText = statusText
	info.Finish(o.engine.nowMillis(), domain.HTTPExceptionStatus)
	o.engine.handleRequest(channelObserver, info)
}

func (o *requestObserver) Error(req any, err error) {
	info := o.take(req)
	if info == nil {
		return
	}
	info.Error = err
	info.Finish(o.engine.nowMillis(), domain.HTTPExceptionNetwork)
	o.engine.handleRequest(channelObserver, info)
}

func (o *requestObserver) Timeout(req any) {
	info := o.take(req)
	if info == nil {
		return
	}
	info.Finish(o.engine.nowMillis(), domain.HTTPExceptionTimeout)
	o.engine.handleRequest(channelObserver, info)
}

// pending reports how many traces are still open.
func (o *requestObserver) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.traces.Len()
}

func (o *requestObserver) take(req any) *domain.RequestInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	info, ok := o.traces.Peek(req)
	if !ok {
		return nil
	}
	o.traces.Remove(req)
	return info
}
