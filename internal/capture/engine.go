// Package capture turns failure signals from the host into exception records
// and drives one pipeline run per accepted record.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
)

type channel int

const (
	channelScript channel = iota
	channelRejection
	channelTransport
	channelObserver
)

// Engine owns the failure-channel subscriptions, the fingerprint set and the
// exception pipeline.
type Engine struct {
	host     ports.Host
	shared   *domain.Shared
	pipeline *pipeline.Executor[*domain.Context]
	logger   *slog.Logger
	recorder ports.Recorder
	policy   UIDPolicy
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}
	last map[channel]int64

	observer *requestObserver

	ctx     context.Context
	start   sync.Once
	running sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the instrumentation recorder.
func WithRecorder(r ports.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithUIDPolicy selects how fingerprints become record uids.
func WithUIDPolicy(p UIDPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine bound to host. Records are appended to shared.
// Nothing is subscribed until Start.
func NewEngine(host ports.Host, shared *domain.Shared, opts ...Option) *Engine {
	e := &Engine{
		host:     host,
		shared:   shared,
		logger:   slog.Default(),
		recorder: ports.NoopRecorder{},
		policy:   UIDTimestamped,
		now:      time.Now,
		seen:     make(map[string]struct{}),
		last:     make(map[channel]int64),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pipeline = pipeline.NewExecutor[*domain.Context](
		pipeline.WithLogger(e.logger),
		pipeline.WithFaultHook(func(stage string, _ error) {
			e.recorder.ObserveStageFault(stage)
		}),
	)
	e.observer = newRequestObserver(e)
	return e
}

// Use registers a pipeline stage.
func (e *Engine) Use(m *pipeline.Middleware[*domain.Context]) {
	e.pipeline.Use(m)
}

// Remove unregisters a pipeline stage.
func (e *Engine) Remove(m *pipeline.Middleware[*domain.Context]) {
	e.pipeline.Remove(m)
}

// Middlewares lists the registered stages in execution order.
func (e *Engine) Middlewares() []*pipeline.Middleware[*domain.Context] {
	return e.pipeline.Middlewares()
}

// Start subscribes to every host channel. Pipeline runs inherit the values
// of ctx but not its cancellation. Calling Start again has no effect.
func (e *Engine) Start(ctx context.Context) {
	e.start.Do(func() {
		e.ctx = context.WithoutCancel(ctx)
		e.host.OnError(e.handleError, ports.SubscribeOptions{Capture: true})
		e.host.OnUnhandledRejection(e.handleRejection)
		e.host.WrapTransport(e.WrapTransport)
		e.host.ObserveRequests(e.observer)
		e.logger.Debug("exception capture started")
	})
}

// Wait blocks until every in-flight pipeline run has finished.
func (e *Engine) Wait() {
	e.running.Wait()
}

func (e *Engine) handleError(ev *domain.ErrorEvent) {
	if ev == nil {
		return
	}
	ev.PreventDefault()

	typ := Classify(ev)
	if !ev.IsScriptError() && ev.Target == nil {
		e.logger.Debug("signal defaulted to resource",
			slog.String("kind", string(domain.ErrorKindClassificationAmbiguous)),
		)
	}
	e.accept(channelScript, typ, ev, scriptFingerprint(typ, ev))
}

func (e *Engine) handleRejection(ev *domain.RejectionEvent) {
	if ev == nil {
		return
	}
	ev.PreventDefault()
	e.accept(channelRejection, domain.ExceptionUnhandledRejection, ev, rejectionFingerprint(ev))
}

func (e *Engine) handleRequest(ch channel, info *domain.RequestInfo) {
	e.accept(ch, domain.ExceptionNetwork, info, networkFingerprint(info))
}

// accept deduplicates a classified signal and, when it is new, records it and
// dispatches a pipeline run.
func (e *Engine) accept(ch channel, typ domain.ExceptionType, payload any, fingerprint string) {
	e.mu.Lock()
	ts := e.now().UnixMilli()
	if prev := e.last[ch]; ts < prev {
		ts = prev
	}
	e.last[ch] = ts

	uid := e.policy.uid(fingerprint, ts)
	if _, dup := e.seen[uid]; dup {
		e.mu.Unlock()
		e.recorder.ObserveDuplicate(typ)
		e.logger.Debug("duplicate exception suppressed",
			slog.String("kind", string(domain.ErrorKindDuplicateSuppressed)),
			slog.String("type", string(typ)),
			slog.String("uid", uid),
		)
		return
	}
	e.seen[uid] = struct{}{}
	e.mu.Unlock()

	exc := domain.NewException(typ, payload, ts, domain.Metadata{
		UID: uid,
		ID:  uuid.NewString(),
	})
	e.shared.AppendException(exc)
	e.recorder.ObserveException(typ)

	run := e.shared.NewRun(exc)
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		e.pipeline.Execute(e.ctx, run)
	}()
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}
