package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// Next continues a run with the following stage.
type Next func(ctx context.Context)

// ProcessFunc is the body of a stage.
type ProcessFunc[T any] func(ctx context.Context, c T, next Next) error

// Middleware is a named, prioritized pipeline stage. Higher priorities run
// first; the zero priority is the default.
type Middleware[T any] struct {
	Name     string
	Priority int
	Process  ProcessFunc[T]
}

// FaultHook observes stage failures after they have been logged. The error is
// a *domain.AgentError of kind stage_execution_fault.
type FaultHook func(stage string, err error)

// Executor holds an ordered set of stages and runs them over a context value.
// It is safe for concurrent use; each Execute works on a snapshot of the
// stages registered when it starts.
type Executor[T any] struct {
	mu      sync.RWMutex
	stages  []*Middleware[T]
	logger  *slog.Logger
	onFault FaultHook
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	onFault FaultHook
}

// WithLogger sets the logger faults are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFaultHook registers a hook called for every stage fault.
func WithFaultHook(hook FaultHook) Option {
	return func(o *options) { o.onFault = hook }
}

// NewExecutor creates an empty executor.
func NewExecutor[T any](opts ...Option) *Executor[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Executor[T]{logger: o.logger, onFault: o.onFault}
}

// Use registers a stage and re-sorts the chain.
func (e *Executor[T]) Use(m *Middleware[T]) {
	if m == nil || m.Process == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stages = append(e.stages, m)
	slices.SortStableFunc(e.stages, func(a, b *Middleware[T]) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
}

// Remove unregisters a stage by identity. Unknown stages are ignored.
func (e *Executor[T]) Remove(m *Middleware[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stages = slices.DeleteFunc(e.stages, func(s *Middleware[T]) bool { return s == m })
}

// Middlewares returns the registered stages in execution order.
func (e *Executor[T]) Middlewares() []*Middleware[T] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.stages)
}

// Execute runs the chain over c and returns c.
func (e *Executor[T]) Execute(ctx context.Context, c T) T {
	stages := e.Middlewares()

	var run func(ctx context.Context, i int)
	run = func(ctx context.Context, i int) {
		if i >= len(stages) {
			return
		}
		stage := stages[i]

		called := false
		next := func(ctx context.Context) {
			if called {
				return
			}
			called = true
			run(ctx, i+1)
		}

		if err := e.invoke(ctx, stage, c, next); err != nil {
			e.fault(ctx, stage.Name, err)
			// the failed stage may already have handed off to the rest
			if !called {
				next(ctx)
			}
		}
	}

	run(ctx, 0)
	return c
}

func (e *Executor[T]) invoke(ctx context.Context, stage *Middleware[T], c T, next Next) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Process(ctx, c, next)
}

func (e *Executor[T]) fault(ctx context.Context, name string, err error) {
	e.logger.ErrorContext(ctx, "middleware execution error",
		slog.String("middleware", name),
		slog.String("error", err.Error()),
	)
	if e.onFault != nil {
		e.onFault(name, domain.ErrStageExecution(name, err))
	}
}
