package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

type trace struct {
	mu  sync.Mutex
	log []string
}

func (t *trace) add(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = append(t.log, s)
}

func record(name string, priority int) *Middleware[*trace] {
	return &Middleware[*trace]{
		Name:     name,
		Priority: priority,
		Process: func(ctx context.Context, c *trace, next Next) error {
			c.add(name + " before")
			next(ctx)
			c.add(name + " after")
			return nil
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestExecutor_Empty(t *testing.T) {
	e := NewExecutor[*trace]()
	c := &trace{}
	if got := e.Execute(context.Background(), c); got != c {
		t.Error("expected Execute to return the context value")
	}
	if len(c.log) != 0 {
		t.Errorf("expected no log entries, got %v", c.log)
	}
}

func TestExecutor_OnionOrder(t *testing.T) {
	e := NewExecutor[*trace]()
	e.Use(record("B", 1))
	e.Use(record("A", 2))

	c := e.Execute(context.Background(), &trace{})

	expected := []string{"A before", "B before", "B after", "A after"}
	if !reflect.DeepEqual(c.log, expected) {
		t.Errorf("log = %v, want %v", c.log, expected)
	}
}

func TestExecutor_Ordering(t *testing.T) {
	tests := []struct {
		name     string
		register []*Middleware[*trace]
		expected []string
	}{
		{
			name:     "default priority keeps registration order",
			register: []*Middleware[*trace]{record("first", 0), record("second", 0), record("third", 0)},
			expected: []string{"first", "second", "third"},
		},
		{
			name:     "higher priority first",
			register: []*Middleware[*trace]{record("low", -5), record("high", 50), record("mid", 10)},
			expected: []string{"high", "mid", "low"},
		},
		{
			name:     "ties stable among mixed priorities",
			register: []*Middleware[*trace]{record("x", 1), record("top", 9), record("y", 1), record("z", 1)},
			expected: []string{"top", "x", "y", "z"},
		},
		{
			name:     "extreme priorities",
			register: []*Middleware[*trace]{record("low", math.MinInt), record("zero", 0), record("high", math.MaxInt)},
			expected: []string{"high", "zero", "low"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor[*trace]()
			for _, m := range tt.register {
				e.Use(m)
			}
			var names []string
			for _, m := range e.Middlewares() {
				names = append(names, m.Name)
			}
			if !reflect.DeepEqual(names, tt.expected) {
				t.Errorf("order = %v, want %v", names, tt.expected)
			}
		})
	}
}

func TestExecutor_Remove(t *testing.T) {
	e := NewExecutor[*trace]()
	a := record("A", 0)
	b := record("B", 0)
	e.Use(a)
	e.Use(b)

	e.Remove(a)
	e.Remove(record("A", 0)) // different identity, ignored

	got := e.Middlewares()
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected only B to remain, got %d stages", len(got))
	}

	c := e.Execute(context.Background(), &trace{})
	if !reflect.DeepEqual(c.log, []string{"B before", "B after"}) {
		t.Errorf("unexpected log %v", c.log)
	}
}

func TestExecutor_ShortCircuit(t *testing.T) {
	e := NewExecutor[*trace]()
	e.Use(&Middleware[*trace]{
		Name:     "gate",
		Priority: 10,
		Process: func(ctx context.Context, c *trace, next Next) error {
			c.add("gate")
			return nil
		},
	})
	e.Use(record("later", 0))

	c := e.Execute(context.Background(), &trace{})
	if !reflect.DeepEqual(c.log, []string{"gate"}) {
		t.Errorf("expected run to stop at gate, got %v", c.log)
	}
}

func TestExecutor_FaultIsolation(t *testing.T) {
	tests := []struct {
		name  string
		fault func(c *trace, next Next) error
	}{
		{
			name: "returned error",
			fault: func(c *trace, next Next) error {
				return errors.New("boom")
			},
		},
		{
			name: "panic",
			fault: func(c *trace, next Next) error {
				panic("boom")
			},
		},
		{
			name: "error after next",
			fault: func(c *trace, next Next) error {
				next(context.Background())
				return errors.New("boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			var faults []string
			e := NewExecutor[*trace](
				WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
				WithFaultHook(func(stage string, err error) {
					if !domain.IsKind(err, domain.ErrorKindStageExecution) {
						t.Errorf("unexpected fault kind: %v", err)
					}
					faults = append(faults, stage)
				}),
			)
			e.Use(record("outer", 10))
			e.Use(&Middleware[*trace]{
				Name:     "faulty",
				Priority: 5,
				Process: func(ctx context.Context, c *trace, next Next) error {
					return tt.fault(c, next)
				},
			})
			e.Use(record("inner", 0))

			c := e.Execute(context.Background(), &trace{})

			expected := []string{"outer before", "inner before", "inner after", "outer after"}
			if !reflect.DeepEqual(c.log, expected) {
				t.Errorf("log = %v, want %v", c.log, expected)
			}
			if !reflect.DeepEqual(faults, []string{"faulty"}) {
				t.Errorf("faults = %v", faults)
			}
			if !strings.Contains(buf.String(), "middleware execution error") || !strings.Contains(buf.String(), "faulty") {
				t.Errorf("expected fault to be logged with stage name, got %q", buf.String())
			}
		})
	}
}

func TestExecutor_RunsRestartFromFirstStage(t *testing.T) {
	e := NewExecutor[*trace](WithLogger(discardLogger()))
	calls := 0
	e.Use(&Middleware[*trace]{
		Name: "count",
		Process: func(ctx context.Context, c *trace, next Next) error {
			calls++
			next(ctx)
			return nil
		},
	})

	for i := 0; i < 3; i++ {
		e.Execute(context.Background(), &trace{})
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecutor_ConcurrentRuns(t *testing.T) {
	e := NewExecutor[*trace](WithLogger(discardLogger()))
	e.Use(record("A", 1))
	e.Use(record("B", 0))

	var wg sync.WaitGroup
	results := make([]*trace, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Execute(context.Background(), &trace{})
		}(i)
	}
	wg.Wait()

	for i, c := range results {
		if len(c.log) != 4 {
			t.Errorf("run %d: expected 4 entries, got %v", i, c.log)
		}
	}
}
