package flush

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
)

func TestParseStack(t *testing.T) {
	tests := []struct {
		name     string
		stack    string
		expected []domain.StackFrame
	}{
		{
			name:     "empty",
			stack:    "",
			expected: []domain.StackFrame{},
		},
		{
			name: "named and anonymous frames",
			stack: "TypeError: x is undefined\n" +
				"    at render (https://app.example.com/main.js:10:5)\n" +
				"    at https://app.example.com/vendor.js:200:17",
			expected: []domain.StackFrame{
				{Filename: "https://app.example.com/main.js", FunctionName: "render", Lineno: 10, Colno: 5},
				{Filename: "https://app.example.com/vendor.js", Lineno: 200, Colno: 17},
			},
		},
		{
			name:  "function name needs exactly three tokens",
			stack: "    at new Widget (widget.js:3:9)",
			expected: []domain.StackFrame{
				{Filename: "widget.js", Lineno: 3, Colno: 9},
			},
		},
		{
			name:  "go frame",
			stack: "boom\n    at main.handler (/srv/app/main.go:42:0)",
			expected: []domain.StackFrame{
				{Filename: "/srv/app/main.go", FunctionName: "main.handler", Lineno: 42, Colno: 0},
			},
		},
		{
			name:  "location without numbers",
			stack: "    at eval (native)",
			expected: []domain.StackFrame{
				{FunctionName: "eval"},
			},
		},
		{
			name:  "number too large",
			stack: "    at f (a.js:99999999999999999999:1)",
			expected: []domain.StackFrame{
				{},
			},
		},
		{
			name:     "non frame lines skipped",
			stack:    "Error: nope\n\n  something else\n",
			expected: []domain.StackFrame{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStack(tt.stack)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseStack() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseStack_Bounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("Error: deep")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "\n    at f%d (app.js:%d:1)", i, i)
	}

	frames := ParseStack(b.String())
	if len(frames) != MaxStackFrames {
		t.Fatalf("expected %d frames, got %d", MaxStackFrames, len(frames))
	}
	for i, f := range frames {
		if f.Lineno != i+1 || f.FunctionName != fmt.Sprintf("f%d", i+1) {
			t.Errorf("frame %d out of order: %+v", i, f)
		}
	}
}

func TestHeaderMap(t *testing.T) {
	tests := []struct {
		name     string
		headers  any
		expected map[string]string
	}{
		{name: "nil", headers: nil, expected: map[string]string{}},
		{name: "map", headers: map[string]string{"A": "1"}, expected: map[string]string{"A": "1"}},
		{name: "pairs", headers: [][2]string{{"A", "1"}, {"B", "2"}}, expected: map[string]string{"A": "1", "B": "2"}},
		{
			name:     "header collection",
			headers:  http.Header{"Accept": {"text/html", "application/json"}},
			expected: map[string]string{"Accept": "text/html, application/json"},
		},
		{name: "unsupported", headers: 42, expected: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderMap(tt.headers); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("HeaderMap() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	in := map[string]string{"Authorization": "secret", "X-Foo": "bar"}
	got := Redact(in)

	expected := map[string]string{"Authorization": "****", "X-Foo": "bar"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Redact() = %v, want %v", got, expected)
	}
	if in["Authorization"] != "secret" {
		t.Error("Redact modified its input")
	}
}

func TestRedact_DenyList(t *testing.T) {
	in := map[string]string{
		"authorization": "a", "COOKIE": "b", "Set-Cookie": "c", "x-token": "d",
		"X-CSRF-Token": "e", "x-xsrf-token": "f", "X-User-Id": "g", "x-uid": "h",
		"X-Request-Id": "keep",
	}
	got := Redact(in)
	for k, v := range got {
		if k == "X-Request-Id" {
			if v != "keep" {
				t.Errorf("%s was redacted", k)
			}
			continue
		}
		if v != Mask {
			t.Errorf("%s = %q, want mask", k, v)
		}
	}
}

func TestRedact_Idempotent(t *testing.T) {
	in := map[string]string{"Cookie": "sid=1", "X-Token": "t", "Accept": "*/*"}
	once := Redact(in)
	twice := Redact(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("redaction not idempotent: %v vs %v", once, twice)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		exc      *domain.Exception
		expected domain.FlushedException
	}{
		{
			name: "js",
			exc: domain.NewException(domain.ExceptionJS, &domain.ErrorEvent{
				Message: "x is undefined",
				Error:   &domain.ScriptError{Message: "x is undefined", Stack: "TypeError\n at f (a.js:1:2)"},
			}, 0, domain.Metadata{}),
			expected: &domain.FlushedJSException{
				Type:    domain.ExceptionJS,
				Message: "x is undefined",
				Stacks:  []domain.StackFrame{{Filename: "a.js", FunctionName: "f", Lineno: 1, Colno: 2}},
			},
		},
		{
			name:     "cors",
			exc:      domain.NewException(domain.ExceptionCrossOrigin, &domain.ErrorEvent{Message: "Script error.", Filename: "https://cdn.example.com/x.js"}, 0, domain.Metadata{}),
			expected: &domain.FlushedCORSException{Type: domain.ExceptionCrossOrigin, Message: "Script error.", Filename: "https://cdn.example.com/x.js"},
		},
		{
			name:     "resource without target",
			exc:      domain.NewException(domain.ExceptionResource, &domain.ErrorEvent{}, 0, domain.Metadata{}),
			expected: &domain.FlushedResourceException{Type: domain.ExceptionResource},
		},
		{
			name: "resource",
			exc: domain.NewException(domain.ExceptionResource, &domain.ErrorEvent{
				Target: &domain.ResourceTarget{Src: "/logo.png", TagName: "IMG", OuterHTML: `<img src="/logo.png">`},
			}, 0, domain.Metadata{}),
			expected: &domain.FlushedResourceException{Type: domain.ExceptionResource, Src: "/logo.png", TagName: "IMG", OuterHTML: `<img src="/logo.png">`},
		},
		{
			name: "rejection",
			exc: domain.NewException(domain.ExceptionUnhandledRejection, &domain.RejectionEvent{
				Reason: domain.ScriptError{Name: "Error", Message: "lost", Stack: "Error: lost\n    at load (api.js:7:3)"},
			}, 0, domain.Metadata{}),
			expected: &domain.FlushedRejectionException{
				Type:   domain.ExceptionUnhandledRejection,
				Reason: "lost",
				Stacks: []domain.StackFrame{{Filename: "api.js", FunctionName: "load", Lineno: 7, Colno: 3}},
			},
		},
		{
			name: "network",
			exc: domain.NewException(domain.ExceptionNetwork, &domain.RequestInfo{
				URL:               "https://api.example.com/x",
				Method:            "GET",
				Headers:           [][2]string{{"Authorization", "secret"}, {"X-Foo", "bar"}},
				StartTimestamp:    100,
				EndTimestamp:      150,
				Duration:          50,
				HTTPExceptionType: domain.HTTPExceptionNetwork,
				Error:             errors.New("connection reset"),
			}, 0, domain.Metadata{}),
			expected: &domain.FlushedHTTPException{
				Type:              domain.ExceptionNetwork,
				URL:               "https://api.example.com/x",
				Method:            "GET",
				Headers:           map[string]string{"Authorization": "****", "X-Foo": "bar"},
				StartTimestamp:    100,
				EndTimestamp:      150,
				Duration:          50,
				HTTPExceptionType: domain.HTTPExceptionNetwork,
				Reason:            "connection reset",
			},
		},
		{
			name:     "already flat",
			exc:      domain.NewException(domain.ExceptionType(domain.MetricsTypePerformance), &domain.PerformanceMetrics{Type: domain.MetricsTypePerformance}, 0, domain.Metadata{}),
			expected: &domain.PerformanceMetrics{Type: domain.MetricsTypePerformance},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.exc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestNormalize_PayloadMismatch(t *testing.T) {
	exc := domain.NewException(domain.ExceptionJS, &domain.RequestInfo{}, 0, domain.Metadata{})
	if _, err := Normalize(exc); err == nil {
		t.Error("expected an error for a mismatched payload")
	}
}

func TestStage(t *testing.T) {
	page := domain.PageInfo{Href: "https://app.example.com/", UserAgent: "test"}
	shared := domain.NewShared(domain.Flags{Exception: true}, domain.ReportConfig{}, 2)

	e := pipeline.NewExecutor[*domain.Context]()
	e.Use(Stage(func() domain.PageInfo { return page }))

	var afterFlush *domain.FlushedData
	e.Use(&pipeline.Middleware[*domain.Context]{
		Name: "probe",
		Process: func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
			afterFlush = c.CurrentFlushed
			next(ctx)
			return nil
		},
	})

	for i := 0; i < 3; i++ {
		exc := domain.NewException(domain.ExceptionResource, &domain.ErrorEvent{
			Target: &domain.ResourceTarget{Src: fmt.Sprintf("/%d.png", i)},
		}, int64(i), domain.Metadata{})
		if i == 2 {
			exc.ShouldReport = false
		}
		shared.AppendException(exc)
		e.Execute(context.Background(), shared.NewRun(exc))
	}

	if afterFlush == nil || afterFlush.PageInfo != page {
		t.Fatalf("flushed slot not written before later stages: %+v", afterFlush)
	}
	if !afterFlush.Skip {
		t.Error("vetoed record should be marked Skip")
	}
	if res := afterFlush.Flushed.(*domain.FlushedResourceException); res.Src != "/2.png" {
		t.Errorf("unexpected flushed record: %+v", res)
	}

	history := shared.Flushed()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1] != afterFlush {
		t.Error("history does not end with the latest record")
	}
	if len(shared.Exceptions()) != 2 {
		t.Errorf("raw exceptions not trimmed: %d", len(shared.Exceptions()))
	}
}
