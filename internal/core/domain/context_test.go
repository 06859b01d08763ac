package domain

import (
	"fmt"
	"net/http"
	"testing"
)

func TestShared_NewRunScopesCurrentSlots(t *testing.T) {
	shared := NewShared(Flags{Exception: true}, ReportConfig{URL: "https://collector.example.com"}, 0)

	first := NewException(ExceptionJS, nil, 1, Metadata{UID: "a"})
	second := NewException(ExceptionResource, nil, 2, Metadata{UID: "b"})

	runA := shared.NewRun(first)
	runB := shared.NewRun(second)
	runB.CurrentFlushed = &FlushedData{}

	if runA.CurrentException != first {
		t.Error("run A lost its current exception")
	}
	if runA.CurrentFlushed != nil {
		t.Error("run B's flushed slot leaked into run A")
	}
	if runA.Report.URL != "https://collector.example.com" || !runA.Flags.Exception {
		t.Errorf("run did not snapshot shared configuration: %+v", runA)
	}
}

func TestShared_Retention(t *testing.T) {
	shared := NewShared(Flags{}, ReportConfig{}, 3)

	for i := 0; i < 5; i++ {
		shared.AppendException(NewException(ExceptionJS, nil, int64(i), Metadata{UID: fmt.Sprint(i)}))
		shared.AppendFlushed(&FlushedData{PageInfo: PageInfo{Href: fmt.Sprint(i)}})
	}

	excs := shared.Exceptions()
	if len(excs) != 3 {
		t.Fatalf("expected 3 retained exceptions, got %d", len(excs))
	}
	if excs[0].Metadata.UID != "2" || excs[2].Metadata.UID != "4" {
		t.Errorf("expected most recent exceptions to survive, got %s..%s", excs[0].Metadata.UID, excs[2].Metadata.UID)
	}

	flushed := shared.Flushed()
	if len(flushed) != 3 || flushed[0].PageInfo.Href != "2" {
		t.Errorf("unexpected flushed history: %d entries", len(flushed))
	}
}

func TestNewException_InitialState(t *testing.T) {
	exc := NewException(ExceptionNetwork, &RequestInfo{}, 42, Metadata{UID: "uid"})
	if exc.Processed {
		t.Error("Processed should start false")
	}
	if !exc.ShouldReport {
		t.Error("ShouldReport should start true")
	}
}

func TestRequestInfo_SetHeader(t *testing.T) {
	t.Run("creates map", func(t *testing.T) {
		info := &RequestInfo{}
		info.SetHeader("X-Foo", "bar")
		h, ok := info.Headers.(map[string]string)
		if !ok || h["X-Foo"] != "bar" {
			t.Errorf("unexpected headers: %#v", info.Headers)
		}
	})

	t.Run("appends pairs", func(t *testing.T) {
		info := &RequestInfo{Headers: [][2]string{{"A", "1"}}}
		info.SetHeader("B", "2")
		h := info.Headers.([][2]string)
		if len(h) != 2 || h[1] != [2]string{"B", "2"} {
			t.Errorf("unexpected headers: %#v", h)
		}
	})

	t.Run("header collection", func(t *testing.T) {
		info := &RequestInfo{Headers: http.Header{}}
		info.SetHeader("x-token", "abc")
		if got := info.Headers.(http.Header).Get("X-Token"); got != "abc" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRequestInfo_Finish(t *testing.T) {
	info := &RequestInfo{StartTimestamp: 1000}
	info.Finish(1250, HTTPExceptionTimeout)
	if info.Duration != 250 || info.EndTimestamp != 1250 || info.HTTPExceptionType != HTTPExceptionTimeout {
		t.Errorf("unexpected trace: %+v", info)
	}
}
