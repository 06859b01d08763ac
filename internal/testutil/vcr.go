// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a recorder over testdata/fixtures/<cassetteName>.yaml.
// Cassettes replay by default; set VCR_MODE=record to capture new ones. The
// recorder is stopped when the test finishes.
func NewVCRRecorder(t *testing.T, cassetteName string) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", cassetteName), mode, nil)
	if err != nil {
		t.Fatalf("failed to create VCR recorder: %v", err)
	}

	// Agent traffic differs only by the monitor header, so match on the
	// request line alone.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop VCR recorder: %v", err)
		}
	})
	return r
}

// VCRHTTPClient returns a client that replays through r, optionally
// decorated by wrap (innermost first).
func VCRHTTPClient(r *recorder.Recorder, wrap ...func(http.RoundTripper) http.RoundTripper) *http.Client {
	var rt http.RoundTripper = r
	for _, w := range wrap {
		rt = w(rt)
	}
	return &http.Client{Transport: rt}
}
