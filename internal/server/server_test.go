package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/errorvitals/internal/config"
	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/host/hosttest"
	"github.com/tjfontaine/errorvitals/internal/runtime"
	"github.com/tjfontaine/errorvitals/internal/storage/memory"
)

const validReport = `{"pageInfo":{"href":"app://test","userAgent":"ua"},"flushed":{"type":"cors","message":"Script error.","filename":"a.js"}}`

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *memory.Store, *prometheus.Registry) {
	t.Helper()
	store := memory.New()
	registry := prometheus.NewRegistry()
	srv, err := New(Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    store,
		Registry: registry,
		APIKey:   apiKey,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store, registry
}

func post(t *testing.T, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without a store")
	}
}

func TestPostReport(t *testing.T) {
	ts, store, _ := newTestServer(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", validReport, http.StatusCreated},
		{"malformed json", "{", http.StatusBadRequest},
		{"unknown type", `{"pageInfo":{"href":"x"},"flushed":{"type":"oops"}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/report", tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				b, _ := io.ReadAll(resp.Body)
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, b)
			}
		})
	}

	reports, _ := store.ListReports(context.Background(), ports.ReportListOptions{})
	if len(reports) != 1 || reports[0].Type != "cors" {
		t.Errorf("expected one stored cors report, got %d", len(reports))
	}
}

func TestPostReport_TooLarge(t *testing.T) {
	srv, err := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Store: memory.New()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	body := `{"pad":"` + strings.Repeat("x", maxReportBytes) + `"}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestPostReport_APIKey(t *testing.T) {
	ts, _, _ := newTestServer(t, "secret")

	if resp := post(t, ts.URL+"/report", validReport, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}
	resp := post(t, ts.URL+"/report", validReport, map[string]string{"Authorization": "Bearer secret"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status with key = %d, want 201", resp.StatusCode)
	}

	// Listing stays open.
	list, err := http.Get(ts.URL + "/reports")
	if err != nil {
		t.Fatal(err)
	}
	list.Body.Close()
	if list.StatusCode != http.StatusOK {
		t.Errorf("GET /reports = %d, want 200", list.StatusCode)
	}
}

func TestListAndGetReports(t *testing.T) {
	ts, store, _ := newTestServer(t, "")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []string{"js", "http", "js"} {
		_ = store.SaveReport(context.Background(), &ports.StoredReport{
			ID:         fmt.Sprintf("r-%d", i),
			Type:       typ,
			Payload:    json.RawMessage(`{}`),
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []string
	}{
		{"all", "", http.StatusOK, []string{"r-2", "r-1", "r-0"}},
		{"by type", "?type=js", http.StatusOK, []string{"r-2", "r-0"}},
		{"paged", "?limit=1&offset=1", http.StatusOK, []string{"r-1"}},
		{"bad limit", "?limit=zero", http.StatusBadRequest, nil},
		{"negative offset", "?offset=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/reports" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantIDs == nil {
				return
			}

			var got listResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got.Reports) != len(tt.wantIDs) {
				t.Fatalf("got %d reports, want %d", len(got.Reports), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Reports[i].ID != id {
					t.Errorf("reports[%d] = %s, want %s", i, got.Reports[i].ID, id)
				}
			}
		})
	}

	resp, err := http.Get(ts.URL + "/reports/r-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var one ports.StoredReport
	if err := json.NewDecoder(resp.Body).Decode(&one); err != nil || one.Type != "http" {
		t.Errorf("GET /reports/r-1 = %+v, %v", one, err)
	}

	missing, err := http.Get(ts.URL + "/reports/nope")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing report status = %d, want 404", missing.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, "")
	post(t, ts.URL+"/report", validReport, nil)
	post(t, ts.URL+"/report", "{", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`errorvitals_collector_reports_received_total{outcome="stored"} 1`,
		`errorvitals_collector_reports_received_total{outcome="invalid"} 1`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestAgentDeliversToCollector(t *testing.T) {
	ts, store, _ := newTestServer(t, "agent-key")

	fake := &hosttest.Fake{Page: domain.PageInfo{Href: "app://e2e", UserAgent: "agent"}}
	agent, err := runtime.New(
		runtime.WithHost(fake),
		runtime.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		runtime.WithConfig(&config.Config{
			Exception: true,
			Report: config.ReportConfig{
				URL:     ts.URL + "/report",
				Headers: map[string]string{"Authorization": "Bearer agent-key"},
			},
		}),
	)
	if err != nil {
		t.Fatalf("runtime.New() error = %v", err)
	}
	if err := agent.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer agent.Shutdown(context.Background())

	fake.EmitError(&domain.ErrorEvent{
		Message:  "TypeError: x is undefined",
		Filename: "https://app.example.com/main.js",
		Error: &domain.ScriptError{
			Name:    "TypeError",
			Message: "x is undefined",
			Stack:   "TypeError: x is undefined\n    at render (https://app.example.com/main.js:10:5)",
		},
	})
	agent.Wait()

	reports, err := store.ListReports(context.Background(), ports.ReportListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(reports))
	}
	if reports[0].Type != "js" || reports[0].Href != "app://e2e" {
		t.Errorf("unexpected stored report: %+v", reports[0])
	}

	var payload struct {
		Flushed domain.FlushedJSException `json:"flushed"`
	}
	if err := json.Unmarshal(reports[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Flushed.Stacks) != 1 || payload.Flushed.Stacks[0].FunctionName != "render" {
		t.Errorf("unexpected stacks: %+v", payload.Flushed.Stacks)
	}
}
