package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/errorvitals/internal/collector"
	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

const (
	// maxReportBytes bounds one POST /report body.
	maxReportBytes = 1 << 20
	defaultLimit   = 50
	maxLimit       = 500
)

type handlers struct {
	ingestor *collector.Ingestor
	store    ports.ReportStore
	received *prometheus.CounterVec
}

func newHandlers(ingestor *collector.Ingestor, store ports.ReportStore, registry *prometheus.Registry) (*handlers, error) {
	h := &handlers{
		ingestor: ingestor,
		store:    store,
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_collector_reports_received_total",
			Help: "Reports received over HTTP by outcome",
		}, []string{"outcome"}),
	}
	if registry != nil {
		if err := registry.Register(h.received); err != nil {
			return nil, fmt.Errorf("register collector metrics: %w", err)
		}
	}
	return h, nil
}

type createdResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type listResponse struct {
	Reports []*ports.StoredReport `json:"reports"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) postReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportBytes))
	if err != nil {
		h.received.WithLabelValues("too_large").Inc()
		AddError(r.Context(), err)
		writeError(w, http.StatusRequestEntityTooLarge, "report body too large")
		return
	}

	report, err := h.ingestor.Ingest(r.Context(), body)
	if err != nil {
		AddError(r.Context(), err)
		if domain.IsKind(err, domain.ErrorKindSchemaValidation) {
			h.received.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.received.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to store report")
		return
	}

	h.received.WithLabelValues("stored").Inc()
	AddLogField(r.Context(), "report_id", report.ID)
	AddLogField(r.Context(), "report_type", report.Type)
	AddLogField(r.Context(), "self_report", r.Header.Get(domain.MonitorReportHeader))
	writeJSON(w, http.StatusCreated, createdResponse{ID: report.ID, Type: report.Type})
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), defaultLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	reports, err := h.store.ListReports(r.Context(), ports.ReportListOptions{
		Type:   q.Get("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []*ports.StoredReport{}
	}

	writeJSON(w, http.StatusOK, listResponse{Reports: reports, Limit: limit, Offset: offset})
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "report_id")

	report, err := h.store.GetReport(r.Context(), id)
	if errors.Is(err, ports.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
