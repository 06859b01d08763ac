// Package collector accepts reports delivered by agents, validates them and
// hands them to a ReportStore. Reports arrive over HTTP or from an SQS queue.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Ingestor validates and stores reports.
type Ingestor struct {
	store  ports.ReportStore
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestor creates an ingestor backed by store.
func NewIngestor(store ports.ReportStore, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, logger: logger, now: time.Now}
}

// reportHeader is the part of a report the collector indexes on.
type reportHeader struct {
	PageInfo domain.PageInfo `json:"pageInfo"`
	Flushed  struct {
		Type string `json:"type"`
	} `json:"flushed"`
}

// Ingest validates body as a flushed report and stores it. Invalid payloads
// return a schema_validation AgentError.
func (i *Ingestor) Ingest(ctx context.Context, body []byte) (*ports.StoredReport, error) {
	if err := validate(reportLoader, body); err != nil {
		return nil, domain.ErrSchemaValidation(err.Error())
	}

	var hdr reportHeader
	if err := json.Unmarshal(body, &hdr); err != nil {
		return nil, domain.ErrSchemaValidation("decode report: " + err.Error())
	}

	report := &ports.StoredReport{
		ID:         uuid.NewString(),
		Type:       hdr.Flushed.Type,
		Href:       hdr.PageInfo.Href,
		UserAgent:  hdr.PageInfo.UserAgent,
		Payload:    json.RawMessage(body),
		ReceivedAt: i.now(),
	}
	if err := i.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	i.logger.DebugContext(ctx, "report stored",
		slog.String("id", report.ID),
		slog.String("type", report.Type),
	)
	return report, nil
}

// IngestEnvelope unwraps a queued envelope and ingests the report inside it.
func (i *Ingestor) IngestEnvelope(ctx context.Context, body []byte) (*ports.StoredReport, error) {
	if err := validate(envelopeLoader, body); err != nil {
		return nil, domain.ErrSchemaValidation("invalid envelope: " + err.Error())
	}

	var env struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.ErrSchemaValidation("decode envelope: " + err.Error())
	}
	return i.Ingest(ctx, env.Message)
}
