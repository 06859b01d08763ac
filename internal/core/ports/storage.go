package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrReportNotFound is returned by GetReport for an unknown ID.
var ErrReportNotFound = errors.New("report not found")

// StoredReport is a delivered report as kept by the collector.
type StoredReport struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Href       string          `json:"href"`
	UserAgent  string          `json:"user_agent"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ReportListOptions filters and paginates ListReports.
type ReportListOptions struct {
	Type   string
	Limit  int
	Offset int
}

// ReportStore persists reports received by the collector.
type ReportStore interface {
	// SaveReport stores a report
	SaveReport(ctx context.Context, report *StoredReport) error

	// GetReport retrieves a report by ID
	GetReport(ctx context.Context, id string) (*StoredReport, error)

	// ListReports lists reports, newest first
	ListReports(ctx context.Context, opts ReportListOptions) ([]*StoredReport, error)

	// Close closes the storage connection
	Close() error
}
