package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Store is an in-memory implementation of ReportStore
type Store struct {
	mu      sync.RWMutex
	reports map[string]*ports.StoredReport
}

var _ ports.ReportStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		reports: make(map[string]*ports.StoredReport),
	}
}

func (s *Store) SaveReport(ctx context.Context, report *ports.StoredReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	if report.ReceivedAt.IsZero() {
		report.ReceivedAt = time.Now()
	}

	stored := *report
	s.reports[report.ID] = &stored
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*ports.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[id]
	if !exists {
		return nil, fmt.Errorf("report %s: %w", id, ports.ErrReportNotFound)
	}

	out := *report
	return &out, nil
}

func (s *Store) ListReports(ctx context.Context, opts ports.ReportListOptions) ([]*ports.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ports.StoredReport
	for _, report := range s.reports {
		if opts.Type != "" && report.Type != opts.Type {
			continue
		}
		out := *report
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ReceivedAt.Equal(result[j].ReceivedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*ports.StoredReport{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
