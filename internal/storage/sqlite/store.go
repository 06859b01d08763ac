package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// Store is a SQLite implementation of ReportStore
type Store struct {
	db *sql.DB
}

var _ ports.ReportStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			href TEXT,
			user_agent TEXT,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_type ON reports(type)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_received ON reports(received_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveReport(ctx context.Context, report *ports.StoredReport) error {
	if report.ReceivedAt.IsZero() {
		report.ReceivedAt = time.Now()
	}
	report.ReceivedAt = report.ReceivedAt.UTC()

	query := `INSERT INTO reports (id, type, href, user_agent, payload, received_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		report.ID, report.Type, report.Href, report.UserAgent, string(report.Payload), report.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*ports.StoredReport, error) {
	query := `SELECT id, type, href, user_agent, payload, received_at
	          FROM reports WHERE id = ?`

	report, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ports.ErrReportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

func (s *Store) ListReports(ctx context.Context, opts ports.ReportListOptions) ([]*ports.StoredReport, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}

	query := `SELECT id, type, href, user_agent, payload, received_at
	          FROM reports WHERE (? = '' OR type = ?)
	          ORDER BY received_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, opts.Type, opts.Type, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []*ports.StoredReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*ports.StoredReport, error) {
	var report ports.StoredReport
	var href, userAgent sql.NullString
	var payload string

	if err := row.Scan(&report.ID, &report.Type, &href, &userAgent, &payload, &report.ReceivedAt); err != nil {
		return nil, err
	}
	report.Href = href.String
	report.UserAgent = userAgent.String
	report.Payload = []byte(payload)
	return &report, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
