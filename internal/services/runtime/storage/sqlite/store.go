// Package sqlite stores the event delivery journal in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/arkomp/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed delivery journal persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a journal database and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordDelivery persists one routing outcome.
func (s *Store) RecordDelivery(ctx context.Context, record storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.OperatorID = strings.TrimSpace(record.OperatorID)
	record.EventKind = strings.TrimSpace(record.EventKind)
	record.LastError = strings.TrimSpace(record.LastError)
	switch {
	case record.OperatorID == "":
		return fmt.Errorf("operator id is required")
	case record.EventKind == "":
		return fmt.Errorf("event kind is required")
	}
	switch record.Outcome {
	case storage.OutcomeDelivered, storage.OutcomeDropped, storage.OutcomeFailed:
	default:
		return fmt.Errorf("unknown outcome %q", record.Outcome)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_deliveries (operator_id, event_kind, body, outcome, last_error, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.OperatorID,
		record.EventKind,
		record.Body,
		string(record.Outcome),
		record.LastError,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// ListDeliveries lists newest-first delivery records.
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, operator_id, event_kind, body, outcome, last_error, created_at
FROM event_deliveries
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	records := make([]storage.DeliveryRecord, 0, limit)
	for rows.Next() {
		var record storage.DeliveryRecord
		var outcome string
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.OperatorID,
			&record.EventKind,
			&record.Body,
			&outcome,
			&record.LastError,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		record.Outcome = storage.Outcome(outcome)
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return records, nil
}

var _ storage.DeliveryJournal = (*Store)(nil)
