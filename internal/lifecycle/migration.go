package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Migration statuses.
const (
	MigrationPending = "pending"
	MigrationApplied = "applied"
	MigrationFailed  = "failed"
)

// Migration records one attribute rename triggered by a field slug change.
// The rename itself is best-effort and non-transactional; the record makes
// an interrupted rename detectable and re-runnable.
type Migration struct {
	ID         string
	Collection string
	OldAttr    string
	NewAttr    string
	Status     string
	Documents  int64
	Error      string
	CreatedAt  time.Time
	AppliedAt  *time.Time
}

// MigrationLog persists attribute-rename migration records.
type MigrationLog struct {
	db *sql.DB
}

// NewMigrationLog creates a migration log over the given database handle.
func NewMigrationLog(db *sql.DB) *MigrationLog {
	return &MigrationLog{db: db}
}

// Initialize ensures the attribute_migrations table exists.
func (l *MigrationLog) Initialize(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS attribute_migrations (
	id UUID PRIMARY KEY,
	collection_slug TEXT NOT NULL,
	old_attr TEXT NOT NULL,
	new_attr TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	documents BIGINT NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	applied_at TIMESTAMPTZ
)`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// Begin records a pending rename and returns its id.
func (l *MigrationLog) Begin(ctx context.Context, collection, oldAttr, newAttr string) (string, error) {
	id := uuid.NewString()
	query := `INSERT INTO attribute_migrations (id, collection_slug, old_attr, new_attr, status)
VALUES ($1, $2, $3, $4, 'pending')`
	if _, err := l.db.ExecContext(ctx, query, id, collection, oldAttr, newAttr); err != nil {
		return "", fmt.Errorf("failed to record migration: %w", err)
	}
	return id, nil
}

// Complete marks a migration applied with the number of rewritten documents.
func (l *MigrationLog) Complete(ctx context.Context, id string, documents int64) error {
	query := `UPDATE attribute_migrations
SET status = 'applied', documents = $2, applied_at = NOW()
WHERE id = $1`
	if _, err := l.db.ExecContext(ctx, query, id, documents); err != nil {
		return fmt.Errorf("failed to complete migration: %w", err)
	}
	return nil
}

// Fail marks a migration failed with its cause. The rename is left for
// operational remediation, typically a later resume pass.
func (l *MigrationLog) Fail(ctx context.Context, id string, cause error) error {
	query := `UPDATE attribute_migrations SET status = 'failed', error = $2 WHERE id = $1`
	if _, err := l.db.ExecContext(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark migration failed: %w", err)
	}
	return nil
}

// Unapplied returns migrations still pending or failed, oldest first.
func (l *MigrationLog) Unapplied(ctx context.Context) ([]*Migration, error) {
	query := `SELECT id, collection_slug, old_attr, new_attr, status, documents, error, created_at, applied_at
FROM attribute_migrations
WHERE status != 'applied'
ORDER BY created_at ASC`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		m := &Migration{}
		var appliedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Collection, &m.OldAttr, &m.NewAttr, &m.Status,
			&m.Documents, &m.Error, &m.CreatedAt, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		if appliedAt.Valid {
			t := appliedAt.Time
			m.AppliedAt = &t
		}
		migrations = append(migrations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return migrations, nil
}
