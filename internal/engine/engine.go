// Package engine implements the document-oriented storage engine behind the
// collection models. Each collection slug owns one physical table holding a
// JSONB document per row; the engine exposes CRUD with filter/sort
// primitives and a bulk attribute rename used by slug-change migrations.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine executes document operations against the storage backend.
type Engine struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates an engine over the given database handle.
func New(db *sql.DB, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, logger: logger}
}

// DB exposes the underlying handle for collaborators that persist their own
// metadata alongside the document tables.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// EnsureCollection creates the physical table for a collection slug if it
// does not exist yet. Existing documents are never revalidated; schema
// application is lazy, on read and write.
func (e *Engine) EnsureCollection(ctx context.Context, slug string) error {
	table, err := tableName(slug)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	doc JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table)
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", slug, ConvertDBError(err))
	}

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_doc ON %s USING GIN (doc)",
		strings.TrimPrefix(table, "c_"), table)
	if _, err := e.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to index collection %s: %w", slug, ConvertDBError(err))
	}

	return nil
}

// Insert stores a new document and returns it with its generated identity
// and timestamps.
func (e *Engine) Insert(ctx context.Context, slug string, doc map[string]interface{}) (map[string]interface{}, error) {
	table, err := tableName(slug)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, doc) VALUES ($1, $2) RETURNING id, doc, created_at, updated_at", table)
	row := e.db.QueryRowContext(ctx, query, uuid.NewString(), payload)

	record, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", ConvertDBError(err))
	}
	return record, nil
}

// Update merges the given attributes into an existing document.
func (e *Engine) Update(ctx context.Context, slug, id string, doc map[string]interface{}) (map[string]interface{}, error) {
	table, err := tableName(slug)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET doc = doc || $2, updated_at = NOW() WHERE id = $1 RETURNING id, doc, created_at, updated_at", table)
	row := e.db.QueryRowContext(ctx, query, id, payload)

	record, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", ConvertDBError(err))
	}
	return record, nil
}

// FindByID retrieves one document by identity.
func (e *Engine) FindByID(ctx context.Context, slug, id string) (map[string]interface{}, error) {
	table, err := tableName(slug)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, doc, created_at, updated_at FROM %s WHERE id = $1", table)
	row := e.db.QueryRowContext(ctx, query, id)

	record, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", ConvertDBError(err))
	}
	return record, nil
}

// FindByIDs retrieves documents by identity in one round trip. Missing ids
// are skipped, not reported.
func (e *Engine) FindByIDs(ctx context.Context, slug string, ids []string) ([]map[string]interface{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	table, err := tableName(slug)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT id, doc, created_at, updated_at FROM %s WHERE id = ANY($1::uuid[])", table)
	rows, err := e.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", ConvertDBError(err))
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Find retrieves documents matching the filter, ordered and paged.
func (e *Engine) Find(ctx context.Context, slug string, filter *Filter, sort Sort, limit, offset int) ([]map[string]interface{}, error) {
	table, err := tableName(slug)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, doc, created_at, updated_at FROM %s", table)

	paramCounter := 1
	args := make([]interface{}, 0)

	where, err := filter.ToSQL(&paramCounter, &args)
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " WHERE " + where
	}

	orderBy, err := sort.ToSQL()
	if err != nil {
		return nil, err
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", ConvertDBError(err))
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Count returns the number of documents matching the filter.
func (e *Engine) Count(ctx context.Context, slug string, filter *Filter) (int, error) {
	table, err := tableName(slug)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)

	paramCounter := 1
	args := make([]interface{}, 0)

	where, err := filter.ToSQL(&paramCounter, &args)
	if err != nil {
		return 0, err
	}
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", ConvertDBError(err))
	}
	return count, nil
}

// Delete removes a document permanently. Row soft-deletion goes through
// Update on the trashed attributes instead.
func (e *Engine) Delete(ctx context.Context, slug, id string) error {
	table, err := tableName(slug)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
	result, err := e.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", ConvertDBError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RenameAttribute moves the value under oldAttr to newAttr across every
// document in the collection that carries the old key. It returns the number
// of rewritten documents. The rewrite is a single statement but the caller's
// surrounding recompute/reinstall/rename sequence is not transactional.
func (e *Engine) RenameAttribute(ctx context.Context, slug, oldAttr, newAttr string) (int64, error) {
	table, err := tableName(slug)
	if err != nil {
		return 0, err
	}
	if _, err := quoteAttr(oldAttr); err != nil {
		return 0, err
	}
	if _, err := quoteAttr(newAttr); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET doc = (doc - $1::text) || jsonb_build_object($2::text, doc -> $1::text), updated_at = NOW() WHERE doc ? $1::text`,
		table)
	result, err := e.db.ExecContext(ctx, query, oldAttr, newAttr)
	if err != nil {
		return 0, fmt.Errorf("failed to rename attribute %s to %s: %w", oldAttr, newAttr, ConvertDBError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	e.logger.Debug("renamed attribute",
		zap.String("collection", slug),
		zap.String("from", oldAttr),
		zap.String("to", newAttr),
		zap.Int64("documents", affected))
	return affected, nil
}

// tableName maps a collection slug to its physical table name. Slugs are
// lowercase with hyphens; tables use a c_ prefix with underscores.
func tableName(slug string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("%w: empty collection slug", ErrInvalidIdentifier)
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, slug)
		}
	}
	return "c_" + strings.ReplaceAll(slug, "-", "_"), nil
}
