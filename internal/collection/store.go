package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/schema"
)

const collectionColumns = "id, name, slug, kind, config, fields, schema, trashed, trashed_at, created_at, updated_at"

// Store persists collection metadata. Field lists, configuration, and the
// cached schema are stored as JSONB documents on the collection row.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Initialize ensures the metadata table exists.
func (s *Store) Initialize(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS collections (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL DEFAULT 'collection',
	config JSONB NOT NULL DEFAULT '{}'::jsonb,
	fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	schema JSONB NOT NULL DEFAULT '{}'::jsonb,
	trashed BOOLEAN NOT NULL DEFAULT FALSE,
	trashed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize collections table: %w", err)
	}
	return nil
}

// Create inserts a new collection. A duplicate slug surfaces as ErrConflict.
func (s *Store) Create(ctx context.Context, c *Collection) error {
	config, fields, schemaDoc, err := encodeDocs(c)
	if err != nil {
		return err
	}

	query := `INSERT INTO collections (id, name, slug, kind, config, fields, schema)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`
	err = s.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Slug, c.Kind.String(), config, fields, schemaDoc,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.Slug, convertStoreError(err))
	}
	return nil
}

// Update rewrites a collection's mutable columns: name, slug, config, field
// list, cached schema, and trash state.
func (s *Store) Update(ctx context.Context, c *Collection) error {
	config, fields, schemaDoc, err := encodeDocs(c)
	if err != nil {
		return err
	}

	query := `UPDATE collections
SET name = $2, slug = $3, config = $4, fields = $5, schema = $6,
	trashed = $7, trashed_at = $8, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`
	err = s.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Slug, config, fields, schemaDoc, c.Trashed, c.TrashedAt,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update collection %s: %w", c.Slug, convertStoreError(err))
	}
	return nil
}

// GetBySlug retrieves a collection by slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Collection, error) {
	query := fmt.Sprintf("SELECT %s FROM collections WHERE slug = $1", collectionColumns)
	return s.getOne(ctx, query, slug)
}

// GetByID retrieves a collection by id.
func (s *Store) GetByID(ctx context.Context, id string) (*Collection, error) {
	query := fmt.Sprintf("SELECT %s FROM collections WHERE id = $1", collectionColumns)
	return s.getOne(ctx, query, id)
}

// List returns every stored collection, field-group companions included,
// ordered by creation time. Used at startup to rematerialize live models.
func (s *Store) List(ctx context.Context) ([]*Collection, error) {
	query := fmt.Sprintf("SELECT %s FROM collections ORDER BY created_at ASC", collectionColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collections, nil
}

func (s *Store) getOne(ctx context.Context, query string, arg interface{}) (*Collection, error) {
	c, err := scanCollection(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, convertStoreError(err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(row scanner) (*Collection, error) {
	var (
		c         Collection
		kind      string
		config    []byte
		fields    []byte
		schemaDoc []byte
		trashedAt sql.NullTime
	)

	err := row.Scan(&c.ID, &c.Name, &c.Slug, &kind, &config, &fields, &schemaDoc,
		&c.Trashed, &trashedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if c.Kind, err = ParseKind(kind); err != nil {
		return nil, err
	}
	if trashedAt.Valid {
		t := trashedAt.Time
		c.TrashedAt = &t
	}
	if err := json.Unmarshal(config, &c.Config); err != nil {
		return nil, fmt.Errorf("failed to decode collection config: %w", err)
	}
	c.Fields = []field.Field{}
	if err := json.Unmarshal(fields, &c.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode collection fields: %w", err)
	}
	c.Schema = schema.Schema{}
	if err := json.Unmarshal(schemaDoc, &c.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode collection schema: %w", err)
	}

	return &c, nil
}

func encodeDocs(c *Collection) (config, fields, schemaDoc []byte, err error) {
	if config, err = json.Marshal(c.Config); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode collection config: %w", err)
	}
	fieldList := c.Fields
	if fieldList == nil {
		fieldList = []field.Field{}
	}
	if fields, err = json.Marshal(fieldList); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode collection fields: %w", err)
	}
	if schemaDoc, err = json.Marshal(c.Schema); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode collection schema: %w", err)
	}
	return config, fields, schemaDoc, nil
}

// convertStoreError maps driver errors to the package's sentinel errors.
func convertStoreError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
