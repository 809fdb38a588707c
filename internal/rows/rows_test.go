package rows

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/populate"
	"github.com/trellisdata/trellis/internal/query"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/schema"
)

func newTestRows(t *testing.T) (*Service, *registry.Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, nil)
	reg := registry.New(eng, nil)
	store := collection.NewStore(db)
	planner := populate.NewPlanner(store, nil)
	applier := populate.NewApplier(eng, reg, nil)
	return NewService(store, reg, planner, applier, nil), reg, mock
}

func expectCollectionLookup(t *testing.T, mock sqlmock.Sqlmock, c *collection.Collection) {
	t.Helper()
	config, err := json.Marshal(c.Config)
	require.NoError(t, err)
	fields, err := json.Marshal(c.Fields)
	require.NoError(t, err)
	schemaDoc, err := json.Marshal(c.Schema)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM collections WHERE slug = $1")).
		WithArgs(c.Slug).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "kind", "config",
			"fields", "schema", "trashed", "trashed_at", "created_at", "updated_at"}).
			AddRow(c.ID, c.Name, c.Slug, c.Kind.String(), config, fields, schemaDoc,
				c.Trashed, nil, time.Now(), time.Now()))
}

func movies() *collection.Collection {
	fields := []field.Field{
		{ID: "f-1", Name: "Title", Slug: "title", Type: field.TypeShortText},
	}
	return &collection.Collection{
		ID:     "coll-1",
		Name:   "Movies",
		Slug:   "movies",
		Kind:   collection.KindCollection,
		Fields: fields,
		Schema: schema.Synthesize(fields),
	}
}

func materializeMovies(t *testing.T, reg *registry.Registry, mock sqlmock.Sqlmock, c *collection.Collection) {
	t.Helper()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS c_movies").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := reg.Materialize(context.Background(), c.Slug, c.Schema)
	require.NoError(t, err)
}

func TestListFiltersAndSorts(t *testing.T) {
	svc, reg, mock := newTestRows(t)
	c := movies()
	materializeMovies(t, reg, mock, c)
	expectCollectionLookup(t, mock, c)

	doc, _ := json.Marshal(map[string]interface{}{"title": "Heat"})
	expected := "SELECT id, doc, created_at, updated_at FROM c_movies" +
		" WHERE doc->>'title' ~* $1 AND COALESCE((doc->>'trashed')::boolean, FALSE) = $2" +
		" ORDER BY doc->>'title' ASC LIMIT 25"
	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs("h[eéèêë][aáàâãäå]t", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at", "updated_at"}).
			AddRow("doc-1", doc, time.Now(), time.Now()))

	docs, err := svc.List(context.Background(), "movies", query.Request{
		"title":       "heat",
		"order-title": "asc",
	}, ListOptions{Limit: 25})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Heat", docs[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTrashedCollectionIsNotFound(t *testing.T) {
	svc, _, mock := newTestRows(t)
	c := movies()
	c.Trashed = true
	expectCollectionLookup(t, mock, c)

	_, err := svc.List(context.Background(), "movies", query.Request{}, ListOptions{})
	assert.ErrorIs(t, err, collection.ErrNotFound)
}

func TestResolveRematerializesMissingModel(t *testing.T) {
	svc, reg, mock := newTestRows(t)
	c := movies()

	// No live model yet: resolve recompiles from the cached schema.
	expectCollectionLookup(t, mock, c)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS c_movies").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := svc.Count(context.Background(), "movies", query.Request{})
	require.NoError(t, err)

	_, ok := reg.Get("movies")
	assert.True(t, ok)
}

func TestTrashStampsTimestamp(t *testing.T) {
	svc, reg, mock := newTestRows(t)
	c := movies()
	materializeMovies(t, reg, mock, c)
	expectCollectionLookup(t, mock, c)

	updated, _ := json.Marshal(map[string]interface{}{"trashed": true})
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE c_movies SET doc = doc || $2")).
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at", "updated_at"}).
			AddRow("doc-1", updated, time.Now(), time.Now()))

	doc, err := svc.Trash(context.Background(), "movies", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, true, doc["trashed"])
}
