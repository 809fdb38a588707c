package registry

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/schema"
)

func newTestRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(engine.New(db, nil), nil), mock
}

func expectEnsure(mock sqlmock.Sqlmock, table string) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func minimalSchema() schema.Schema {
	return schema.Schema{
		schema.AttrTrashed:   {Primitive: schema.Boolean, Default: false},
		schema.AttrTrashedAt: {Primitive: schema.Date, Default: nil},
	}
}

func TestMaterializeInstallsModel(t *testing.T) {
	reg, mock := newTestRegistry(t)
	expectEnsure(mock, "c_movies")

	model, err := reg.Materialize(context.Background(), "movies", minimalSchema())
	require.NoError(t, err)
	assert.Equal(t, "movies", model.Slug())

	got, ok := reg.Get("movies")
	require.True(t, ok)
	assert.Same(t, model, got)
	assert.Equal(t, 1, reg.Count())
}

func TestMaterializeReplacesPreviousModel(t *testing.T) {
	reg, mock := newTestRegistry(t)
	expectEnsure(mock, "c_movies")
	expectEnsure(mock, "c_movies")

	first, err := reg.Materialize(context.Background(), "movies", minimalSchema())
	require.NoError(t, err)

	s := minimalSchema()
	s["title"] = schema.Descriptor{Primitive: schema.String}
	second, err := reg.Materialize(context.Background(), "movies", s)
	require.NoError(t, err)

	got, ok := reg.Get("movies")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
	assert.Equal(t, 1, reg.Count())
}

func TestMaterializePanicsOnMissingSlug(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.Panics(t, func() {
		_, _ = reg.Materialize(context.Background(), "", minimalSchema())
	})
	assert.Panics(t, func() {
		_, _ = reg.Materialize(context.Background(), "movies", nil)
	})
}

func TestRemove(t *testing.T) {
	reg, mock := newTestRegistry(t)
	expectEnsure(mock, "c_movies")

	model, err := reg.Materialize(context.Background(), "movies", minimalSchema())
	require.NoError(t, err)

	removed := reg.Remove("movies")
	assert.Same(t, model, removed)

	_, ok := reg.Get("movies")
	assert.False(t, ok)
	assert.Nil(t, reg.Remove("movies"))
}

func TestConcurrentAccess(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 20; i++ {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			slug := fmt.Sprintf("coll-%d", n)
			_, err := reg.Materialize(context.Background(), slug, minimalSchema())
			assert.NoError(t, err)
			_, _ = reg.Get(slug)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, reg.Count())
	assert.Len(t, reg.List(), 20)
}

func TestIsSystem(t *testing.T) {
	for _, slug := range []string{schema.SystemUsers, schema.SystemFiles, schema.SystemReactions, schema.SystemEvaluations} {
		assert.True(t, IsSystem(slug), slug)
	}
	assert.False(t, IsSystem("movies"))
}

func TestRegisterSystem(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < len(systemSchemas); i++ {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, reg.RegisterSystem(context.Background()))
	assert.Equal(t, len(systemSchemas), reg.Count())

	users, ok := reg.Get(schema.SystemUsers)
	require.True(t, ok)
	assert.True(t, users.Schema()["email"].Required)
}
