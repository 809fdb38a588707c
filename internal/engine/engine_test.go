package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil), mock
}

func docColumns() []string {
	return []string{"id", "doc", "created_at", "updated_at"}
}

func TestEnsureCollection(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS c_movies")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_movies_doc ON c_movies USING GIN (doc)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, eng.EnsureCollection(context.Background(), "movies"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCollectionRejectsBadSlug(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.EnsureCollection(context.Background(), "movies; DROP TABLE users")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	err = eng.EnsureCollection(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestInsert(t *testing.T) {
	eng, mock := newTestEngine(t)
	now := time.Now()

	doc, _ := json.Marshal(map[string]interface{}{"title": "Heat"})
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO c_movies (id, doc) VALUES ($1, $2) RETURNING")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(docColumns()).
			AddRow("doc-1", doc, now, now))

	record, err := eng.Insert(context.Background(), "movies", map[string]interface{}{"title": "Heat"})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", record[AttrID])
	assert.Equal(t, "Heat", record["title"])
	assert.Equal(t, now, record[AttrCreatedAt])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMergesDocument(t *testing.T) {
	eng, mock := newTestEngine(t)
	now := time.Now()

	merged, _ := json.Marshal(map[string]interface{}{"title": "Heat", "year": "1995"})
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE c_movies SET doc = doc || $2, updated_at = NOW() WHERE id = $1")).
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(docColumns()).
			AddRow("doc-1", merged, now, now))

	record, err := eng.Update(context.Background(), "movies", "doc-1", map[string]interface{}{"year": "1995"})
	require.NoError(t, err)
	assert.Equal(t, "1995", record["year"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc, created_at, updated_at FROM c_movies WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := eng.FindByID(context.Background(), "movies", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByIDsEmptyInput(t *testing.T) {
	eng, _ := newTestEngine(t)

	docs, err := eng.FindByIDs(context.Background(), "movies", nil)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestFindAppliesFilterSortAndPaging(t *testing.T) {
	eng, mock := newTestEngine(t)
	now := time.Now()

	filter := NewFilter().Where(Condition{Attr: "trashed", Op: OpEqual, Value: false})
	sort := Sort{{Attr: "title", Direction: "asc"}}

	expected := "SELECT id, doc, created_at, updated_at FROM c_movies" +
		" WHERE COALESCE((doc->>'trashed')::boolean, FALSE) = $1" +
		" ORDER BY doc->>'title' ASC LIMIT 10 OFFSET 20"
	doc, _ := json.Marshal(map[string]interface{}{"title": "Heat"})
	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows(docColumns()).AddRow("doc-1", doc, now, now))

	docs, err := eng.Find(context.Background(), "movies", filter, sort, 10, 20)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Heat", docs[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM c_movies")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := eng.Count(context.Background(), "movies", NewFilter())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestDeleteMissingDocument(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM c_movies WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := eng.Delete(context.Background(), "movies", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameAttribute(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE c_movies SET doc = (doc - $1::text) || jsonb_build_object($2::text, doc -> $1::text), updated_at = NOW() WHERE doc ? $1::text")).
		WithArgs("old-slug", "new-slug").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := eng.RenameAttribute(context.Background(), "movies", "old-slug", "new-slug")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameAttributeRejectsBadNames(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.RenameAttribute(context.Background(), "movies", "ok", "bad name")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
