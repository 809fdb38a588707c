package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisdata/trellis/internal/field"
)

func TestFieldLookup(t *testing.T) {
	c := Collection{
		Fields: []field.Field{
			{ID: "f-1", Slug: "title"},
			{ID: "f-2", Slug: "genre"},
		},
	}

	f, ok := c.FieldBySlug("genre")
	require.True(t, ok)
	assert.Equal(t, "f-2", f.ID)

	f, ok = c.FieldByID("f-1")
	require.True(t, ok)
	assert.Equal(t, "title", f.Slug)

	// Returned pointers alias the collection's field list so lifecycle
	// mutations stick.
	f.Name = "Title"
	assert.Equal(t, "Title", c.Fields[0].Name)

	_, ok = c.FieldBySlug("missing")
	assert.False(t, ok)
	_, ok = c.FieldByID("missing")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("collection")
	require.NoError(t, err)
	assert.Equal(t, KindCollection, k)

	k, err = ParseKind("field-group")
	require.NoError(t, err)
	assert.Equal(t, KindGroup, k)

	_, err = ParseKind("folder")
	assert.Error(t, err)
}
