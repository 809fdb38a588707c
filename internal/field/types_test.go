package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeRoundTrip(t *testing.T) {
	types := []Type{
		TypeShortText, TypeLongText, TypeDropdown, TypeCategory, TypeDate,
		TypeRelationship, TypeFile, TypeGroup, TypeReaction, TypeEvaluation,
	}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			parsed, err := ParseType(typ.String())
			require.NoError(t, err)
			assert.Equal(t, typ, parsed)
		})
	}
}

func TestParseTypeUnknown(t *testing.T) {
	_, err := ParseType("hologram")
	assert.Error(t, err)
}

func TestIsRelational(t *testing.T) {
	relational := []Type{TypeRelationship, TypeFile, TypeGroup, TypeReaction, TypeEvaluation}
	for _, typ := range relational {
		f := Field{Type: typ}
		assert.True(t, f.IsRelational(), typ.String())
	}

	scalar := []Type{TypeShortText, TypeLongText, TypeDropdown, TypeCategory, TypeDate}
	for _, typ := range scalar {
		f := Field{Type: typ}
		assert.False(t, f.IsRelational(), typ.String())
	}
}
