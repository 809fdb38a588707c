package schema

import "github.com/trellisdata/trellis/internal/field"

// tableEntry is one row of the field type table: the storage primitive a
// field type maps to, and whether that type defaults to array cardinality.
type tableEntry struct {
	Primitive Primitive
	Multiple  bool
}

// typeTable is the static mapping from field type to storage primitive and
// default cardinality. Types without an explicit synthesis rule fall back to
// this table; a type missing here entirely defaults to a scalar string.
var typeTable = map[field.Type]tableEntry{
	field.TypeShortText:    {Primitive: String},
	field.TypeLongText:     {Primitive: String},
	field.TypeDropdown:     {Primitive: String, Multiple: true},
	field.TypeCategory:     {Primitive: String, Multiple: true},
	field.TypeDate:         {Primitive: Date},
	field.TypeRelationship: {Primitive: Reference, Multiple: true},
	field.TypeFile:         {Primitive: Reference, Multiple: true},
	field.TypeGroup:        {Primitive: Reference, Multiple: true},
	field.TypeReaction:     {Primitive: Reference, Multiple: true},
	field.TypeEvaluation:   {Primitive: Reference, Multiple: true},
}

// Lookup returns the field type table entry for the given type. Unknown
// types map to a scalar string entry.
func Lookup(t field.Type) (Primitive, bool) {
	entry, ok := typeTable[t]
	if !ok {
		return String, false
	}
	return entry.Primitive, entry.Multiple
}
