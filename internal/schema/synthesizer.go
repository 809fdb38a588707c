package schema

import "github.com/trellisdata/trellis/internal/field"

// Synthesize compiles an ordered field list into a storage schema. Fields
// are folded into the schema in list order, so a later field with the same
// slug overwrites an earlier one; slug uniqueness is the lifecycle service's
// concern, not this one's. The result always carries the `trashed` and
// `trashedAt` housekeeping attributes.
func Synthesize(fields []field.Field) Schema {
	s := Schema{
		AttrTrashed:   {Primitive: Boolean, Default: false},
		AttrTrashedAt: {Primitive: Date, Default: nil},
	}

	for i := range fields {
		s[fields[i].Slug] = compile(&fields[i])
	}

	return s
}

// compile derives the storage descriptor for a single field from its type
// and configuration.
func compile(f *field.Field) Descriptor {
	switch f.Type {
	case field.TypeShortText, field.TypeLongText:
		// Text is always scalar, whatever the multiple flag says.
		return Descriptor{Primitive: String, Required: f.Config.Required}

	case field.TypeDate:
		return Descriptor{
			Primitive: Date,
			Multiple:  f.Config.Multiple,
			Required:  f.Config.Required,
		}

	case field.TypeDropdown, field.TypeCategory:
		// Choice values are stored as string arrays even when the field is
		// configured single-choice.
		return Descriptor{Primitive: String, Multiple: true, Required: f.Config.Required}

	case field.TypeFile:
		return Descriptor{
			Primitive: Reference,
			Multiple:  true,
			Required:  f.Config.Required,
			Ref:       SystemFiles,
		}

	case field.TypeRelationship:
		desc := Descriptor{Primitive: Reference, Multiple: true, Required: f.Config.Required}
		// A relationship whose target was never configured stays a
		// referenceless array; values are stored but never populated.
		if rel := f.Config.Relationship; rel != nil && rel.CollectionSlug != "" {
			desc.Ref = rel.CollectionSlug
		}
		return desc

	case field.TypeGroup:
		desc := Descriptor{Primitive: Reference, Multiple: true, Required: f.Config.Required}
		if grp := f.Config.Group; grp != nil && grp.CollectionSlug != "" {
			desc.Ref = grp.CollectionSlug
		}
		return desc

	case field.TypeReaction:
		return Descriptor{Primitive: Reference, Multiple: true, Ref: SystemReactions}

	case field.TypeEvaluation:
		return Descriptor{Primitive: Reference, Multiple: true, Ref: SystemEvaluations}

	default:
		// Future types without an explicit rule: cardinality from the
		// multiple flag, primitive from the type table.
		primitive, _ := Lookup(f.Type)
		return Descriptor{
			Primitive: primitive,
			Multiple:  f.Config.Multiple,
			Required:  f.Config.Required,
		}
	}
}
