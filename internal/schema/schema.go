// Package schema compiles an ordered field list into the storage schema used
// to materialize a collection's live document model. The schema is a mapping
// from field slug to a type descriptor; it is cached on the collection and
// recomputed only by lifecycle mutations.
package schema

import (
	"encoding/json"
	"fmt"
)

// Primitive represents a storage-level primitive type.
type Primitive int

const (
	String Primitive = iota
	Date
	Boolean
	Reference
)

// String returns the string representation of the primitive.
func (p Primitive) String() string {
	switch p {
	case String:
		return "string"
	case Date:
		return "date"
	case Boolean:
		return "boolean"
	case Reference:
		return "reference"
	default:
		return "unknown"
	}
}

// ParsePrimitive converts a string to a Primitive.
func ParsePrimitive(s string) (Primitive, error) {
	switch s {
	case "string":
		return String, nil
	case "date":
		return Date, nil
	case "boolean":
		return Boolean, nil
	case "reference":
		return Reference, nil
	default:
		return 0, fmt.Errorf("unknown primitive: %s", s)
	}
}

// MarshalJSON serializes the primitive as its string form.
func (p Primitive) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses the string form of the primitive.
func (p *Primitive) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePrimitive(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Descriptor describes the storage shape of one attribute: its primitive
// type, cardinality, requiredness, default value, and, for reference
// attributes, the slug of the collection the references point at. Ref may be
// empty on a relationship field whose target was never configured; such an
// attribute still stores values but is never populated.
type Descriptor struct {
	Primitive Primitive   `json:"type"`
	Multiple  bool        `json:"multiple,omitempty"`
	Required  bool        `json:"required,omitempty"`
	Ref       string      `json:"ref,omitempty"`
	Default   interface{} `json:"default,omitempty"`
}

// Schema maps attribute slugs to their descriptors. Every synthesized schema
// carries the two housekeeping attributes `trashed` and `trashedAt` in
// addition to one entry per distinct field slug.
type Schema map[string]Descriptor

// Attributes returns the slugs present in the schema, housekeeping included.
func (s Schema) Attributes() []string {
	attrs := make([]string, 0, len(s))
	for slug := range s {
		attrs = append(attrs, slug)
	}
	return attrs
}

// References returns the subset of attributes that are reference descriptors
// with a resolvable target, keyed by slug.
func (s Schema) References() map[string]Descriptor {
	refs := make(map[string]Descriptor)
	for slug, desc := range s {
		if desc.Primitive == Reference && desc.Ref != "" {
			refs[slug] = desc
		}
	}
	return refs
}

// Slugs of the housekeeping attributes present in every schema.
const (
	AttrTrashed   = "trashed"
	AttrTrashedAt = "trashedAt"
)

// Slugs of the fixed system collections reference descriptors may point at.
const (
	SystemUsers       = "users"
	SystemFiles       = "files"
	SystemReactions   = "reactions"
	SystemEvaluations = "evaluations"
)
