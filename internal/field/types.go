// Package field defines the typed attribute model for user-defined
// collections. A Field couples an identity and a slug with one of the ten
// supported field types and the configuration payload relevant to that type.
package field

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type represents the built-in field types a collection can carry.
type Type int

const (
	// Text types
	TypeShortText Type = iota
	TypeLongText

	// Choice types
	TypeDropdown
	TypeCategory

	// Time
	TypeDate

	// Reference types
	TypeRelationship
	TypeFile
	TypeGroup

	// Feedback types
	TypeReaction
	TypeEvaluation
)

// String returns the string representation of the field type.
func (t Type) String() string {
	switch t {
	case TypeShortText:
		return "short-text"
	case TypeLongText:
		return "long-text"
	case TypeDropdown:
		return "dropdown"
	case TypeCategory:
		return "category"
	case TypeDate:
		return "date"
	case TypeRelationship:
		return "relationship"
	case TypeFile:
		return "file"
	case TypeGroup:
		return "field-group"
	case TypeReaction:
		return "reaction"
	case TypeEvaluation:
		return "evaluation"
	default:
		return "unknown"
	}
}

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "short-text":
		return TypeShortText, nil
	case "long-text":
		return TypeLongText, nil
	case "dropdown":
		return TypeDropdown, nil
	case "category":
		return TypeCategory, nil
	case "date":
		return TypeDate, nil
	case "relationship":
		return TypeRelationship, nil
	case "file":
		return TypeFile, nil
	case "field-group":
		return TypeGroup, nil
	case "reaction":
		return TypeReaction, nil
	case "evaluation":
		return TypeEvaluation, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// MarshalJSON serializes the type as its string form.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the string form of the type.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RelationshipConfig configures a relationship field: which collection it
// points at, which of the target's fields is shown, and the sort order used
// when listing candidates.
type RelationshipConfig struct {
	CollectionID   string `json:"collectionId,omitempty"`
	CollectionSlug string `json:"collectionSlug,omitempty"`
	Field          string `json:"field,omitempty"`
	Order          string `json:"order,omitempty"`
}

// DropdownConfig configures a dropdown field.
type DropdownConfig struct {
	Options []string `json:"options"`
}

// CategoryNode is one node of a category tree.
type CategoryNode struct {
	Name     string         `json:"name"`
	Children []CategoryNode `json:"children,omitempty"`
}

// CategoryConfig configures a category field.
type CategoryConfig struct {
	Tree []CategoryNode `json:"tree"`
}

// GroupConfig configures a field-group field. The companion collection that
// holds the nested documents is referenced by id and slug.
type GroupConfig struct {
	CollectionID   string `json:"collectionId,omitempty"`
	CollectionSlug string `json:"collectionSlug,omitempty"`
}

// Config holds the per-field configuration. The common flags apply to every
// type; exactly one of the typed payloads is set, matching the field's Type.
type Config struct {
	Required     bool        `json:"required"`
	Multiple     bool        `json:"multiple"`
	Format       string      `json:"format,omitempty"`
	Listing      bool        `json:"listing"`
	Filtering    bool        `json:"filtering"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`

	Relationship *RelationshipConfig `json:"relationship,omitempty"`
	Dropdown     *DropdownConfig     `json:"dropdown,omitempty"`
	Category     *CategoryConfig     `json:"category,omitempty"`
	Group        *GroupConfig        `json:"group,omitempty"`
}

// Field is one typed attribute definition belonging to a collection. Fields
// are never deleted, only trashed.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Type   Type   `json:"type"`
	Config Config `json:"configuration"`

	Trashed   bool       `json:"trashed"`
	TrashedAt *time.Time `json:"trashedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRelational reports whether values of this field are references to
// documents in another collection.
func (f *Field) IsRelational() bool {
	switch f.Type {
	case TypeRelationship, TypeFile, TypeGroup, TypeReaction, TypeEvaluation:
		return true
	default:
		return false
	}
}
