// Package collection defines the user-facing collection model and its
// metadata store. A collection owns an ordered field list and caches the
// schema synthesized from it, so row operations never recompute it.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/schema"
)

var (
	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrConflict is returned when a collection slug is already taken.
	ErrConflict = errors.New("collection slug already exists")
)

// Kind distinguishes ordinary collections from field-group companions.
type Kind int

const (
	// KindCollection is an ordinary, user-visible collection.
	KindCollection Kind = iota
	// KindGroup is a companion collection that exists only to hold the
	// nested documents of a field-group field.
	KindGroup
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindGroup:
		return "field-group"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "collection":
		return KindCollection, nil
	case "field-group":
		return KindGroup, nil
	default:
		return 0, fmt.Errorf("unknown collection kind: %s", s)
	}
}

// MarshalJSON serializes the kind as its string form.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the string form of the kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Config holds collection-level presentation and collaboration settings.
type Config struct {
	Display       string   `json:"display,omitempty"`
	Visibility    string   `json:"visibility,omitempty"`
	Collaborative bool     `json:"collaborative,omitempty"`
	Owner         string   `json:"owner,omitempty"`
	Admins        []string `json:"admins,omitempty"`
	FieldOrder    []string `json:"fieldOrder,omitempty"`
}

// Collection is a user-defined, named document type with an ordered field
// list and a computed, denormalized storage schema. The cached schema is
// consistent with the field list as of the last successful lifecycle
// mutation.
type Collection struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Slug   string        `json:"slug"`
	Kind   Kind          `json:"kind"`
	Fields []field.Field `json:"fields"`
	Config Config        `json:"configuration"`
	Schema schema.Schema `json:"schema"`

	Trashed   bool       `json:"trashed"`
	TrashedAt *time.Time `json:"trashedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FieldBySlug returns the field with the given slug, if present.
func (c *Collection) FieldBySlug(slug string) (*field.Field, bool) {
	for i := range c.Fields {
		if c.Fields[i].Slug == slug {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// FieldByID returns the field with the given id, if present.
func (c *Collection) FieldByID(id string) (*field.Field, bool) {
	for i := range c.Fields {
		if c.Fields[i].ID == id {
			return &c.Fields[i], true
		}
	}
	return nil, false
}
