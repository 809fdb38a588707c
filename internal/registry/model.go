// Package registry owns the live, per-slug compiled storage models. A model
// binds a collection slug to its synthesized schema and the storage engine;
// the registry guarantees at most one live model per slug, replaced
// atomically on recompilation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/schema"
)

// ErrValidation is returned when a document is missing required attributes.
var ErrValidation = errors.New("document validation failed")

// Model is a live, queryable storage model for one collection slug.
type Model struct {
	slug   string
	schema schema.Schema
	engine *engine.Engine
}

// Slug returns the collection slug the model is bound to.
func (m *Model) Slug() string {
	return m.slug
}

// Schema returns the schema the model was compiled from.
func (m *Model) Schema() schema.Schema {
	return m.schema
}

// Insert conforms the attributes to the schema, applies defaults, checks
// required attributes, and stores the document.
func (m *Model) Insert(ctx context.Context, attrs map[string]interface{}) (map[string]interface{}, error) {
	doc := m.conform(attrs)

	for slug, desc := range m.schema {
		if _, ok := doc[slug]; !ok && desc.Default != nil {
			doc[slug] = desc.Default
		}
	}
	// trashed always starts false even when the caller says otherwise.
	doc[schema.AttrTrashed] = false
	doc[schema.AttrTrashedAt] = nil

	if err := m.validateRequired(doc); err != nil {
		return nil, err
	}

	return m.engine.Insert(ctx, m.slug, doc)
}

// Update conforms the attributes to the schema and merges them into the
// stored document. The trashed attributes are managed by the soft-delete
// operations, never by plain updates.
func (m *Model) Update(ctx context.Context, id string, attrs map[string]interface{}) (map[string]interface{}, error) {
	doc := m.conform(attrs)
	delete(doc, schema.AttrTrashed)
	delete(doc, schema.AttrTrashedAt)
	if len(doc) == 0 {
		return m.engine.FindByID(ctx, m.slug, id)
	}
	return m.engine.Update(ctx, m.slug, id, doc)
}

// SetTrashed flips the soft-delete attributes on one document.
func (m *Model) SetTrashed(ctx context.Context, id string, trashed bool, at interface{}) (map[string]interface{}, error) {
	return m.engine.Update(ctx, m.slug, id, map[string]interface{}{
		schema.AttrTrashed:   trashed,
		schema.AttrTrashedAt: at,
	})
}

// FindByID retrieves one document.
func (m *Model) FindByID(ctx context.Context, id string) (map[string]interface{}, error) {
	return m.engine.FindByID(ctx, m.slug, id)
}

// Find retrieves documents matching the filter.
func (m *Model) Find(ctx context.Context, filter *engine.Filter, sort engine.Sort, limit, offset int) ([]map[string]interface{}, error) {
	return m.engine.Find(ctx, m.slug, filter, sort, limit, offset)
}

// Count returns the number of documents matching the filter.
func (m *Model) Count(ctx context.Context, filter *engine.Filter) (int, error) {
	return m.engine.Count(ctx, m.slug, filter)
}

// conform keeps only attributes the schema knows about. Unknown attributes
// are dropped silently; stored documents keep exactly the collection's
// computed shape plus the base attributes.
func (m *Model) conform(attrs map[string]interface{}) map[string]interface{} {
	doc := make(map[string]interface{}, len(attrs))
	for slug, value := range attrs {
		if _, ok := m.schema[slug]; ok {
			doc[slug] = value
		}
	}
	return doc
}

// validateRequired reports the required attributes missing from the document.
func (m *Model) validateRequired(doc map[string]interface{}) error {
	var missing []string
	for slug, desc := range m.schema {
		if !desc.Required {
			continue
		}
		value, ok := doc[slug]
		if !ok || value == nil || value == "" {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing required attributes %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
