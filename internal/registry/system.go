package registry

import (
	"context"
	"fmt"

	"github.com/trellisdata/trellis/internal/schema"
)

// systemSchemas are the fixed schemas of the collections the engine itself
// depends on: user identities, file metadata, and the reaction/evaluation
// documents referenced by feedback fields. They are not user-editable.
var systemSchemas = map[string]schema.Schema{
	schema.SystemUsers: {
		schema.AttrTrashed:   {Primitive: schema.Boolean, Default: false},
		schema.AttrTrashedAt: {Primitive: schema.Date, Default: nil},
		"name":               {Primitive: schema.String, Required: true},
		"email":              {Primitive: schema.String, Required: true},
		"password":           {Primitive: schema.String},
	},
	schema.SystemFiles: {
		schema.AttrTrashed:   {Primitive: schema.Boolean, Default: false},
		schema.AttrTrashedAt: {Primitive: schema.Date, Default: nil},
		"name":               {Primitive: schema.String, Required: true},
		"url":                {Primitive: schema.String, Required: true},
		"mime":               {Primitive: schema.String},
		"size":               {Primitive: schema.String},
	},
	schema.SystemReactions: {
		schema.AttrTrashed:   {Primitive: schema.Boolean, Default: false},
		schema.AttrTrashedAt: {Primitive: schema.Date, Default: nil},
		"user":               {Primitive: schema.Reference, Ref: schema.SystemUsers},
		"kind":               {Primitive: schema.String, Required: true},
	},
	schema.SystemEvaluations: {
		schema.AttrTrashed:   {Primitive: schema.Boolean, Default: false},
		schema.AttrTrashedAt: {Primitive: schema.Date, Default: nil},
		"user":               {Primitive: schema.Reference, Ref: schema.SystemUsers},
		"score":              {Primitive: schema.String, Required: true},
		"comment":            {Primitive: schema.String},
	},
}

// IsSystem reports whether a slug names one of the fixed system collections.
func IsSystem(slug string) bool {
	_, ok := systemSchemas[slug]
	return ok
}

// RegisterSystem materializes the fixed system collections. Called once at
// startup, before any user collection is rematerialized.
func (r *Registry) RegisterSystem(ctx context.Context) error {
	for slug, s := range systemSchemas {
		if _, err := r.Materialize(ctx, slug, s); err != nil {
			return fmt.Errorf("failed to register system collection %s: %w", slug, err)
		}
	}
	return nil
}
