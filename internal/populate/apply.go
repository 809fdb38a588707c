package populate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/schema"
)

// Applier resolves a population plan against fetched documents, replacing
// reference ids with the referenced documents inline.
type Applier struct {
	engine   *engine.Engine
	registry *registry.Registry
	logger   *zap.Logger
}

// NewApplier creates an applier over the engine and the live model registry.
func NewApplier(eng *engine.Engine, reg *registry.Registry, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{engine: eng, registry: reg, logger: logger}
}

// Apply walks the plan over the documents. Each step batches the referenced
// ids of all documents into one fetch per path. Steps whose target cannot be
// determined from the schema are skipped, degrading that path to raw ids.
func (a *Applier) Apply(ctx context.Context, docs []map[string]interface{}, sch schema.Schema, plan Plan) error {
	if len(docs) == 0 || len(plan) == 0 {
		return nil
	}

	for _, step := range plan {
		if err := a.applyStep(ctx, docs, sch, step); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyStep(ctx context.Context, docs []map[string]interface{}, sch schema.Schema, step Step) error {
	desc, ok := sch[step.Path]
	if !ok || desc.Primitive != schema.Reference || desc.Ref == "" {
		a.logger.Debug("population path has no resolvable target, skipped",
			zap.String("path", step.Path))
		return nil
	}

	ids := collectIDs(docs, step.Path)
	if len(ids) == 0 {
		return nil
	}

	fetched, err := a.engine.FindByIDs(ctx, desc.Ref, ids)
	if err != nil {
		return fmt.Errorf("failed to populate %s from %s: %w", step.Path, desc.Ref, err)
	}

	// Nested steps resolve against the target collection's live schema.
	if len(step.Nested) > 0 {
		if model, ok := a.registry.Get(desc.Ref); ok {
			nested := Plan(step.Nested)
			if err := a.Apply(ctx, fetched, model.Schema(), nested); err != nil {
				return err
			}
		} else {
			a.logger.Debug("no live model for nested population, skipped",
				zap.String("target", desc.Ref))
		}
	}

	byID := make(map[string]map[string]interface{}, len(fetched))
	for _, doc := range fetched {
		id, _ := doc[engine.AttrID].(string)
		if step.Select != nil {
			doc = project(doc, step.Select)
		}
		byID[id] = doc
	}

	graft(docs, step.Path, byID)
	return nil
}

// collectIDs gathers the distinct reference ids stored under the path across
// all documents, accepting both scalar and array attributes.
func collectIDs(docs []map[string]interface{}, path string) []string {
	var ids []string
	seen := make(map[string]bool)

	add := func(v interface{}) {
		if id, ok := v.(string); ok && id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, doc := range docs {
		switch value := doc[path].(type) {
		case []interface{}:
			for _, v := range value {
				add(v)
			}
		default:
			add(value)
		}
	}
	return ids
}

// graft replaces reference ids with the resolved documents, preserving the
// stored order of array attributes. Ids whose document was not found are
// dropped from arrays and nulled on scalars.
func graft(docs []map[string]interface{}, path string, byID map[string]map[string]interface{}) {
	for _, doc := range docs {
		switch value := doc[path].(type) {
		case []interface{}:
			resolved := make([]interface{}, 0, len(value))
			for _, v := range value {
				if id, ok := v.(string); ok {
					if ref, ok := byID[id]; ok {
						resolved = append(resolved, ref)
					}
				}
			}
			doc[path] = resolved
		case string:
			if ref, ok := byID[value]; ok {
				doc[path] = ref
			} else {
				doc[path] = nil
			}
		}
	}
}

// project keeps the document's identity plus the selected attributes.
func project(doc map[string]interface{}, selects []string) map[string]interface{} {
	projected := map[string]interface{}{engine.AttrID: doc[engine.AttrID]}
	for _, attr := range selects {
		if value, ok := doc[attr]; ok {
			projected[attr] = value
		}
	}
	return projected
}
