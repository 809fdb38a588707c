package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/schema"
)

// Registry is the process-wide table of live storage models, one per
// collection slug. It is constructed at startup and handed by reference to
// the lifecycle and row services.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	engine *engine.Engine
	logger *zap.Logger
}

// New creates an empty registry over the given engine.
func New(eng *engine.Engine, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		models: make(map[string]*Model),
		engine: eng,
		logger: logger,
	}
}

// Materialize compiles a live model for the slug from the schema, ensures
// the physical collection exists, and installs the model in the registry,
// replacing any previous model for that slug. Calling it with a missing slug
// or schema is a caller bug and panics.
func (r *Registry) Materialize(ctx context.Context, slug string, s schema.Schema) (*Model, error) {
	if slug == "" {
		panic("registry: materialize called without a slug")
	}
	if s == nil {
		panic(fmt.Sprintf("registry: materialize called without a schema for %q", slug))
	}

	if err := r.engine.EnsureCollection(ctx, slug); err != nil {
		return nil, fmt.Errorf("failed to materialize model %s: %w", slug, err)
	}

	model := &Model{slug: slug, schema: s, engine: r.engine}

	previous := r.upsert(slug, model)
	if previous != nil {
		r.logger.Debug("replaced live model", zap.String("collection", slug))
	} else {
		r.logger.Debug("installed live model", zap.String("collection", slug))
	}

	return model, nil
}

// upsert installs the model under the slug with a single map assignment and
// returns the previous entry, if any, for disposal.
func (r *Registry) upsert(slug string, model *Model) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.models[slug]
	r.models[slug] = model
	return previous
}

// Get retrieves the live model for a slug.
func (r *Registry) Get(slug string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[slug]
	return model, ok
}

// Remove uninstalls the model for a slug and returns it, if present.
func (r *Registry) Remove(slug string) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	model := r.models[slug]
	delete(r.models, slug)
	return model
}

// List returns the slugs of all live models.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.models))
	for slug := range r.models {
		slugs = append(slugs, slug)
	}
	return slugs
}

// Count returns the number of live models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}

// Clear uninstalls every model. Useful in tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*Model)
}
