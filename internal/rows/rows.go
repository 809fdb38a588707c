// Package rows implements document CRUD over the live collection models.
// Reads are stateless: filter, sort, and population plan are recomputed from
// the collection's field list on every request.
package rows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/populate"
	"github.com/trellisdata/trellis/internal/query"
	"github.com/trellisdata/trellis/internal/registry"
)

// Service exposes row CRUD for user-defined collections.
type Service struct {
	store    *collection.Store
	registry *registry.Registry
	planner  *populate.Planner
	applier  *populate.Applier
	logger   *zap.Logger
}

// NewService creates the row service.
func NewService(store *collection.Store, reg *registry.Registry, planner *populate.Planner, applier *populate.Applier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		registry: reg,
		planner:  planner,
		applier:  applier,
		logger:   logger,
	}
}

// ListOptions tunes one listing request.
type ListOptions struct {
	Populate bool
	Limit    int
	Offset   int
}

// List returns the rows of a collection matching the request's filter and
// sort parameters, optionally with references populated.
func (s *Service) List(ctx context.Context, slug string, req query.Request, opts ListOptions) ([]map[string]interface{}, error) {
	coll, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	filter := query.BuildFilter(req, coll.Fields)
	sort := query.BuildSort(req, coll.Fields)

	docs, err := model.Find(ctx, filter, sort, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}

	if opts.Populate && len(docs) > 0 {
		if err := s.populateDocs(ctx, coll, docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Count returns the number of rows matching the request's filter.
func (s *Service) Count(ctx context.Context, slug string, req query.Request) (int, error) {
	coll, model, err := s.resolve(ctx, slug)
	if err != nil {
		return 0, err
	}
	return model.Count(ctx, query.BuildFilter(req, coll.Fields))
}

// Get retrieves one row by id.
func (s *Service) Get(ctx context.Context, slug, id string, populateRefs bool) (map[string]interface{}, error) {
	coll, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	doc, err := model.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if populateRefs {
		if err := s.populateDocs(ctx, coll, []map[string]interface{}{doc}); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Create stores a new row conforming to the collection's current schema.
func (s *Service) Create(ctx context.Context, slug string, attrs map[string]interface{}) (map[string]interface{}, error) {
	_, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.Insert(ctx, attrs)
}

// Update merges attributes into an existing row.
func (s *Service) Update(ctx context.Context, slug, id string, attrs map[string]interface{}) (map[string]interface{}, error) {
	_, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.Update(ctx, id, attrs)
}

// Trash soft-deletes a row.
func (s *Service) Trash(ctx context.Context, slug, id string) (map[string]interface{}, error) {
	_, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.SetTrashed(ctx, id, true, time.Now().UTC().Format(time.RFC3339))
}

// Restore brings a trashed row back.
func (s *Service) Restore(ctx context.Context, slug, id string) (map[string]interface{}, error) {
	_, model, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.SetTrashed(ctx, id, false, nil)
}

// resolve loads the collection metadata and its live model. A model missing
// from the registry is recompiled from the schema cached on the collection.
func (s *Service) resolve(ctx context.Context, slug string) (*collection.Collection, *registry.Model, error) {
	coll, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if coll.Trashed {
		return nil, nil, fmt.Errorf("%w: %s", collection.ErrNotFound, slug)
	}

	model, ok := s.registry.Get(coll.Slug)
	if !ok {
		s.logger.Debug("no live model, rematerializing", zap.String("collection", coll.Slug))
		model, err = s.registry.Materialize(ctx, coll.Slug, coll.Schema)
		if err != nil {
			return nil, nil, err
		}
	}
	return coll, model, nil
}

// populateDocs builds a fresh population plan from the field list and
// applies it to the documents.
func (s *Service) populateDocs(ctx context.Context, coll *collection.Collection, docs []map[string]interface{}) error {
	plan, err := s.planner.Plan(ctx, coll.Fields)
	if err != nil {
		return err
	}
	return s.applier.Apply(ctx, docs, coll.Schema, plan)
}
