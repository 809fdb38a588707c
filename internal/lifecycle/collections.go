package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/schema"
)

// CollectionInput carries the attributes of a new collection.
type CollectionInput struct {
	Name   string
	Config collection.Config
}

// CollectionUpdate carries the mutable attributes of a collection update.
// Collection slugs are stable storage identifiers: renaming changes the
// display name only.
type CollectionUpdate struct {
	Name   *string
	Config *collection.Config
}

// CreateCollection creates an empty collection and installs its live model.
// The initial schema carries only the housekeeping attributes.
func (s *Service) CreateCollection(ctx context.Context, in CollectionInput) (*collection.Collection, error) {
	slug := field.Slugify(in.Name)
	if registry.IsSystem(slug) {
		return nil, fmt.Errorf("%w: %s", ErrSystemCollection, slug)
	}

	coll := &collection.Collection{
		ID:     uuid.NewString(),
		Name:   in.Name,
		Slug:   slug,
		Kind:   collection.KindCollection,
		Fields: []field.Field{},
		Config: in.Config,
		Schema: schema.Synthesize(nil),
	}

	if err := s.store.Create(ctx, coll); err != nil {
		return nil, err
	}
	if _, err := s.registry.Materialize(ctx, coll.Slug, coll.Schema); err != nil {
		return nil, err
	}

	s.logger.Info("collection created", zap.String("collection", coll.Slug))
	return coll, nil
}

// UpdateCollection changes a collection's display name or configuration.
func (s *Service) UpdateCollection(ctx context.Context, slug string, in CollectionUpdate) (*collection.Collection, error) {
	coll, err := s.mutableCollection(ctx, slug)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		coll.Name = *in.Name
	}
	if in.Config != nil {
		coll.Config = *in.Config
	}

	if err := s.store.Update(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// TrashCollection soft-deletes a collection. Its rows and live model stay in
// place; reads reject trashed collections at the service boundary.
func (s *Service) TrashCollection(ctx context.Context, slug string) (*collection.Collection, error) {
	coll, err := s.mutableCollection(ctx, slug)
	if err != nil {
		return nil, err
	}
	if coll.Trashed {
		return nil, fmt.Errorf("%w: collection %s", ErrAlreadyTrashed, slug)
	}

	now := time.Now().UTC()
	coll.Trashed = true
	coll.TrashedAt = &now

	if err := s.store.Update(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// RestoreCollection brings a trashed collection back.
func (s *Service) RestoreCollection(ctx context.Context, slug string) (*collection.Collection, error) {
	coll, err := s.mutableCollection(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !coll.Trashed {
		return nil, fmt.Errorf("%w: collection %s", ErrNotTrashed, slug)
	}

	coll.Trashed = false
	coll.TrashedAt = nil

	if err := s.store.Update(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// Bootstrap prepares storage at startup: metadata tables, the migration log,
// the fixed system models, and one live model per stored collection,
// compiled from the schema cached on the collection row.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		return err
	}
	if err := s.migrations.Initialize(ctx); err != nil {
		return err
	}
	if err := s.registry.RegisterSystem(ctx); err != nil {
		return err
	}

	collections, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, coll := range collections {
		if _, err := s.registry.Materialize(ctx, coll.Slug, coll.Schema); err != nil {
			return fmt.Errorf("failed to rematerialize %s: %w", coll.Slug, err)
		}
	}

	s.logger.Info("bootstrap complete", zap.Int("collections", len(collections)))
	return nil
}
