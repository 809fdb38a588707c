// Package lifecycle is the only mutator of collections' field lists and
// schemas. Every operation runs the same tail: recompute the schema from the
// field list, persist it on the collection, and reinstall the live model.
// The steps are sequential, not transactional; a crash between them leaves
// eventually-migrated state, never a mixed model.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/schema"
)

// Service orchestrates field and collection lifecycle mutations.
type Service struct {
	store      *collection.Store
	registry   *registry.Registry
	engine     *engine.Engine
	migrations *MigrationLog
	logger     *zap.Logger
}

// NewService creates the lifecycle service.
func NewService(store *collection.Store, reg *registry.Registry, eng *engine.Engine, migrations *MigrationLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		registry:   reg,
		engine:     eng,
		migrations: migrations,
		logger:     logger,
	}
}

// FieldInput carries the attributes of a new field.
type FieldInput struct {
	Name   string
	Type   field.Type
	Config field.Config
}

// FieldUpdate carries the mutable attributes of a field update. Nil members
// are left unchanged.
type FieldUpdate struct {
	Name   *string
	Type   *field.Type
	Config *field.Config
}

// CreateField adds a field to a collection. The slug is derived from the
// name and must be unique within the collection. For field-group fields a
// companion nested collection is created first and wired into the new
// field's configuration.
func (s *Service) CreateField(ctx context.Context, collectionSlug string, in FieldInput) (*field.Field, error) {
	coll, err := s.mutableCollection(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}

	slug := field.Slugify(in.Name)
	if _, exists := coll.FieldBySlug(slug); exists {
		return nil, fmt.Errorf("%w: %s", ErrFieldConflict, slug)
	}

	now := time.Now().UTC()
	f := field.Field{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Slug:      slug,
		Type:      in.Type,
		Config:    in.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if f.Type == field.TypeGroup {
		group, err := s.createGroupCollection(ctx, coll, &f)
		if err != nil {
			return nil, err
		}
		f.Config.Group = &field.GroupConfig{
			CollectionID:   group.ID,
			CollectionSlug: group.Slug,
		}
	}

	coll.Fields = append(coll.Fields, f)
	if err := s.reinstall(ctx, coll); err != nil {
		return nil, err
	}

	s.logger.Info("field created",
		zap.String("collection", coll.Slug),
		zap.String("field", f.Slug),
		zap.String("type", f.Type.String()))
	return &f, nil
}

// UpdateField changes a field's name, type, or configuration. A name change
// re-derives the slug; when the slug changes, existing rows are migrated by
// renaming the old attribute to the new slug, best-effort.
func (s *Service) UpdateField(ctx context.Context, collectionSlug, fieldID string, in FieldUpdate) (*field.Field, error) {
	coll, err := s.mutableCollection(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}

	f, ok := coll.FieldByID(fieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}

	oldSlug := f.Slug
	if in.Name != nil && *in.Name != f.Name {
		newSlug := field.Slugify(*in.Name)
		if newSlug != f.Slug {
			if other, exists := coll.FieldBySlug(newSlug); exists && other.ID != f.ID {
				return nil, fmt.Errorf("%w: %s", ErrFieldConflict, newSlug)
			}
			f.Slug = newSlug
		}
		f.Name = *in.Name
	}
	if in.Type != nil {
		f.Type = *in.Type
	}
	if in.Config != nil {
		group := f.Config.Group
		f.Config = *in.Config
		if f.Type == field.TypeGroup && f.Config.Group == nil {
			// The companion collection binding survives config rewrites.
			f.Config.Group = group
		}
	}
	f.UpdatedAt = time.Now().UTC()

	if err := s.reinstall(ctx, coll); err != nil {
		return nil, err
	}

	if f.Slug != oldSlug {
		s.migrateAttribute(ctx, coll.Slug, oldSlug, f.Slug)
	}

	return f, nil
}

// TrashField soft-deletes a field: it is forced out of listings and filters,
// loses its required flag, and is marked trashed. Trashing an already
// trashed field is a conflict.
func (s *Service) TrashField(ctx context.Context, collectionSlug, fieldID string) (*field.Field, error) {
	coll, err := s.mutableCollection(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}

	f, ok := coll.FieldByID(fieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	if f.Trashed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyTrashed, f.Slug)
	}

	now := time.Now().UTC()
	f.Config.Listing = false
	f.Config.Filtering = false
	f.Config.Required = false
	f.Trashed = true
	f.TrashedAt = &now
	f.UpdatedAt = now

	if err := s.reinstall(ctx, coll); err != nil {
		return nil, err
	}
	return f, nil
}

// RestoreField brings a trashed field back: it reappears in listings and
// filters, still not required.
func (s *Service) RestoreField(ctx context.Context, collectionSlug, fieldID string) (*field.Field, error) {
	coll, err := s.mutableCollection(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}

	f, ok := coll.FieldByID(fieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	if !f.Trashed {
		return nil, fmt.Errorf("%w: %s", ErrNotTrashed, f.Slug)
	}

	f.Config.Listing = true
	f.Config.Filtering = true
	f.Config.Required = false
	f.Trashed = false
	f.TrashedAt = nil
	f.UpdatedAt = time.Now().UTC()

	if err := s.reinstall(ctx, coll); err != nil {
		return nil, err
	}
	return f, nil
}

// ResumeMigrations re-runs attribute renames that never applied, typically
// after a crash mid-mutation. Returns the number applied on this pass.
func (s *Service) ResumeMigrations(ctx context.Context) (int, error) {
	unapplied, err := s.migrations.Unapplied(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range unapplied {
		documents, err := s.engine.RenameAttribute(ctx, m.Collection, m.OldAttr, m.NewAttr)
		if err != nil {
			s.logger.Warn("attribute migration still failing",
				zap.String("collection", m.Collection),
				zap.String("from", m.OldAttr),
				zap.String("to", m.NewAttr),
				zap.Error(err))
			if logErr := s.migrations.Fail(ctx, m.ID, err); logErr != nil {
				return applied, logErr
			}
			continue
		}
		if err := s.migrations.Complete(ctx, m.ID, documents); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// createGroupCollection creates the companion collection that will hold the
// nested documents of a field-group field. Its slug is derived from the
// parent's to keep it unique among collections.
func (s *Service) createGroupCollection(ctx context.Context, parent *collection.Collection, f *field.Field) (*collection.Collection, error) {
	group := &collection.Collection{
		ID:     uuid.NewString(),
		Name:   fmt.Sprintf("%s %s", parent.Name, f.Name),
		Slug:   parent.Slug + "-" + f.Slug,
		Kind:   collection.KindGroup,
		Fields: []field.Field{},
		Schema: schema.Synthesize(nil),
	}

	if err := s.store.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create field-group collection: %w", err)
	}
	if _, err := s.registry.Materialize(ctx, group.Slug, group.Schema); err != nil {
		return nil, err
	}
	return group, nil
}

// reinstall runs the common mutation tail: recompute the schema, persist the
// collection, and swap in a freshly compiled live model.
func (s *Service) reinstall(ctx context.Context, coll *collection.Collection) error {
	coll.Schema = schema.Synthesize(coll.Fields)

	if err := s.store.Update(ctx, coll); err != nil {
		return err
	}
	if _, err := s.registry.Materialize(ctx, coll.Slug, coll.Schema); err != nil {
		return err
	}
	return nil
}

// migrateAttribute renames row attributes after a slug change. Failure is
// logged and recorded, never surfaced: the schema is already installed and
// the rename can be resumed later.
func (s *Service) migrateAttribute(ctx context.Context, collectionSlug, oldAttr, newAttr string) {
	id, err := s.migrations.Begin(ctx, collectionSlug, oldAttr, newAttr)
	if err != nil {
		s.logger.Warn("failed to record attribute migration",
			zap.String("collection", collectionSlug), zap.Error(err))
		id = ""
	}

	documents, err := s.engine.RenameAttribute(ctx, collectionSlug, oldAttr, newAttr)
	if err != nil {
		s.logger.Warn("attribute migration failed, rows left under old slug",
			zap.String("collection", collectionSlug),
			zap.String("from", oldAttr),
			zap.String("to", newAttr),
			zap.Error(err))
		if id != "" {
			if logErr := s.migrations.Fail(ctx, id, err); logErr != nil {
				s.logger.Warn("failed to record migration failure", zap.Error(logErr))
			}
		}
		return
	}

	if id != "" {
		if err := s.migrations.Complete(ctx, id, documents); err != nil {
			s.logger.Warn("failed to record migration completion", zap.Error(err))
		}
	}
}

// mutableCollection loads a collection and rejects mutations of system
// collections.
func (s *Service) mutableCollection(ctx context.Context, slug string) (*collection.Collection, error) {
	if registry.IsSystem(slug) {
		return nil, fmt.Errorf("%w: %s", ErrSystemCollection, slug)
	}
	return s.store.GetBySlug(ctx, slug)
}
