// Package populate plans and applies relationship population: which row
// attributes are cross-document references, and how to resolve them inline
// at read time. Plans are request-scoped; they are rebuilt from the field
// list on every read and never persisted.
package populate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/field"
)

// userIdentitySelect is the fixed projection applied to the reacting or
// evaluating user: identity only, never credential material.
var userIdentitySelect = []string{"name", "email"}

// Step describes population of one reference attribute: the attribute path,
// an optional projection of the resolved documents, and nested steps applied
// to them.
type Step struct {
	Path   string   `json:"path"`
	Select []string `json:"select,omitempty"`
	Nested []Step   `json:"nested,omitempty"`
}

// Plan is the population tree for one read.
type Plan []Step

// GroupResolver looks up field-group companion collections by id.
type GroupResolver interface {
	GetByID(ctx context.Context, id string) (*collection.Collection, error)
}

// Planner builds population plans from field lists.
type Planner struct {
	groups GroupResolver
	logger *zap.Logger
}

// NewPlanner creates a planner that resolves field-group collections through
// the given resolver.
func NewPlanner(groups GroupResolver, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{groups: groups, logger: logger}
}

// Classify returns the sublist of fields whose values are cross-document
// references, preserving input order.
func Classify(fields []field.Field) []field.Field {
	var relational []field.Field
	for i := range fields {
		if fields[i].IsRelational() {
			relational = append(relational, fields[i])
		}
	}
	return relational
}

// Plan builds the population tree for a field list. Field-group fields
// recurse into their companion collection's own fields; a group that cannot
// be resolved, or that reenters a collection already on the current chain,
// degrades to a shallow step instead of failing the read.
func (p *Planner) Plan(ctx context.Context, fields []field.Field) (Plan, error) {
	return p.plan(ctx, fields, make(map[string]bool))
}

func (p *Planner) plan(ctx context.Context, fields []field.Field, visited map[string]bool) (Plan, error) {
	var plan Plan

	relational := Classify(fields)
	for i := range relational {
		step, err := p.planField(ctx, &relational[i], visited)
		if err != nil {
			return nil, err
		}
		plan = append(plan, step)
	}

	return plan, nil
}

func (p *Planner) planField(ctx context.Context, f *field.Field, visited map[string]bool) (Step, error) {
	switch f.Type {
	case field.TypeReaction, field.TypeEvaluation:
		return Step{
			Path:   f.Slug,
			Nested: []Step{{Path: "user", Select: userIdentitySelect}},
		}, nil

	case field.TypeFile, field.TypeRelationship:
		return Step{Path: f.Slug}, nil

	case field.TypeGroup:
		return p.planGroup(ctx, f, visited)

	default:
		return Step{}, fmt.Errorf("field %s is not relational", f.Slug)
	}
}

// planGroup resolves the companion collection of a field-group field and
// recurses over its fields.
func (p *Planner) planGroup(ctx context.Context, f *field.Field, visited map[string]bool) (Step, error) {
	step := Step{Path: f.Slug}

	grp := f.Config.Group
	if grp == nil || grp.CollectionID == "" {
		return step, nil
	}

	nested, err := p.groups.GetByID(ctx, grp.CollectionID)
	if errors.Is(err, collection.ErrNotFound) {
		// Degrade to a shallow population rather than failing the read.
		p.logger.Debug("field-group collection missing, population degraded",
			zap.String("field", f.Slug),
			zap.String("group", grp.CollectionID))
		return step, nil
	}
	if err != nil {
		return Step{}, fmt.Errorf("failed to resolve field-group %s: %w", f.Slug, err)
	}

	if visited[nested.Slug] {
		// Group chains are live configuration data and can form cycles;
		// truncate at the first repeated collection.
		p.logger.Debug("field-group cycle truncated",
			zap.String("field", f.Slug),
			zap.String("group", nested.Slug))
		return step, nil
	}
	visited[nested.Slug] = true
	defer delete(visited, nested.Slug)

	nestedPlan, err := p.plan(ctx, nested.Fields, visited)
	if err != nil {
		return Step{}, err
	}
	if len(nestedPlan) > 0 {
		step.Nested = nestedPlan
	}
	return step, nil
}
