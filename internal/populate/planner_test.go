package populate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/field"
)

// fakeResolver serves field-group collections from a map.
type fakeResolver struct {
	collections map[string]*collection.Collection
	err         error
}

func (r *fakeResolver) GetByID(_ context.Context, id string) (*collection.Collection, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, collection.ErrNotFound
	}
	return c, nil
}

func groupField(slug, collectionID string) field.Field {
	return field.Field{
		Slug: slug,
		Type: field.TypeGroup,
		Config: field.Config{Group: &field.GroupConfig{
			CollectionID:   collectionID,
			CollectionSlug: collectionID,
		}},
	}
}

func TestClassifyPreservesOrder(t *testing.T) {
	fields := []field.Field{
		{Slug: "title", Type: field.TypeShortText},
		{Slug: "poster", Type: field.TypeFile},
		{Slug: "released", Type: field.TypeDate},
		{Slug: "director", Type: field.TypeRelationship},
		{Slug: "likes", Type: field.TypeReaction},
	}

	relational := Classify(fields)
	require.Len(t, relational, 3)
	assert.Equal(t, "poster", relational[0].Slug)
	assert.Equal(t, "director", relational[1].Slug)
	assert.Equal(t, "likes", relational[2].Slug)
}

func TestPlanShallowSteps(t *testing.T) {
	planner := NewPlanner(&fakeResolver{}, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		{Slug: "poster", Type: field.TypeFile},
		{Slug: "director", Type: field.TypeRelationship},
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, Step{Path: "poster"}, plan[0])
	assert.Equal(t, Step{Path: "director"}, plan[1])
}

func TestPlanNonRelationalFieldsExcluded(t *testing.T) {
	planner := NewPlanner(&fakeResolver{}, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		{Slug: "title", Type: field.TypeShortText},
		{Slug: "genre", Type: field.TypeDropdown},
	})
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanReactionAndEvaluationNestUserIdentity(t *testing.T) {
	planner := NewPlanner(&fakeResolver{}, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		{Slug: "likes", Type: field.TypeReaction},
		{Slug: "ratings", Type: field.TypeEvaluation},
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)

	for _, step := range plan {
		require.Len(t, step.Nested, 1)
		assert.Equal(t, "user", step.Nested[0].Path)
		assert.Equal(t, []string{"name", "email"}, step.Nested[0].Select)
	}
}

func TestPlanGroupRecursesIntoCompanion(t *testing.T) {
	resolver := &fakeResolver{collections: map[string]*collection.Collection{
		"movies-scenes": {
			ID:   "movies-scenes",
			Slug: "movies-scenes",
			Fields: []field.Field{
				{Slug: "caption", Type: field.TypeShortText},
				{Slug: "still", Type: field.TypeFile},
			},
		},
	}}
	planner := NewPlanner(resolver, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		groupField("scenes", "movies-scenes"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "scenes", plan[0].Path)
	require.Len(t, plan[0].Nested, 1)
	assert.Equal(t, Step{Path: "still"}, plan[0].Nested[0])
}

func TestPlanGroupWithoutReferencesStaysShallow(t *testing.T) {
	resolver := &fakeResolver{collections: map[string]*collection.Collection{
		"movies-scenes": {
			ID:     "movies-scenes",
			Slug:   "movies-scenes",
			Fields: []field.Field{{Slug: "caption", Type: field.TypeShortText}},
		},
	}}
	planner := NewPlanner(resolver, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		groupField("scenes", "movies-scenes"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Empty(t, plan[0].Nested)
}

func TestPlanGroupMissingDegradesShallow(t *testing.T) {
	planner := NewPlanner(&fakeResolver{}, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		groupField("scenes", "gone"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, Step{Path: "scenes"}, plan[0])
}

func TestPlanGroupUnboundConfigStaysShallow(t *testing.T) {
	planner := NewPlanner(&fakeResolver{}, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		{Slug: "scenes", Type: field.TypeGroup},
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, Step{Path: "scenes"}, plan[0])
}

func TestPlanGroupCycleTruncates(t *testing.T) {
	// a's companion contains a group pointing back at a.
	resolver := &fakeResolver{collections: map[string]*collection.Collection{
		"group-a": {
			ID:     "group-a",
			Slug:   "group-a",
			Fields: []field.Field{groupField("back", "group-b")},
		},
		"group-b": {
			ID:     "group-b",
			Slug:   "group-b",
			Fields: []field.Field{groupField("forward", "group-a")},
		},
	}}
	planner := NewPlanner(resolver, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		groupField("root", "group-a"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)

	// root -> back -> forward, then the chain truncates at group-a.
	root := plan[0]
	require.Len(t, root.Nested, 1)
	back := root.Nested[0]
	assert.Equal(t, "back", back.Path)
	require.Len(t, back.Nested, 1)
	forward := back.Nested[0]
	assert.Equal(t, "forward", forward.Path)
	assert.Empty(t, forward.Nested)
}

func TestPlanGroupSiblingsShareNoVisitedState(t *testing.T) {
	// Two sibling group fields pointing at the same companion both expand;
	// only reentry on the same chain truncates.
	resolver := &fakeResolver{collections: map[string]*collection.Collection{
		"shared": {
			ID:     "shared",
			Slug:   "shared",
			Fields: []field.Field{{Slug: "still", Type: field.TypeFile}},
		},
	}}
	planner := NewPlanner(resolver, nil)

	plan, err := planner.Plan(context.Background(), []field.Field{
		groupField("first", "shared"),
		groupField("second", "shared"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Len(t, plan[0].Nested, 1)
	assert.Len(t, plan[1].Nested, 1)
}

func TestPlanGroupResolverFailureSurfaces(t *testing.T) {
	planner := NewPlanner(&fakeResolver{err: errors.New("connection refused")}, nil)

	_, err := planner.Plan(context.Background(), []field.Field{
		groupField("scenes", "movies-scenes"),
	})
	assert.Error(t, err)
}
