package services

import (
	"blueprints-server/core"
	"blueprints-server/filters"
	"blueprints-server/stores/memory"
	"blueprints-server/stores/storetest"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore returns err from every operation.
type failingStore struct{ err error }

func (f failingStore) Create(context.Context, core.Blueprint) error { return f.err }
func (f failingStore) Get(context.Context, string, string) (core.Blueprint, error) {
	return core.Blueprint{}, f.err
}
func (f failingStore) ListByAuthor(context.Context, string) ([]core.Blueprint, error) {
	return nil, f.err
}
func (f failingStore) List(context.Context) ([]core.Blueprint, error) { return nil, f.err }
func (f failingStore) AppendPoint(context.Context, string, string, core.Point) error {
	return f.err
}

func newService(t *testing.T, filter core.BlueprintFilter) (*BlueprintService, core.BlueprintStore) {
	t.Helper()
	store := memory.NewBlueprintStore()
	return NewBlueprintService(store, filter), store
}

func TestNewBlueprintService_NilFilterIsIdentity(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	points := storetest.Points(0, 0, 0, 0, 1, 1)
	require.NoError(t, svc.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house", Points: points}))

	got, err := svc.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, points, got.Points)
}

func TestGetBlueprint_AppliesFilter(t *testing.T) {
	svc, _ := newService(t, filters.Redundancy{})
	ctx := context.Background()

	require.NoError(t, svc.AddNewBlueprint(ctx, core.Blueprint{
		Author: "ana", Name: "house", Points: storetest.Points(0, 0, 0, 0, 10, 0),
	}))

	got, err := svc.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, storetest.Points(0, 0, 10, 0), got.Points)
}

func TestListings_AreNotFiltered(t *testing.T) {
	svc, _ := newService(t, filters.Undersampling{Step: 2})
	ctx := context.Background()

	raw := storetest.Points(0, 0, 1, 1, 2, 2, 3, 3, 4, 4)
	require.NoError(t, svc.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house", Points: raw}))

	all, err := svc.GetAllBlueprints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, raw, all[0].Points)

	byAuthor, err := svc.GetBlueprintsByAuthor(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, raw, byAuthor[0].Points)

	single, err := svc.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, storetest.Points(0, 0, 2, 2, 4, 4), single.Points)
}

func TestFilter_DoesNotChangeStoredPoints(t *testing.T) {
	svc, store := newService(t, filters.Redundancy{})
	ctx := context.Background()

	raw := storetest.Points(1, 1, 1, 1)
	require.NoError(t, svc.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house", Points: raw}))

	_, err := svc.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)

	stored, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, raw, stored.Points)
}

func TestAddPoint(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house"}))
	require.NoError(t, svc.AddPoint(ctx, "ana", "house", 3, 4))
	require.NoError(t, svc.AddPoint(ctx, "ana", "house", 5, 6))

	got, err := svc.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, storetest.Points(3, 4, 5, 6), got.Points)

	err = svc.AddPoint(ctx, "ana", "garage", 1, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBusinessErrorsPassThrough(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	bp := core.Blueprint{Author: "ana", Name: "house"}
	require.NoError(t, svc.AddNewBlueprint(ctx, bp))
	assert.ErrorIs(t, svc.AddNewBlueprint(ctx, bp), core.ErrDuplicate)

	_, err := svc.GetBlueprint(ctx, "ana", "garage")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.GetBlueprintsByAuthor(ctx, "bob")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStorageErrorsPassThrough(t *testing.T) {
	cause := errors.New("disk on fire")
	svc := NewBlueprintService(failingStore{err: core.NewStorageError("test", cause)}, filters.Redundancy{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house"}), cause)
	assert.ErrorIs(t, svc.AddPoint(ctx, "ana", "house", 1, 1), core.ErrStorage)

	_, err := svc.GetAllBlueprints(ctx)
	assert.ErrorIs(t, err, core.ErrStorage)
	_, err = svc.GetBlueprintsByAuthor(ctx, "ana")
	assert.ErrorIs(t, err, core.ErrStorage)
	_, err = svc.GetBlueprint(ctx, "ana", "house")
	assert.ErrorIs(t, err, core.ErrStorage)
}

// ana/house starts empty, gains three points, then a repeated last point
// that only the redundancy filter hides.
func TestHouseScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBlueprintStore()
	identity := NewBlueprintService(store, filters.Identity{})
	redundancy := NewBlueprintService(store, filters.Redundancy{})

	require.NoError(t, identity.AddNewBlueprint(ctx, core.Blueprint{Author: "ana", Name: "house", Points: []core.Point{}}))
	require.NoError(t, identity.AddPoint(ctx, "ana", "house", 0, 0))
	require.NoError(t, identity.AddPoint(ctx, "ana", "house", 10, 0))
	require.NoError(t, identity.AddPoint(ctx, "ana", "house", 10, 10))

	got, err := identity.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, storetest.Points(0, 0, 10, 0, 10, 10), got.Points)

	require.NoError(t, redundancy.AddPoint(ctx, "ana", "house", 10, 10))

	got, err = redundancy.GetBlueprint(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, storetest.Points(0, 0, 10, 0, 10, 10), got.Points)

	all, err := redundancy.GetAllBlueprints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, storetest.Points(0, 0, 10, 0, 10, 10, 10, 10), all[0].Points)
}
