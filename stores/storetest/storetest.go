// Package storetest is the behavioural suite every core.BlueprintStore
// implementation runs from its own tests.
package storetest

import (
	"blueprints-server/core"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) core.BlueprintStore

// IndexReader exposes the stored index of every point of a blueprint. Each
// backend implements it in its own test files so the suite can check the
// indices themselves, not only the points they order.
type IndexReader interface {
	PointIndices(ctx context.Context, author, name string) ([]int, error)
}

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, newStore(t)) })
	t.Run("CreateWithoutPoints", func(t *testing.T) { testCreateWithoutPoints(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("CreateCopiesInput", func(t *testing.T) { testCreateCopiesInput(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("KeysAreCaseSensitive", func(t *testing.T) { testKeysAreCaseSensitive(t, newStore(t)) })
	t.Run("AppendMissing", func(t *testing.T) { testAppendMissing(t, newStore(t)) })
	t.Run("OrderPreserved", func(t *testing.T) { testOrderPreserved(t, newStore(t)) })
	t.Run("DuplicatePointsKept", func(t *testing.T) { testDuplicatePointsKept(t, newStore(t)) })
	t.Run("LargeCoordinates", func(t *testing.T) { testLargeCoordinates(t, newStore(t)) })
	t.Run("ListByAuthor", func(t *testing.T) { testListByAuthor(t, newStore(t)) })
	t.Run("ListEmpty", func(t *testing.T) { testListEmpty(t, newStore(t)) })
	t.Run("ListAll", func(t *testing.T) { testListAll(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
	t.Run("ConcurrentAppendsAcrossKeys", func(t *testing.T) { testConcurrentAppendsAcrossKeys(t, newStore(t)) })
	t.Run("ConcurrentCreates", func(t *testing.T) { testConcurrentCreates(t, newStore(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelledContext(t, newStore(t)) })
}

// Points builds a point slice from x, y pairs.
func Points(coords ...int) []core.Point {
	out := make([]core.Point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, core.Point{X: coords[i], Y: coords[i+1]})
	}
	return out
}

func testCreateThenGet(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	bp := core.Blueprint{Author: "ana", Name: "house", Points: Points(0, 0, 10, 0, 10, 10, 0, 10)}

	require.NoError(t, store.Create(ctx, bp))

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, bp, got)
}

func testCreateWithoutPoints(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "empty"}))

	got, err := store.Get(ctx, "ana", "empty")
	require.NoError(t, err)
	assert.NotNil(t, got.Points, "points must be an empty slice, not nil")
	assert.Empty(t, got.Points)
}

func testCreateDuplicate(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	first := core.Blueprint{Author: "ana", Name: "house", Points: Points(1, 1)}
	second := core.Blueprint{Author: "ana", Name: "house", Points: Points(2, 2, 3, 3)}

	require.NoError(t, store.Create(ctx, first))
	err := store.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicate), "got %v", err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.Points, all[0].Points, "a rejected create must not touch the stored points")
}

func testCreateCopiesInput(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	points := Points(1, 1, 2, 2)
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house", Points: points}))

	points[0] = core.Point{X: 99, Y: 99}

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, Points(1, 1, 2, 2), got.Points)

	got.Points[1] = core.Point{X: 42, Y: 42}
	again, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, Points(1, 1, 2, 2), again.Points)
}

func testGetMissing(t *testing.T, store core.BlueprintStore) {
	_, err := store.Get(context.Background(), "nobody", "nothing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
	assert.False(t, errors.Is(err, core.ErrStorage))
}

func testKeysAreCaseSensitive(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house"}))
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "Ana", Name: "house"}))

	_, err := store.Get(ctx, "ana", "House")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
}

func testAppendMissing(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()

	err := store.AppendPoint(ctx, "ana", "ghost", core.Point{X: 1, Y: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	_, err = store.Get(ctx, "ana", "ghost")
	assert.True(t, errors.Is(err, core.ErrNotFound), "a failed append must not create the blueprint")

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testOrderPreserved(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house", Points: Points(5, 5, 1, 1, 3, 3)}))

	for _, p := range Points(9, 0, 0, 9, 4, 4) {
		require.NoError(t, store.AppendPoint(ctx, "ana", "house", p))
	}

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, Points(5, 5, 1, 1, 3, 3, 9, 0, 0, 9, 4, 4), got.Points)
}

func testDuplicatePointsKept(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house"}))
	for _, p := range Points(0, 0, 10, 0, 10, 10, 10, 10) {
		require.NoError(t, store.AppendPoint(ctx, "ana", "house", p))
	}

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Equal(t, Points(0, 0, 10, 0, 10, 10, 10, 10), got.Points)
}

func testListByAuthor(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house", Points: Points(1, 1)}))
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "garden", Points: Points(2, 2, 3, 3)}))
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "bob", Name: "boat"}))
	require.NoError(t, store.AppendPoint(ctx, "ana", "garden", core.Point{X: 4, Y: 4}))

	bps, err := store.ListByAuthor(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, bps, 2)

	byName := map[string]core.Blueprint{}
	for _, bp := range bps {
		assert.Equal(t, "ana", bp.Author)
		byName[bp.Name] = bp
	}
	assert.Equal(t, Points(1, 1), byName["house"].Points)
	assert.Equal(t, Points(2, 2, 3, 3, 4, 4), byName["garden"].Points)

	bob, err := store.ListByAuthor(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.NotNil(t, bob[0].Points)

	_, err = store.ListByAuthor(ctx, "carol")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	_, err = store.ListByAuthor(ctx, "ANA")
	assert.True(t, errors.Is(err, core.ErrNotFound), "authors are case-sensitive, got %v", err)
}

func testLargeCoordinates(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	bp := core.Blueprint{Author: "ana", Name: "map", Points: Points(math.MaxInt, math.MinInt)}
	require.NoError(t, store.Create(ctx, bp))
	require.NoError(t, store.AppendPoint(ctx, "ana", "map", core.Point{X: math.MinInt, Y: math.MaxInt}))

	got, err := store.Get(ctx, "ana", "map")
	require.NoError(t, err)
	assert.Equal(t, Points(math.MaxInt, math.MinInt, math.MinInt, math.MaxInt), got.Points)
}

func testListEmpty(t *testing.T, store core.BlueprintStore) {
	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testListAll(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	want := map[core.Key][]core.Point{
		{Author: "ana", Name: "house"}: Points(0, 0, 1, 1),
		{Author: "bob", Name: "boat"}:  Points(5, 5),
		{Author: "bob", Name: "kite"}:  {},
	}
	for k, pts := range want {
		require.NoError(t, store.Create(ctx, core.Blueprint{Author: k.Author, Name: k.Name, Points: pts}))
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(want))
	for _, bp := range all {
		expected, ok := want[bp.Key()]
		require.True(t, ok, "unexpected blueprint %s", bp.Key())
		assert.Equal(t, expected, bp.Points)
	}
}

func testConcurrentAppends(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	const n = 40
	require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: "house", Points: Points(-1, -1)}))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.AppendPoint(ctx, "ana", "house", core.Point{X: i, Y: i}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent AppendPoint() failed: %v", err)
	}

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	require.Len(t, got.Points, n+1)
	assert.Equal(t, core.Point{X: -1, Y: -1}, got.Points[0])

	seen := make(map[core.Point]bool, n)
	for _, p := range got.Points[1:] {
		assert.False(t, seen[p], "point %v stored twice", p)
		seen[p] = true
	}
	assert.Len(t, seen, n)

	reader, ok := store.(IndexReader)
	require.True(t, ok, "%T does not implement IndexReader", store)
	indices, err := reader.PointIndices(ctx, "ana", "house")
	require.NoError(t, err)
	sort.Ints(indices)
	want := make([]int, n+1)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, indices, "indices must run 0..n without gaps or repeats")
}

func testConcurrentAppendsAcrossKeys(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	const keys, perKey = 4, 10
	for k := 0; k < keys; k++ {
		require.NoError(t, store.Create(ctx, core.Blueprint{Author: "ana", Name: fmt.Sprintf("bp-%d", k)}))
	}

	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				if err := store.AppendPoint(ctx, "ana", fmt.Sprintf("bp-%d", k), core.Point{X: k, Y: i}); err != nil {
					t.Errorf("AppendPoint() failed: %v", err)
				}
			}
		}(k)
	}
	wg.Wait()

	for k := 0; k < keys; k++ {
		got, err := store.Get(ctx, "ana", fmt.Sprintf("bp-%d", k))
		require.NoError(t, err)
		require.Len(t, got.Points, perKey)
		for i, p := range got.Points {
			assert.Equal(t, core.Point{X: k, Y: i}, p, "sequential appends on one key keep their order")
		}
	}
}

func testConcurrentCreates(t *testing.T, store core.BlueprintStore) {
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, duplicates int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Create(ctx, core.Blueprint{Author: "ana", Name: "house", Points: Points(i, i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, core.ErrDuplicate):
				duplicates++
			default:
				t.Errorf("unexpected Create() error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, duplicates)

	got, err := store.Get(ctx, "ana", "house")
	require.NoError(t, err)
	assert.Len(t, got.Points, 1)
}

func testCancelledContext(t *testing.T, store core.BlueprintStore) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Create(ctx, core.Blueprint{Author: "ana", Name: "house"})
	assert.True(t, errors.Is(err, core.ErrStorage), "got %v", err)

	_, err = store.Get(ctx, "ana", "house")
	assert.True(t, errors.Is(err, core.ErrStorage), "got %v", err)

	_, err = store.Get(context.Background(), "ana", "house")
	assert.True(t, errors.Is(err, core.ErrNotFound), "a cancelled create must leave nothing behind, got %v", err)
}
