package filters

import (
	"blueprints-server/core"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(coords ...int) []core.Point {
	out := make([]core.Point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, core.Point{X: coords[i], Y: coords[i+1]})
	}
	return out
}

func house(points []core.Point) core.Blueprint {
	return core.Blueprint{Author: "ana", Name: "house", Points: points}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		step    int
		want    core.BlueprintFilter
		wantErr bool
	}{
		{name: "", want: Identity{}},
		{name: "identity", want: Identity{}},
		{name: " Redundancy ", want: Redundancy{}},
		{name: "undersampling", step: 3, want: Undersampling{Step: 3}},
		{name: "undersampling", step: 1, wantErr: true},
		{name: "sharpen", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.name, tt.step)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, NameIdentity, Name(Identity{}))
	assert.Equal(t, NameRedundancy, Name(Redundancy{}))
	assert.Equal(t, NameUndersampling, Name(&Undersampling{Step: 2}))
}

func TestIdentity(t *testing.T) {
	bp := house(pts(0, 0, 0, 0, 1, 1))
	assert.Equal(t, bp, Identity{}.Apply(bp))
	assert.Equal(t, Identity{}.Apply(bp), Identity{}.Apply(Identity{}.Apply(bp)))
}

func TestRedundancy(t *testing.T) {
	tests := []struct {
		name string
		in   []core.Point
		want []core.Point
	}{
		{"empty", nil, nil},
		{"single", pts(1, 1), pts(1, 1)},
		{"no duplicates", pts(0, 0, 1, 1, 0, 0), pts(0, 0, 1, 1, 0, 0)},
		{"trailing run", pts(0, 0, 10, 0, 10, 10, 10, 10), pts(0, 0, 10, 0, 10, 10)},
		{"leading run", pts(5, 5, 5, 5, 5, 5, 6, 6), pts(5, 5, 6, 6)},
		{"all equal", pts(2, 2, 2, 2, 2, 2), pts(2, 2)},
		{"non consecutive repeats kept", pts(1, 1, 2, 2, 1, 1, 1, 1), pts(1, 1, 2, 2, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := house(tt.in)
			got := Redundancy{}.Apply(in)

			assert.True(t, got.SameIdentity(in))
			assert.Equal(t, tt.want, got.Points)
			assert.Equal(t, got, Redundancy{}.Apply(got), "redundancy filter must be idempotent")
		})
	}
}

func TestRedundancy_DoesNotMutateInput(t *testing.T) {
	in := house(pts(1, 1, 1, 1, 2, 2))
	before := in.Clone()

	_ = Redundancy{}.Apply(in)

	assert.Equal(t, before.Points, in.Points)
}

func TestUndersampling(t *testing.T) {
	tests := []struct {
		name string
		step int
		in   []core.Point
		want []core.Point
	}{
		{"empty", 2, nil, nil},
		{"two points untouched", 2, pts(0, 0, 1, 1), pts(0, 0, 1, 1)},
		{"odd length keeps last by stride", 2, pts(0, 0, 1, 1, 2, 2, 3, 3, 4, 4), pts(0, 0, 2, 2, 4, 4)},
		{"even length appends last", 2, pts(0, 0, 1, 1, 2, 2, 3, 3), pts(0, 0, 2, 2, 3, 3)},
		{"step three", 3, pts(0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6), pts(0, 0, 3, 3, 6, 6)},
		{"step larger than length", 10, pts(0, 0, 1, 1, 2, 2), pts(0, 0, 2, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := house(tt.in)
			got := Undersampling{Step: tt.step}.Apply(in)

			assert.True(t, got.SameIdentity(in))
			assert.Equal(t, tt.want, got.Points)
			if len(tt.in) > 0 {
				assert.Equal(t, tt.in[0], got.Points[0])
				assert.Equal(t, tt.in[len(tt.in)-1], got.Points[len(got.Points)-1])
			}
		})
	}
}

func TestHouseScenario(t *testing.T) {
	bp := house(pts(0, 0, 10, 0, 10, 10))
	assert.Equal(t, pts(0, 0, 10, 0, 10, 10), Identity{}.Apply(bp).Points)

	bp.Points = append(bp.Points, core.Point{X: 10, Y: 10})
	assert.Equal(t, pts(0, 0, 10, 0, 10, 10), Redundancy{}.Apply(bp).Points)
}
