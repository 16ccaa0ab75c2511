package sqlrows

import (
	"blueprints-server/core"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows [][4]any
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	f.pos++
	return f.pos <= len(f.rows)
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*string) = row[1].(string)
	for i := 2; i < 4; i++ {
		n := dest[i].(*sql.NullInt64)
		if row[i] == nil {
			*n = sql.NullInt64{}
			continue
		}
		*n = sql.NullInt64{Int64: int64(row[i].(int)), Valid: true}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestAssemble(t *testing.T) {
	rows := &fakeRows{rows: [][4]any{
		{"ana", "garden", nil, nil},
		{"ana", "house", 0, 0},
		{"ana", "house", 10, 0},
		{"ana", "house", 10, 10},
		{"bob", "boat", 3, 4},
	}}

	bps, err := Assemble(rows)
	require.NoError(t, err)
	require.Len(t, bps, 3)

	assert.Equal(t, core.Blueprint{Author: "ana", Name: "garden", Points: []core.Point{}}, bps[0])
	assert.Equal(t, []core.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, bps[1].Points)
	assert.Equal(t, []core.Point{{X: 3, Y: 4}}, bps[2].Points)
}

func TestAssemble_Empty(t *testing.T) {
	bps, err := Assemble(&fakeRows{})
	require.NoError(t, err)
	assert.NotNil(t, bps)
	assert.Empty(t, bps)
}

func TestAssemble_RowsError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Assemble(&fakeRows{err: boom})
	assert.ErrorIs(t, err, boom)
}
