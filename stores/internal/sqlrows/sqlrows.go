// Package sqlrows turns joined blueprint/point rows into blueprints. It is
// shared by the database/sql and pgx backed stores.
package sqlrows

import (
	"blueprints-server/core"
	"database/sql"
)

// Rows is the part of *sql.Rows and pgx.Rows the assembler needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Assemble reads rows of (author, name, x, y) sorted by author, name and
// point index. A blueprint without points arrives as one row with NULL x
// and y, as produced by a LEFT JOIN.
func Assemble(rows Rows) ([]core.Blueprint, error) {
	bps := []core.Blueprint{}
	for rows.Next() {
		var author, name string
		var x, y sql.NullInt64
		if err := rows.Scan(&author, &name, &x, &y); err != nil {
			return nil, err
		}

		last := len(bps) - 1
		if last < 0 || bps[last].Author != author || bps[last].Name != name {
			bps = append(bps, core.Blueprint{Author: author, Name: name, Points: []core.Point{}})
			last++
		}
		if x.Valid && y.Valid {
			bps[last].Points = append(bps[last].Points, core.Point{X: int(x.Int64), Y: int(y.Int64)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bps, nil
}
