//go:build !cgo

package sqlite

import (
	"errors"

	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver backing the store in this build.
// go-sqlite3 needs cgo, so pure Go builds fall back to modernc.
const DriverName = "sqlite"

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}
