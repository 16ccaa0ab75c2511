package sqlite

import (
	"blueprints-server/core"
	"blueprints-server/stores/internal/sqlrows"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	selectBlueprints = `SELECT b.author, b.name, p.x, p.y FROM blueprints b
		LEFT JOIN blueprint_points p ON p.author = b.author AND p.name = b.name`
	orderBlueprints = ` ORDER BY b.author, b.name, p.idx`
)

type blueprintStore struct {
	db *sql.DB
}

// NewBlueprintStore opens the database and creates the tables if needed.
// SQLite allows a single writer, so the pool is limited to one connection;
// this is also what serialises concurrent appends on a blueprint.
func NewBlueprintStore(dataSourceName string) (core.BlueprintStore, error) {
	db, err := sql.Open(DriverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	blueprintsTable := `CREATE TABLE IF NOT EXISTS blueprints (
		author TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (author, name)
	);`
	if _, err := db.Exec(blueprintsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blueprints table: %w", err)
	}

	pointsTable := `CREATE TABLE IF NOT EXISTS blueprint_points (
		author TEXT NOT NULL,
		name TEXT NOT NULL,
		idx INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		PRIMARY KEY (author, name, idx),
		FOREIGN KEY (author, name) REFERENCES blueprints (author, name)
	);`
	if _, err := db.Exec(pointsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blueprint_points table: %w", err)
	}

	return &blueprintStore{db}, nil
}

func (s *blueprintStore) Close() error {
	return s.db.Close()
}

func (s *blueprintStore) Create(ctx context.Context, bp core.Blueprint) error {
	key := bp.Key()
	log := logrus.WithFields(logrus.Fields{
		"author": key.Author,
		"name":   key.Name,
		"points": len(bp.Points),
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		return core.NewStorageError("create", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "INSERT INTO blueprints (author, name) VALUES (?, ?)", key.Author, key.Name)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Blueprint already exists")
			return core.DuplicateError(key)
		}
		log.WithError(err).Error("Failed to create blueprint")
		return core.NewStorageError("create", err)
	}

	if len(bp.Points) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO blueprint_points (author, name, idx, x, y) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			log.WithError(err).Error("Failed to prepare point insert")
			return core.NewStorageError("create", err)
		}
		defer stmt.Close()

		for i, p := range bp.Points {
			if _, err := stmt.ExecContext(ctx, key.Author, key.Name, i, p.X, p.Y); err != nil {
				log.WithError(err).WithField("idx", i).Error("Failed to insert point")
				return core.NewStorageError("create", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return core.DuplicateError(key)
		}
		log.WithError(err).Error("Failed to commit blueprint")
		return core.NewStorageError("create", err)
	}

	log.Info("Blueprint created successfully")
	return nil
}

func (s *blueprintStore) Get(ctx context.Context, author, name string) (core.Blueprint, error) {
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})
	log.Debug("Retrieving blueprint")

	bps, err := s.query(ctx, selectBlueprints+" WHERE b.author = ? AND b.name = ?"+orderBlueprints, author, name)
	if err != nil {
		log.WithError(err).Error("Failed to retrieve blueprint")
		return core.Blueprint{}, core.NewStorageError("get", err)
	}
	if len(bps) == 0 {
		log.Warn("Blueprint not found")
		return core.Blueprint{}, core.NotFoundError(core.Key{Author: author, Name: name})
	}
	return bps[0], nil
}

func (s *blueprintStore) ListByAuthor(ctx context.Context, author string) ([]core.Blueprint, error) {
	log := logrus.WithField("author", author)
	log.Debug("Listing blueprints by author")

	bps, err := s.query(ctx, selectBlueprints+" WHERE b.author = ?"+orderBlueprints, author)
	if err != nil {
		log.WithError(err).Error("Failed to list blueprints")
		return nil, core.NewStorageError("list by author", err)
	}
	if len(bps) == 0 {
		log.Warn("Author has no blueprints")
		return nil, core.AuthorNotFoundError(author)
	}
	return bps, nil
}

func (s *blueprintStore) List(ctx context.Context) ([]core.Blueprint, error) {
	bps, err := s.query(ctx, selectBlueprints+orderBlueprints)
	if err != nil {
		logrus.WithError(err).Error("Failed to list blueprints")
		return nil, core.NewStorageError("list", err)
	}
	return bps, nil
}

func (s *blueprintStore) AppendPoint(ctx context.Context, author, name string, p core.Point) error {
	key := core.Key{Author: author, Name: name}
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		return core.NewStorageError("append point", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM blueprints WHERE author = ? AND name = ?", author, name).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Cannot add point to missing blueprint")
			return core.NotFoundError(key)
		}
		log.WithError(err).Error("Failed to look up blueprint")
		return core.NewStorageError("append point", err)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(idx), -1) + 1 FROM blueprint_points WHERE author = ? AND name = ?",
		author, name).Scan(&next)
	if err != nil {
		log.WithError(err).Error("Failed to compute next point index")
		return core.NewStorageError("append point", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO blueprint_points (author, name, idx, x, y) VALUES (?, ?, ?, ?, ?)",
		author, name, next, p.X, p.Y)
	if err != nil {
		log.WithError(err).Error("Failed to insert point")
		return core.NewStorageError("append point", err)
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit point")
		return core.NewStorageError("append point", err)
	}

	log.WithField("idx", next).Debug("Point added")
	return nil
}

func (s *blueprintStore) query(ctx context.Context, query string, args ...any) ([]core.Blueprint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close blueprint rows")
		}
	}()
	return sqlrows.Assemble(rows)
}
