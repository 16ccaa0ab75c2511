package postgres

import (
	"blueprints-server/core"
	"blueprints-server/stores/internal/sqlrows"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	uniqueViolation = "23505"

	selectBlueprints = `SELECT b.author, b.name, p.x, p.y FROM blueprints b
		LEFT JOIN blueprint_points p ON p.author = b.author AND p.name = b.name`
	orderBlueprints = ` ORDER BY b.author, b.name, p.idx`
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS blueprints (
		author TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (author, name)
	)`,
	`CREATE TABLE IF NOT EXISTS blueprint_points (
		author TEXT NOT NULL,
		name TEXT NOT NULL,
		idx BIGINT NOT NULL,
		x BIGINT NOT NULL,
		y BIGINT NOT NULL,
		PRIMARY KEY (author, name, idx),
		FOREIGN KEY (author, name) REFERENCES blueprints (author, name)
	)`,
}

type blueprintStore struct {
	pool *pgxpool.Pool
}

// NewBlueprintStore connects to PostgreSQL and creates the tables if needed.
func NewBlueprintStore(ctx context.Context, dsn string) (core.BlueprintStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &blueprintStore{pool: pool}, nil
}

func (s *blueprintStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *blueprintStore) Create(ctx context.Context, bp core.Blueprint) error {
	key := bp.Key()
	log := logrus.WithFields(logrus.Fields{
		"author": key.Author,
		"name":   key.Name,
		"points": len(bp.Points),
	})

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO blueprints (author, name) VALUES ($1, $2)", key.Author, key.Name)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == uniqueViolation {
				return core.DuplicateError(key)
			}
			return err
		}

		if len(bp.Points) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"blueprint_points"},
			[]string{"author", "name", "idx", "x", "y"},
			pgx.CopyFromSlice(len(bp.Points), func(i int) ([]any, error) {
				p := bp.Points[i]
				return []any{key.Author, key.Name, i, p.X, p.Y}, nil
			}),
		)
		return err
	})

	switch {
	case err == nil:
		log.Info("Blueprint created successfully")
		return nil
	case errors.Is(err, core.ErrDuplicate):
		log.Warn("Blueprint already exists")
		return err
	default:
		log.WithError(err).Error("Failed to create blueprint")
		return core.NewStorageError("create", err)
	}
}

func (s *blueprintStore) Get(ctx context.Context, author, name string) (core.Blueprint, error) {
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})
	log.Debug("Retrieving blueprint")

	bps, err := s.query(ctx, selectBlueprints+" WHERE b.author = $1 AND b.name = $2"+orderBlueprints, author, name)
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

	bps, err := s.query(ctx, selectBlueprints+" WHERE b.author = $1"+orderBlueprints, author)
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

// AppendPoint locks the parent row, so appends on one blueprint queue up
// while appends on other blueprints run in parallel.
func (s *blueprintStore) AppendPoint(ctx context.Context, author, name string, p core.Point) error {
	key := core.Key{Author: author, Name: name}
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})

	var next int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx,
			"SELECT 1 FROM blueprints WHERE author = $1 AND name = $2 FOR UPDATE",
			author, name).Scan(&exists)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return core.NotFoundError(key)
			}
			return err
		}

		err = tx.QueryRow(ctx,
			"SELECT COALESCE(MAX(idx), -1) + 1 FROM blueprint_points WHERE author = $1 AND name = $2",
			author, name).Scan(&next)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO blueprint_points (author, name, idx, x, y) VALUES ($1, $2, $3, $4, $5)",
			author, name, next, p.X, p.Y)
		return err
	})

	switch {
	case err == nil:
		log.WithField("idx", next).Debug("Point added")
		return nil
	case errors.Is(err, core.ErrNotFound):
		log.Warn("Cannot add point to missing blueprint")
		return err
	default:
		log.WithError(err).Error("Failed to add point")
		return core.NewStorageError("append point", err)
	}
}

func (s *blueprintStore) query(ctx context.Context, query string, args ...any) ([]core.Blueprint, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlrows.Assemble(rows)
}
