package memory

import (
	"blueprints-server/core"
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type indexedPoint struct {
	idx   int
	point core.Point
}

// entry owns the point sequence of one blueprint. Its lock serialises
// appends on that blueprint only.
type entry struct {
	mu     sync.RWMutex
	points []indexedPoint
}

type blueprintStore struct {
	mu         sync.RWMutex
	blueprints map[core.Key]*entry
}

func NewBlueprintStore() core.BlueprintStore {
	return &blueprintStore{
		blueprints: make(map[core.Key]*entry),
	}
}

func (s *blueprintStore) Create(ctx context.Context, bp core.Blueprint) error {
	if err := ctx.Err(); err != nil {
		return core.NewStorageError("create", err)
	}

	key := bp.Key()
	e := &entry{points: make([]indexedPoint, len(bp.Points))}
	for i, p := range bp.Points {
		e.points[i] = indexedPoint{idx: i, point: p}
	}

	log := logrus.WithFields(logrus.Fields{
		"author": key.Author,
		"name":   key.Name,
		"points": len(bp.Points),
	})

	s.mu.Lock()
	if _, exists := s.blueprints[key]; exists {
		s.mu.Unlock()
		log.Warn("Blueprint already exists")
		return core.DuplicateError(key)
	}
	s.blueprints[key] = e
	s.mu.Unlock()

	log.Info("Blueprint created successfully")
	return nil
}

func (s *blueprintStore) Get(ctx context.Context, author, name string) (core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return core.Blueprint{}, core.NewStorageError("get", err)
	}

	key := core.Key{Author: author, Name: name}
	s.mu.RLock()
	e, ok := s.blueprints[key]
	s.mu.RUnlock()

	if !ok {
		logrus.WithFields(logrus.Fields{"author": author, "name": name}).Warn("Blueprint not found")
		return core.Blueprint{}, core.NotFoundError(key)
	}
	return e.snapshot(key), nil
}

func (s *blueprintStore) ListByAuthor(ctx context.Context, author string) ([]core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("list by author", err)
	}

	bps := s.collect(func(k core.Key) bool { return k.Author == author })
	if len(bps) == 0 {
		logrus.WithField("author", author).Warn("Author has no blueprints")
		return nil, core.AuthorNotFoundError(author)
	}
	return bps, nil
}

func (s *blueprintStore) List(ctx context.Context) ([]core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("list", err)
	}
	return s.collect(func(core.Key) bool { return true }), nil
}

func (s *blueprintStore) AppendPoint(ctx context.Context, author, name string, p core.Point) error {
	if err := ctx.Err(); err != nil {
		return core.NewStorageError("append point", err)
	}

	key := core.Key{Author: author, Name: name}
	s.mu.RLock()
	e, ok := s.blueprints[key]
	s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})
	if !ok {
		log.Warn("Cannot add point to missing blueprint")
		return core.NotFoundError(key)
	}

	e.mu.Lock()
	next := 0
	for _, ip := range e.points {
		if ip.idx >= next {
			next = ip.idx + 1
		}
	}
	e.points = append(e.points, indexedPoint{idx: next, point: p})
	e.mu.Unlock()

	log.WithField("idx", next).Debug("Point added")
	return nil
}

func (s *blueprintStore) collect(match func(core.Key) bool) []core.Blueprint {
	s.mu.RLock()
	type found struct {
		key core.Key
		e   *entry
	}
	var matches []found
	for k, e := range s.blueprints {
		if match(k) {
			matches = append(matches, found{k, e})
		}
	}
	s.mu.RUnlock()

	bps := make([]core.Blueprint, 0, len(matches))
	for _, m := range matches {
		bps = append(bps, m.e.snapshot(m.key))
	}
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].Author == bps[j].Author {
			return bps[i].Name < bps[j].Name
		}
		return bps[i].Author < bps[j].Author
	})
	return bps
}

// snapshot copies the points ordered by their stored index.
func (e *entry) snapshot(key core.Key) core.Blueprint {
	e.mu.RLock()
	indexed := make([]indexedPoint, len(e.points))
	copy(indexed, e.points)
	e.mu.RUnlock()

	sort.SliceStable(indexed, func(i, j int) bool { return indexed[i].idx < indexed[j].idx })
	points := make([]core.Point, len(indexed))
	for i, ip := range indexed {
		points[i] = ip.point
	}
	return core.Blueprint{Author: key.Author, Name: key.Name, Points: points}
}
