package core

import (
	"context"
	"strings"
)

type (
	// Point is a single 2D coordinate of a drawing.
	Point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	// Key identifies a blueprint. Both parts are case-sensitive.
	Key struct {
		Author string
		Name   string
	}

	// Blueprint is an author-owned drawing. Points are kept in drawing order.
	Blueprint struct {
		Author string  `json:"author"`
		Name   string  `json:"name"`
		Points []Point `json:"points"`
	}

	// BlueprintStore persists blueprints and their ordered points.
	BlueprintStore interface {
		// Create stores a new blueprint together with its initial points.
		// Returns ErrDuplicate when the key is already taken.
		Create(ctx context.Context, bp Blueprint) error

		// Get returns one blueprint with its points ordered by index.
		Get(ctx context.Context, author, name string) (Blueprint, error)

		// ListByAuthor returns every blueprint of an author.
		// Returns ErrNotFound when the author has none.
		ListByAuthor(ctx context.Context, author string) ([]Blueprint, error)

		// List returns every stored blueprint. An empty result is not an error.
		List(ctx context.Context) ([]Blueprint, error)

		// AppendPoint adds p after the point with the highest stored index.
		AppendPoint(ctx context.Context, author, name string, p Point) error
	}

	// BlueprintFilter reshapes the points of a blueprint at read time.
	// Implementations keep author and name, never reorder the points they
	// keep and never modify their input.
	BlueprintFilter interface {
		Apply(bp Blueprint) Blueprint
	}
)

func (k Key) String() string {
	return k.Author + "/" + k.Name
}

// Valid reports whether both parts of the key are non-blank.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.Author) != "" && strings.TrimSpace(k.Name) != ""
}

// Key returns the identity of the blueprint.
func (b Blueprint) Key() Key {
	return Key{Author: b.Author, Name: b.Name}
}

// SameIdentity compares blueprints by key only; points never take part.
func (b Blueprint) SameIdentity(other Blueprint) bool {
	return b.Key() == other.Key()
}

// Clone returns a copy that shares no memory with b. A nil point slice
// becomes an empty one so that JSON output is always an array.
func (b Blueprint) Clone() Blueprint {
	points := make([]Point, len(b.Points))
	copy(points, b.Points)
	return Blueprint{Author: b.Author, Name: b.Name, Points: points}
}
