package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate is returned when creating a blueprint whose key exists.
	ErrDuplicate = errors.New("blueprint already exists")

	// ErrNotFound is returned when a blueprint or an author has no record.
	ErrNotFound = errors.New("blueprint not found")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("blueprint storage failure")
)

// StorageError is a failure of the backing storage that is not a business
// rule: lost connections, timeouts, cancelled contexts, unexpected
// constraint violations. It is never retried by the stores.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err unless it already is a storage error.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DuplicateError reports that k is already taken.
func DuplicateError(k Key) error {
	return fmt.Errorf("%w: %s", ErrDuplicate, k)
}

// NotFoundError reports that no blueprint is stored under k.
func NotFoundError(k Key) error {
	return fmt.Errorf("%w: %s", ErrNotFound, k)
}

// AuthorNotFoundError reports that author has no blueprints.
func AuthorNotFoundError(author string) error {
	return fmt.Errorf("%w: no blueprints for author %s", ErrNotFound, author)
}
