package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

const pqUniqueViolation = "23505"

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
