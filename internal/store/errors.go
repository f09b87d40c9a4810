package store

import (
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// StorageCause classifies a storage failure coarsely enough for callers to
// react without knowing the driver.
type StorageCause string

const (
	CauseIO                  StorageCause = "io"
	CauseConstraintViolation StorageCause = "constraint-violation"
	CauseCorruption          StorageCause = "corruption"
)

// StorageError wraps a database failure with the operation that hit it.
type StorageError struct {
	Op    string
	Cause StorageCause
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Cause, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Cause: classify(err), Err: err}
}

func classify(err error) StorageCause {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return CauseConstraintViolation
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return CauseCorruption
		}
	}
	return CauseIO
}
