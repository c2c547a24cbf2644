package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence error")

	// ErrTimeout is returned when a cycle exceeds its timeout.
	ErrTimeout = errors.New("cycle timed out")

	// ErrPanic is returned when a fetch or persist stage panicked.
	ErrPanic = errors.New("cycle stage panicked")
)

// PersistenceError is a failed write of one token.
type PersistenceError struct {
	Mint string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Mint, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) true for any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
