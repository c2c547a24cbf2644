package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("feed transport error")

	// ErrEmptyResult is returned when the first page of a fetch has no records.
	ErrEmptyResult = errors.New("feed returned no records")
)

// TransportError is a failed page request after retries were exhausted
// or on a non-retryable status.
type TransportError struct {
	Offset     int
	StatusCode int // 0 when no response was received
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed page offset=%d: status %d after %d attempt(s): %v", e.Offset, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("feed page offset=%d: %d attempt(s): %v", e.Offset, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true for any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
