package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when scheduling on a closed queue.
	ErrQueueClosed = errors.New("mutation: queue closed")

	// ErrNilOp is returned when a nil operation is scheduled.
	ErrNilOp = errors.New("mutation: nil operation")
)

// PanicError reports that an operation panicked. The recovered value is
// preserved so callers can log or rethrow it.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("mutation: operation panicked: %v", e.Value)
}
