package kernel

import (
	"errors"
	"fmt"
)

// Standard errors returned by the kernel package.
var (
	// ErrNilCandidate indicates a nil entry in the candidate pool.
	ErrNilCandidate = errors.New("nil candidate in kernel pool")

	// ErrMissingLanguage indicates a kernel spec without a language field.
	ErrMissingLanguage = errors.New("kernel spec missing language")

	// ErrMissingName indicates a kernel spec without a name.
	ErrMissingName = errors.New("kernel spec missing name")
)

// PoolError describes a malformed candidate pool entry.
type PoolError struct {
	Index int    // position in the pool
	Name  string // spec name when known
	Err   error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("kernel candidate %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("kernel candidate %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *PoolError) Unwrap() error { return e.Err }
