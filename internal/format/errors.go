package format

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNotebook is returned when the input is not valid JSON or
	// lacks the notebook shape entirely.
	ErrInvalidNotebook = errors.New("format: invalid notebook")

	// ErrUnsupportedFormat is returned for notebooks older than nbformat 4.
	ErrUnsupportedFormat = errors.New("format: unsupported nbformat version")

	// ErrUnknownCellType is returned for a cell_type outside code,
	// markdown, and raw.
	ErrUnknownCellType = errors.New("format: unknown cell type")

	// ErrUnknownCellKind is returned when serializing a live cell whose
	// kind is not one of the defined constants.
	ErrUnknownCellKind = errors.New("format: unknown cell kind")
)

// FormatError wraps a translation failure with enough context to report
// which part of the notebook could not be handled.
type FormatError struct {
	Op     string // "deserialize", "serialize", "cell", "output"
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("format: %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("format: %s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
