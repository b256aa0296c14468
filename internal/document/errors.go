package document

import "errors"

// Errors returned by document and registry operations.
var (
	// ErrCellNotFound indicates no cell with the given ID exists in the document.
	ErrCellNotFound = errors.New("cell not found")

	// ErrIndexOutOfRange indicates a cell index outside the document bounds.
	ErrIndexOutOfRange = errors.New("cell index out of range")

	// ErrOutputIndexOutOfRange indicates an output index outside a cell's bounds.
	ErrOutputIndexOutOfRange = errors.New("output index out of range")

	// ErrNilCell indicates a nil cell was passed where a cell is required.
	ErrNilCell = errors.New("cell is nil")

	// ErrAlreadyRegistered indicates a document with the same URI is already tracked.
	ErrAlreadyRegistered = errors.New("document already registered")

	// ErrNotRegistered indicates the URI is not tracked by the registry.
	ErrNotRegistered = errors.New("document not registered")
)
