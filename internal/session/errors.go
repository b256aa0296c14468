package session

import "errors"

// Errors returned by session operations.
var (
	// ErrSessionClosed indicates the session was closed before or during
	// the operation.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotCodeCell indicates an execution request against a markup or
	// raw cell.
	ErrNotCodeCell = errors.New("cell is not a code cell")

	// ErrNilDocument indicates a session constructed without a document.
	ErrNilDocument = errors.New("document is nil")

	// ErrNilConnection indicates a session constructed without a kernel
	// connection.
	ErrNilConnection = errors.New("kernel connection is nil")

	// ErrNilQueue indicates a session constructed without a mutation queue.
	ErrNilQueue = errors.New("mutation queue is nil")
)
