package app

import (
	"errors"
	"fmt"

	"nbweave/internal/kernel"
)

// Errors returned by service operations.
var (
	// ErrServiceClosed indicates the service was shut down.
	ErrServiceClosed = errors.New("service closed")

	// ErrDocumentNotOpen indicates no document is registered under the URI.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrNoSession indicates the document has no attached kernel session.
	ErrNoSession = errors.New("no kernel session for document")

	// ErrNoMatchingKernel indicates the matcher found nothing usable for
	// the document, not even an interpreter fallback.
	ErrNoMatchingKernel = errors.New("no matching kernel")

	// ErrNoConnector indicates a kernel was resolved but the service has
	// no transport connector to start it with.
	ErrNoConnector = errors.New("no kernel connector configured")
)

// DependencyMissingError reports an interpreter that matched the document
// but cannot run notebook cells until its kernel package is installed.
type DependencyMissingError struct {
	Interpreter kernel.Interpreter
}

// Error implements the error interface.
func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("interpreter %s lacks the kernel package", e.Interpreter.DisplayName())
}
