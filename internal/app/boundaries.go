package app

import (
	"context"

	"nbweave/internal/kernel"
	"nbweave/internal/session"
)

// Connector turns resolved kernel connection metadata into a live
// transport connection. The kernel wire protocol is out of scope for this
// module, so the embedding editor supplies the implementation.
type Connector interface {
	Connect(ctx context.Context, meta kernel.ConnectionMetadata) (session.Connection, error)
}

// InterpreterResolver reports the environment's active Python interpreter,
// the last-resort candidate when no kernelspec matches a document.
type InterpreterResolver interface {
	ActiveInterpreter(ctx context.Context) (*kernel.Interpreter, error)
}
