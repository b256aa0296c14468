package discovery

import (
	"context"
	"errors"

	"nbweave/internal/kernel"
)

// Standard errors returned by the discovery package.
var (
	// ErrInvalidListing indicates a server listing payload that is not
	// valid JSON or lacks the expected shape.
	ErrInvalidListing = errors.New("invalid server listing payload")

	// ErrWatcherClosed indicates use of a closed CachedLister.
	ErrWatcherClosed = errors.New("kernel watcher closed")
)

// Lister enumerates candidate kernel connections.
type Lister interface {
	// ListLocalKernels returns the kernels installed on this machine.
	ListLocalKernels(ctx context.Context) ([]kernel.ConnectionMetadata, error)

	// ListRemoteKernels returns the kernels a Jupyter server offers:
	// installed specs, the server default, and already-running kernels.
	ListRemoteKernels(ctx context.Context, server ServerClient) ([]kernel.ConnectionMetadata, error)
}

// ServerClient fetches listing payloads from a Jupyter server. The HTTP
// transport lives outside this package; implementations return the raw
// JSON response bodies.
type ServerClient interface {
	// ID identifies the server, scoping live-kernel connection identity.
	ID() string

	// KernelSpecs returns the /api/kernelspecs response body.
	KernelSpecs(ctx context.Context) ([]byte, error)

	// Sessions returns the /api/sessions response body.
	Sessions(ctx context.Context) ([]byte, error)
}
