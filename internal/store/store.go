package store

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// DefaultCap is the number of entries a store retains before evicting the
// least recently recorded ones.
const DefaultCap = 100

// ErrClosed is returned when an operation runs against a closed store.
var ErrClosed = errors.New("store: closed")

// Record is one remembered kernel choice.
type Record struct {
	// FileHash is the CRC-32 (IEEE) hex digest of the document URI.
	FileHash string
	// KernelID identifies the kernel connection the document last used.
	KernelID string
	// UpdatedAt is when the choice was last recorded.
	UpdatedAt time.Time
}

// PreferredKernelStore persists the kernel each document last connected to.
// Lookups feed the connection matcher as a document hint, so a stale or
// missing entry only weakens ranking and never blocks a connection.
type PreferredKernelStore interface {
	// Lookup returns the kernel ID last recorded for uri, or the empty
	// string when the document has no entry.
	Lookup(ctx context.Context, uri string) (string, error)

	// Record remembers kernelID as the preferred kernel for uri,
	// refreshing the entry's recency. Recording may evict the oldest
	// entries to stay within capacity.
	Record(ctx context.Context, uri, kernelID string) error

	// Forget drops the entry for uri. Forgetting an absent entry is a
	// no-op.
	Forget(ctx context.Context, uri string) error

	// Len reports the number of retained entries.
	Len(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// HashURI returns the storage key for a document URI. CRC-32 keeps keys
// short and stable; collisions merely swap one ranking hint for another.
func HashURI(uri string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(uri)))
}
