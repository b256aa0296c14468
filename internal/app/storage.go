package app

import (
	"context"
	"os"
	"strings"
)

// Storage abstracts where notebook bytes live. The service never touches
// the filesystem directly, so tests and remote-filesystem editors can
// substitute their own implementation.
type Storage interface {
	// ReadFile returns the raw notebook bytes for a URI.
	ReadFile(ctx context.Context, uri string) ([]byte, error)

	// WriteFile persists serialized notebook bytes under a URI.
	WriteFile(ctx context.Context, uri string, data []byte) error
}

// OSStorage reads and writes local files. URIs may be plain paths or
// file:// URIs; other schemes fail at the filesystem layer.
type OSStorage struct{}

// ReadFile implements Storage.
func (OSStorage) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(uriToPath(uri))
}

// WriteFile implements Storage.
func (OSStorage) WriteFile(ctx context.Context, uri string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(uriToPath(uri), data, 0644)
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

var _ Storage = OSStorage{}
