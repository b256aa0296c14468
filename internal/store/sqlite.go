package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS preferred_kernels (
	file_hash  TEXT PRIMARY KEY,
	kernel_id  TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_preferred_kernels_updated
	ON preferred_kernels(updated_at);
`

// SQLiteStore is a PreferredKernelStore backed by a SQLite database file.
// Recency is an integer nanosecond timestamp so eviction order stays total
// even for entries recorded in the same wall-clock second.
type SQLiteStore struct {
	db  *sql.DB
	cap int
	now func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteCapacity overrides the entry capacity. Values below one fall
// back to DefaultCap.
func WithSQLiteCapacity(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// NewSQLiteStore opens (creating if needed) the database at path and
// prepares the schema. The parent directory is created with user-only
// permissions.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing store schema: %w", err)
	}

	s := &SQLiteStore{db: db, cap: DefaultCap, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup implements PreferredKernelStore.
func (s *SQLiteStore) Lookup(ctx context.Context, uri string) (string, error) {
	var kernelID string
	err := s.db.QueryRowContext(ctx,
		`SELECT kernel_id FROM preferred_kernels WHERE file_hash = ?`,
		HashURI(uri),
	).Scan(&kernelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up preferred kernel: %w", err)
	}
	return kernelID, nil
}

// Record implements PreferredKernelStore. The upsert refreshes recency and
// a follow-up delete trims everything past capacity, oldest first.
func (s *SQLiteStore) Record(ctx context.Context, uri, kernelID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferred_kernels (file_hash, kernel_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET
			kernel_id = excluded.kernel_id,
			updated_at = excluded.updated_at`,
		HashURI(uri), kernelID, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording preferred kernel: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM preferred_kernels
		WHERE file_hash NOT IN (
			SELECT file_hash FROM preferred_kernels
			ORDER BY updated_at DESC, file_hash
			LIMIT ?
		)`,
		s.cap,
	)
	if err != nil {
		return fmt.Errorf("trimming preferred kernels: %w", err)
	}
	return nil
}

// Forget implements PreferredKernelStore.
func (s *SQLiteStore) Forget(ctx context.Context, uri string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM preferred_kernels WHERE file_hash = ?`,
		HashURI(uri),
	)
	if err != nil {
		return fmt.Errorf("forgetting preferred kernel: %w", err)
	}
	return nil
}

// Len implements PreferredKernelStore.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM preferred_kernels`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting preferred kernels: %w", err)
	}
	return n, nil
}

// Close implements PreferredKernelStore.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store database: %w", err)
	}
	return nil
}

var _ PreferredKernelStore = (*SQLiteStore)(nil)
