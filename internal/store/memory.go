package store

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process PreferredKernelStore. Entries live in a
// recency list so eviction past capacity drops the least recently recorded
// document first.
type MemoryStore struct {
	mu     sync.Mutex
	cap    int
	order  *list.List               // front is most recently recorded
	byHash map[string]*list.Element // element value is *Record
	closed bool
	now    func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity overrides the entry capacity. Values below one fall back to
// DefaultCap.
func WithCapacity(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.cap = n
		}
	}
}

// NewMemoryStore returns an empty in-memory store with DefaultCap entries.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		cap:    DefaultCap,
		order:  list.New(),
		byHash: make(map[string]*list.Element),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup implements PreferredKernelStore. It does not refresh recency;
// only recording a choice counts as use.
func (m *MemoryStore) Lookup(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	elem, ok := m.byHash[HashURI(uri)]
	if !ok {
		return "", nil
	}
	return elem.Value.(*Record).KernelID, nil
}

// Record implements PreferredKernelStore.
func (m *MemoryStore) Record(ctx context.Context, uri, kernelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	hash := HashURI(uri)
	if elem, ok := m.byHash[hash]; ok {
		rec := elem.Value.(*Record)
		rec.KernelID = kernelID
		rec.UpdatedAt = m.now()
		m.order.MoveToFront(elem)
		return nil
	}

	rec := &Record{FileHash: hash, KernelID: kernelID, UpdatedAt: m.now()}
	m.byHash[hash] = m.order.PushFront(rec)

	for m.order.Len() > m.cap {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.byHash, oldest.Value.(*Record).FileHash)
	}
	return nil
}

// Forget implements PreferredKernelStore.
func (m *MemoryStore) Forget(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	hash := HashURI(uri)
	if elem, ok := m.byHash[hash]; ok {
		m.order.Remove(elem)
		delete(m.byHash, hash)
	}
	return nil
}

// Len implements PreferredKernelStore.
func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return m.order.Len(), nil
}

// Close implements PreferredKernelStore. Closing twice is a no-op.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.order.Init()
	m.byHash = make(map[string]*list.Element)
	return nil
}

var _ PreferredKernelStore = (*MemoryStore)(nil)
