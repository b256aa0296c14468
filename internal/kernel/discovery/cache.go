package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"nbweave/internal/kernel"
)

const (
	defaultDebounce = 500 * time.Millisecond
	refreshTimeout  = 10 * time.Second
)

// CachedLister keeps the local kernel pool as an immutable snapshot.
// Matching reads whatever snapshot is current; refreshes publish a whole
// new slice atomically and never mutate a published one, so a match never
// observes a half-refreshed pool.
//
// Watch subscribes to kernelspec roots so installing or removing a kernel
// triggers a debounced refresh.
type CachedLister struct {
	inner    Lister
	logger   *zap.Logger
	debounce time.Duration

	pool atomic.Pointer[poolSnapshot]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

type poolSnapshot struct {
	connections []kernel.ConnectionMetadata
	taken       time.Time
}

// CacheOption configures a CachedLister.
type CacheOption func(*CachedLister)

// WithCacheLogger sets the lister's logger. Defaults to a no-op logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedLister) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce sets the delay between a filesystem event and the refresh
// it triggers, coalescing bursts into a single refresh.
func WithDebounce(d time.Duration) CacheOption {
	return func(c *CachedLister) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// NewCachedLister wraps a Lister with snapshot caching.
func NewCachedLister(inner Lister, opts ...CacheOption) *CachedLister {
	c := &CachedLister{
		inner:    inner,
		logger:   zap.NewNop(),
		debounce: defaultDebounce,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pool returns the current snapshot, nil if no refresh has completed yet.
// The returned slice must be treated as read-only.
func (c *CachedLister) Pool() []kernel.ConnectionMetadata {
	snap := c.pool.Load()
	if snap == nil {
		return nil
	}
	return snap.connections
}

// PoolAge returns how long ago the current snapshot was taken, zero if no
// refresh has completed yet.
func (c *CachedLister) PoolAge() time.Duration {
	snap := c.pool.Load()
	if snap == nil {
		return 0
	}
	return time.Since(snap.taken)
}

// Refresh lists local kernels and publishes the result as the new
// snapshot.
func (c *CachedLister) Refresh(ctx context.Context) ([]kernel.ConnectionMetadata, error) {
	pool, err := c.inner.ListLocalKernels(ctx)
	if err != nil {
		return nil, err
	}
	c.pool.Store(&poolSnapshot{connections: pool, taken: time.Now()})
	c.logger.Debug("kernel pool refreshed", zap.Int("count", len(pool)))
	return pool, nil
}

// ListLocalKernels returns the cached snapshot, refreshing first if none
// exists yet.
func (c *CachedLister) ListLocalKernels(ctx context.Context) ([]kernel.ConnectionMetadata, error) {
	if snap := c.pool.Load(); snap != nil {
		return snap.connections, nil
	}
	return c.Refresh(ctx)
}

// ListRemoteKernels delegates to the wrapped lister; remote listings are
// not cached.
func (c *CachedLister) ListRemoteKernels(ctx context.Context, server ServerClient) ([]kernel.ConnectionMetadata, error) {
	return c.inner.ListRemoteKernels(ctx, server)
}

// Watch subscribes to kernelspec roots. Roots that do not exist are
// skipped; watching starts lazily on the first call.
func (c *CachedLister) Watch(roots ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrWatcherClosed
	}
	if c.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		c.watcher = w
		c.wg.Add(1)
		go c.watchLoop(w)
	}
	for _, root := range roots {
		if err := c.watcher.Add(root); err != nil {
			c.logger.Debug("cannot watch kernelspec root",
				zap.String("root", root), zap.Error(err))
		}
	}
	return nil
}

// Close stops watching and releases the watcher. The current snapshot
// stays readable.
func (c *CachedLister) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	if c.timer != nil {
		c.timer.Stop()
	}
	w := c.watcher
	c.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
	}
	c.wg.Wait()
	return err
}

func (c *CachedLister) watchLoop(w *fsnotify.Watcher) {
	defer c.wg.Done()

	for {
		select {
		case <-c.closeCh:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
				ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				c.scheduleRefresh()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("kernelspec watch error", zap.Error(err))
		}
	}
}

// scheduleRefresh coalesces a burst of filesystem events into one refresh
// after the debounce interval.
func (c *CachedLister) scheduleRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Warn("kernel pool refresh failed", zap.Error(err))
		}
	})
}

// Ensure CachedLister implements Lister.
var _ Lister = (*CachedLister)(nil)
