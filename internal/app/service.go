package app

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"nbweave/internal/completion"
	"nbweave/internal/config"
	"nbweave/internal/document"
	"nbweave/internal/event"
	"nbweave/internal/format"
	"nbweave/internal/kernel"
	"nbweave/internal/kernel/discovery"
	"nbweave/internal/mutation"
	"nbweave/internal/session"
	"nbweave/internal/store"
)

// Service owns the live state of the notebook core: open documents, their
// kernel sessions, and the shared mutation queue every change flows
// through.
type Service struct {
	cfg        *config.Config
	logger     *zap.Logger
	bus        *event.Bus
	queue      *mutation.Queue
	codec      *format.Codec
	registry   *document.Registry
	matcher    *kernel.Matcher
	reconciler *completion.Reconciler

	storage   Storage
	prefs     store.PreferredKernelStore
	lister    discovery.Lister
	connector Connector
	resolver  InterpreterResolver
	static    completion.StaticProvider
	deps      kernel.DependencyChecker

	mu       sync.Mutex
	sessions map[string]*session.Session // keyed by document URI
	subs     []*event.Subscription
	closers  []io.Closer
	closed   bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStorage sets the notebook byte store. Defaults to OSStorage.
func WithStorage(st Storage) Option {
	return func(s *Service) {
		if st != nil {
			s.storage = st
		}
	}
}

// WithPreferredKernelStore sets the preferred-kernel store. Defaults to an
// in-memory store; the service closes it on Shutdown either way.
func WithPreferredKernelStore(ps store.PreferredKernelStore) Option {
	return func(s *Service) {
		if ps != nil {
			s.prefs = ps
		}
	}
}

// WithLister sets the kernel discovery source. Defaults to a cached local
// kernelspec scanner watching the standard Jupyter data directories.
func WithLister(l discovery.Lister) Option {
	return func(s *Service) {
		if l != nil {
			s.lister = l
		}
	}
}

// WithConnector sets the kernel transport connector.
func WithConnector(c Connector) Option {
	return func(s *Service) { s.connector = c }
}

// WithInterpreterResolver sets the active-interpreter source used for the
// Python fallback tier.
func WithInterpreterResolver(r InterpreterResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithStaticProvider sets the static completion source merged with kernel
// results.
func WithStaticProvider(sp completion.StaticProvider) Option {
	return func(s *Service) { s.static = sp }
}

// WithDependencyChecker sets the probe deciding whether a fallback
// interpreter can actually host a kernel.
func WithDependencyChecker(dc kernel.DependencyChecker) Option {
	return func(s *Service) { s.deps = dc }
}

// New builds a service from the configuration. A nil cfg means defaults.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		logger:   zap.NewNop(),
		bus:      event.NewBus(),
		queue:    mutation.NewQueue(),
		registry: document.NewRegistry(),
		storage:  OSStorage{},
		sessions: make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	cells := format.NewCellCodec(
		format.WithCellLogger(s.logger),
		format.WithFallbackHook(func(outputType string) {
			s.publish(context.Background(), event.TopicFormatFallback,
				TranslationFallback{OutputType: outputType})
		}),
	)
	s.codec = format.NewCodec(
		format.WithPreferredLanguage(cfg.PreferredLanguage),
		format.WithDefaultIndent(cfg.DefaultIndent),
		format.WithLogger(s.logger),
		format.WithCellCodec(cells),
	)

	mopts := []kernel.Option{kernel.WithLogger(s.logger)}
	if s.deps != nil {
		mopts = append(mopts, kernel.WithDependencyChecker(s.deps))
	}
	s.matcher = kernel.NewMatcher(mopts...)

	s.reconciler = completion.NewReconciler(
		completion.WithKernelTimeout(cfg.CompletionTimeout()),
		completion.WithStringPathFilter(cfg.StringPathFilter),
		completion.WithLogger(s.logger),
	)

	if s.prefs == nil {
		s.prefs = store.NewMemoryStore(store.WithCapacity(cfg.PreferredKernelCap))
	}
	if s.lister == nil {
		scanner := discovery.NewScanner(
			discovery.WithExtraRoots(cfg.KernelSpecPaths...),
			discovery.WithLogger(s.logger),
		)
		cached := discovery.NewCachedLister(scanner, discovery.WithCacheLogger(s.logger))
		roots := append(discovery.KernelSpecRoots(), cfg.KernelSpecPaths...)
		if err := cached.Watch(roots...); err != nil {
			s.logger.Warn("kernelspec watching unavailable", zap.Error(err))
		}
		s.lister = cached
		s.closers = append(s.closers, cached)
	}

	if err := s.setupSubscriptions(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// Bus returns the event bus for additional subscribers.
func (s *Service) Bus() *event.Bus { return s.bus }

// Queue returns the shared mutation queue.
func (s *Service) Queue() *mutation.Queue { return s.queue }

// Codec returns the notebook codec.
func (s *Service) Codec() *format.Codec { return s.codec }

// Documents returns the open-document registry.
func (s *Service) Documents() *document.Registry { return s.registry }

// Shutdown releases everything the service owns: sessions, subscriptions,
// the mutation queue, discovery watchers, and the preferred-kernel store.
// It is safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session.Session)
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		s.bus.Unsubscribe(sub)
	}

	var firstErr error
	for _, sess := range sessions {
		if err := sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.queue.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.prefs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.bus.Close()
	return firstErr
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) publish(ctx context.Context, topic event.Topic, payload any) {
	if err := s.bus.Publish(ctx, event.NewEnvelope(topic, payload, "app")); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("topic", topic.String()), zap.Error(err))
	}
}
