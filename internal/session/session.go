package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"nbweave/internal/document"
	"nbweave/internal/event"
	"nbweave/internal/format"
	"nbweave/internal/mutation"
)

// StatusChange is the payload published on kernel.status.changed.
type StatusChange struct {
	KernelID    string
	DocumentURI string
	Previous    Status
	Current     Status
}

// Session binds one live document to one kernel connection and applies
// everything the kernel emits through the document's mutation chain.
type Session struct {
	doc   *document.Document
	conn  Connection
	queue *mutation.Queue

	bus    *event.Bus
	codec  *format.CellCodec
	logger *zap.Logger

	docKey    string
	kernelKey string
	displays  *displayTracker

	mu      sync.Mutex
	status  Status
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithBus sets the event bus status changes are published on. Without a
// bus the session keeps status locally and publishes nothing.
func WithBus(bus *event.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the session's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCellCodec sets the codec used to translate inbound output payloads.
// Pass the application's shared codec so fallback counting is global.
func WithCellCodec(codec *format.CellCodec) Option {
	return func(s *Session) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// New binds doc to conn. The session starts consuming the connection's
// status stream immediately; Close releases it.
func New(doc *document.Document, conn Connection, queue *mutation.Queue, opts ...Option) (*Session, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if conn == nil {
		return nil, ErrNilConnection
	}
	if queue == nil {
		return nil, ErrNilQueue
	}

	s := &Session{
		doc:       doc,
		conn:      conn,
		queue:     queue,
		codec:     format.NewCellCodec(),
		logger:    zap.NewNop(),
		docKey:    string(doc.ID()),
		kernelKey: "kernel:" + conn.ID(),
		displays:  newDisplayTracker(),
		status:    StatusUnknown,
		closeCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.pumpStatus()
	return s, nil
}

// Document returns the bound live document.
func (s *Session) Document() *document.Document { return s.doc }

// Connection returns the bound kernel connection.
func (s *Session) Connection() Connection { return s.conn }

// KernelID returns the bound kernel's identity.
func (s *Session) KernelID() string { return s.conn.ID() }

// Status returns the last observed kernel state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Execute runs a code cell on the kernel. Executions, interrupts and
// restarts for one kernel are chained: this call's work starts only after
// previously issued kernel operations settle. The returned ticket settles
// once the kernel's event stream ends and every resulting document
// mutation has been applied.
func (s *Session) Execute(ctx context.Context, cellID string) *mutation.Ticket {
	return s.queue.Schedule(ctx, s.kernelKey, func(opCtx context.Context) error {
		return s.runCell(opCtx, cellID)
	})
}

// runCell drives one execution round-trip. Runs on the kernel chain.
func (s *Session) runCell(ctx context.Context, cellID string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	cell, ok := s.doc.Cell(cellID)
	if !ok {
		return fmt.Errorf("execute cell %s: %w", cellID, document.ErrCellNotFound)
	}
	if cell.Kind != document.CellKindCode {
		return fmt.Errorf("execute cell %s: %w", cellID, ErrNotCodeCell)
	}

	st := &execState{}

	// Prior outputs clear when the run starts, not when each new output
	// trickles in.
	s.scheduleDoc(ctx, func(context.Context) error {
		s.displays.forgetCell(cellID)
		return s.doc.ClearOutputs(cellID)
	})

	events, err := s.conn.Execute(ctx, cell.Text)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}

	var runErr error
	for ev := range events {
		s.applyEvent(ctx, cellID, ev, st)
		if ev.Kind == EventDone && ev.Err != nil {
			runErr = ev.Err
		}
	}

	// The ticket settling must mean "every mutation applied", so wait for
	// the document chain to drain what this run scheduled.
	if err := s.queue.Flush(ctx, s.docKey); err != nil {
		return err
	}
	return runErr
}

// applyEvent schedules the document mutation for one execution event. The
// scheduling order matches the kernel-emission order, and the document
// chain preserves it.
func (s *Session) applyEvent(ctx context.Context, cellID string, ev ExecutionEvent, st *execState) {
	switch ev.Kind {
	case EventExecuteInput:
		count := ev.ExecutionCount
		s.scheduleDoc(ctx, func(context.Context) error {
			return s.doc.SetExecutionOrder(cellID, count)
		})

	case EventOutput:
		out := ev.Output
		s.scheduleDoc(ctx, func(context.Context) error {
			return s.applyOutput(cellID, out, st)
		})

	case EventClearOutput:
		if ev.Wait {
			s.scheduleDoc(ctx, func(context.Context) error {
				st.clearPending = true
				return nil
			})
			return
		}
		s.scheduleDoc(ctx, func(context.Context) error {
			st.clearPending = false
			s.displays.forgetCell(cellID)
			return s.doc.ClearOutputs(cellID)
		})

	case EventStatus:
		s.setStatus(ev.State)

	case EventDone:
		// Settled by runCell.
	}
}

// scheduleDoc puts a mutation on the document's chain. The scheduling
// context is detached: events already emitted by the kernel are facts and
// apply even when the caller stops waiting.
func (s *Session) scheduleDoc(ctx context.Context, op mutation.Op) {
	s.queue.Schedule(context.WithoutCancel(ctx), s.docKey, op)
}

// Interrupt asks the kernel to interrupt the running execution. Not
// cancellable once issued: ctx bounds only how long the caller waits, not
// the request itself.
func (s *Session) Interrupt(ctx context.Context) error {
	t := s.queue.Schedule(context.WithoutCancel(ctx), s.kernelKey, func(opCtx context.Context) error {
		if s.isClosed() {
			return ErrSessionClosed
		}
		s.logger.Info("interrupting kernel", zap.String("kernel", s.conn.ID()))
		return s.conn.Interrupt(opCtx)
	})
	return t.Wait(ctx)
}

// Restart restarts the kernel, dropping its state. Not cancellable once
// issued; a second restart waits behind the first on the kernel chain.
func (s *Session) Restart(ctx context.Context) error {
	t := s.queue.Schedule(context.WithoutCancel(ctx), s.kernelKey, func(opCtx context.Context) error {
		if s.isClosed() {
			return ErrSessionClosed
		}
		s.logger.Info("restarting kernel", zap.String("kernel", s.conn.ID()))
		s.setStatus(StatusRestarting)
		if err := s.conn.Restart(opCtx); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		// Display IDs belonged to the old process; updates for them will
		// never arrive again.
		s.displays.reset()
		return nil
	})
	return t.Wait(ctx)
}

// Shutdown stops the kernel behind in-flight kernel work, then closes the
// session.
func (s *Session) Shutdown(ctx context.Context) error {
	t := s.queue.Schedule(context.WithoutCancel(ctx), s.kernelKey, func(opCtx context.Context) error {
		s.logger.Info("shutting down kernel", zap.String("kernel", s.conn.ID()))
		return s.conn.Shutdown(opCtx)
	})
	err := t.Wait(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close stops the status pump and marks the session unusable. It does not
// touch the kernel; use Shutdown to stop the kernel too. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.queue.Forget(s.kernelKey)
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// pumpStatus forwards the connection's status stream into setStatus until
// the session closes or the stream ends.
func (s *Session) pumpStatus() {
	defer s.wg.Done()
	ch := s.conn.StatusChanges()
	for {
		select {
		case <-s.closeCh:
			return
		case st, ok := <-ch:
			if !ok {
				s.setStatus(StatusDead)
				return
			}
			s.setStatus(st)
		}
	}
}

// setStatus records a state transition and publishes it.
func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	prev := s.status
	s.status = st
	s.mu.Unlock()
	if prev == st {
		return
	}

	s.logger.Debug("kernel status changed",
		zap.String("kernel", s.conn.ID()),
		zap.Stringer("from", prev),
		zap.Stringer("to", st))
	s.publish(event.TopicKernelStatusChanged, StatusChange{
		KernelID:    s.conn.ID(),
		DocumentURI: s.doc.URI(),
		Previous:    prev,
		Current:     st,
	})
}

func (s *Session) publish(topic event.Topic, payload any) {
	if s.bus == nil {
		return
	}
	env := event.NewEnvelope(topic, payload, "session")
	if err := s.bus.Publish(context.Background(), env); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("topic", topic.String()),
			zap.Error(err))
	}
}
