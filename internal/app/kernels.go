package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nbweave/internal/completion"
	"nbweave/internal/event"
	"nbweave/internal/kernel"
	"nbweave/internal/mutation"
	"nbweave/internal/session"
)

// ConnectionChange is the payload carried by kernel.connection.changed.
type ConnectionChange struct {
	DocumentURI string
	KernelID    string
	SpecName    string
	DisplayName string
	Language    string
}

// Connect resolves the best kernel for an open notebook and attaches a
// session: preferred-kernel lookup feeds the matcher as a hint, the
// matcher ranks the discovered pool, and the transport connector starts
// the winner. Connecting twice returns the existing session.
func (s *Service) Connect(ctx context.Context, uri string) (*session.Session, error) {
	if s.isClosed() {
		return nil, ErrServiceClosed
	}
	doc, ok := s.registry.Get(uri)
	if !ok {
		return nil, ErrDocumentNotOpen
	}

	s.mu.Lock()
	if sess, ok := s.sessions[uri]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	hint := kernel.HintFromMetadata(doc.Metadata())
	if hint.Language == "" {
		hint.Language = doc.Language()
	}
	if preferred, err := s.prefs.Lookup(ctx, uri); err != nil {
		s.logger.Warn("preferred kernel lookup failed",
			zap.String("uri", uri), zap.Error(err))
	} else {
		hint.PreferredID = preferred
	}

	pool, err := s.lister.ListLocalKernels(ctx)
	if err != nil {
		// A failed scan only shrinks the pool; the interpreter fallback
		// may still connect.
		s.logger.Warn("kernel discovery failed", zap.Error(err))
	}

	var fallback *kernel.Interpreter
	if s.resolver != nil {
		fallback, err = s.resolver.ActiveInterpreter(ctx)
		if err != nil {
			s.logger.Warn("active interpreter unavailable", zap.Error(err))
			fallback = nil
		}
	}

	match, err := s.matcher.Find(ctx, hint, pool, fallback)
	if err != nil {
		return nil, err
	}
	switch match.Outcome {
	case kernel.OutcomeNotFound:
		return nil, ErrNoMatchingKernel
	case kernel.OutcomeDependencyMissing:
		derr := &DependencyMissingError{}
		if pic, ok := match.Connection.(kernel.PythonInterpreterConnection); ok {
			derr.Interpreter = pic.Interpreter
		}
		return nil, derr
	}

	if s.connector == nil {
		return nil, ErrNoConnector
	}
	conn, err := s.connector.Connect(ctx, match.Connection)
	if err != nil {
		return nil, fmt.Errorf("connecting to kernel %s: %w", match.Connection.ID(), err)
	}

	sess, err := session.New(doc, conn, s.queue,
		session.WithBus(s.bus),
		session.WithLogger(s.logger),
		session.WithCellCodec(s.codec.Cells()),
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.Close()
		return nil, ErrServiceClosed
	}
	if existing, ok := s.sessions[uri]; ok {
		s.mu.Unlock()
		sess.Close()
		return existing, nil
	}
	s.sessions[uri] = sess
	s.mu.Unlock()

	s.logger.Info("kernel connected",
		zap.String("uri", uri),
		zap.String("kernel", match.Connection.ID()),
		zap.String("tier", match.Tier.String()))
	s.publish(ctx, event.TopicKernelConnectionChanged, connectionChange(uri, match.Connection))
	return sess, nil
}

// connectionChange flattens connection metadata into the event payload.
// Every connection kind is handled so new variants cannot slip through
// silently.
func connectionChange(uri string, meta kernel.ConnectionMetadata) ConnectionChange {
	change := ConnectionChange{
		DocumentURI: uri,
		KernelID:    meta.ID(),
		DisplayName: meta.DisplayName(),
		Language:    meta.Language(),
	}
	switch c := meta.(type) {
	case kernel.KernelSpecConnection:
		change.SpecName = c.Spec.Name
	case kernel.DefaultKernelConnection:
		change.SpecName = c.Spec.Name
	case kernel.LiveKernelConnection:
		change.SpecName = c.Model.Name
	case kernel.PythonInterpreterConnection:
		// Interpreter-backed kernels carry no kernelspec to record.
	}
	return change
}

// Session returns the session attached to the document, if any.
func (s *Service) Session(uri string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[uri]
	return sess, ok
}

// Disconnect detaches and closes the document's session without shutting
// down the kernel.
func (s *Service) Disconnect(uri string) error {
	s.mu.Lock()
	sess := s.sessions[uri]
	delete(s.sessions, uri)
	s.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}
	return sess.Close()
}

// Execute runs a code cell on the document's kernel. The returned ticket
// settles once every resulting output has been applied to the document.
func (s *Service) Execute(ctx context.Context, uri, cellID string) (*mutation.Ticket, error) {
	sess, ok := s.Session(uri)
	if !ok {
		return nil, ErrNoSession
	}
	return sess.Execute(ctx, cellID), nil
}

// Interrupt forwards an interrupt to the document's kernel.
func (s *Service) Interrupt(ctx context.Context, uri string) error {
	sess, ok := s.Session(uri)
	if !ok {
		return ErrNoSession
	}
	return sess.Interrupt(ctx)
}

// Restart restarts the document's kernel.
func (s *Service) Restart(ctx context.Context, uri string) error {
	sess, ok := s.Session(uri)
	if !ok {
		return ErrNoSession
	}
	return sess.Restart(ctx)
}

// Complete merges kernel and static candidates for a cursor position in an
// open notebook. Without a session only the static provider contributes.
func (s *Service) Complete(ctx context.Context, uri string, req completion.Request) (completion.Result, error) {
	empty := completion.Result{Items: []completion.Item{}}
	if s.isClosed() {
		return empty, ErrServiceClosed
	}
	if _, ok := s.registry.Get(uri); !ok {
		return empty, ErrDocumentNotOpen
	}

	var kc completion.KernelCompleter
	if sess, ok := s.Session(uri); ok {
		kc = sess.Completer()
	}
	return s.reconciler.Reconcile(ctx, kc, s.static, req), nil
}
