package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nbweave/internal/document"
	"nbweave/internal/event"
)

// DocumentEvent is the payload carried by document lifecycle topics.
type DocumentEvent struct {
	URI string
}

// TranslationFallback is the payload carried by format.translation.fallback
// whenever an unrecognized output type passes through the codec.
type TranslationFallback struct {
	OutputType string
}

// Open reads a notebook from storage, translates it into a live document,
// and registers it.
func (s *Service) Open(ctx context.Context, uri string) (*document.Document, error) {
	if s.isClosed() {
		return nil, ErrServiceClosed
	}

	data, err := s.storage.ReadFile(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	doc, err := s.codec.Deserialize(uri, data)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Add(doc); err != nil {
		return nil, fmt.Errorf("registering %s: %w", uri, err)
	}

	s.logger.Info("notebook opened",
		zap.String("uri", uri), zap.Int("cells", doc.CellCount()))
	s.publish(ctx, event.TopicDocumentOpened, DocumentEvent{URI: uri})
	return doc, nil
}

// Document returns the open document registered under the URI.
func (s *Service) Document(uri string) (*document.Document, bool) {
	return s.registry.Get(uri)
}

// Save serializes the document and hands the bytes to storage. The write
// runs on the document's mutation chain, so it observes every mutation
// scheduled before it.
func (s *Service) Save(ctx context.Context, uri string) error {
	if s.isClosed() {
		return ErrServiceClosed
	}
	doc, ok := s.registry.Get(uri)
	if !ok {
		return ErrDocumentNotOpen
	}

	ticket := s.queue.Schedule(ctx, string(doc.ID()), func(ctx context.Context) error {
		data, err := s.codec.Serialize(doc)
		if err != nil {
			return err
		}
		return s.storage.WriteFile(ctx, uri, data)
	})
	if err := ticket.Wait(ctx); err != nil {
		return fmt.Errorf("saving %s: %w", uri, err)
	}

	s.publish(ctx, event.TopicDocumentSaved, DocumentEvent{URI: uri})
	return nil
}

// Close releases a document: the attached session is closed (the kernel
// process itself is left to the transport), pending mutations drain, and
// the registry entry is removed. Teardown is explicit so nothing lingers
// waiting for a collector.
func (s *Service) Close(ctx context.Context, uri string) error {
	if s.isClosed() {
		return ErrServiceClosed
	}
	doc, ok := s.registry.Get(uri)
	if !ok {
		return ErrDocumentNotOpen
	}

	s.mu.Lock()
	sess := s.sessions[uri]
	delete(s.sessions, uri)
	s.mu.Unlock()
	if sess != nil {
		if err := sess.Close(); err != nil {
			s.logger.Warn("session close failed",
				zap.String("uri", uri), zap.Error(err))
		}
	}

	flushErr := s.queue.Flush(ctx, string(doc.ID()))
	s.queue.Forget(string(doc.ID()))
	if err := s.registry.Remove(uri); err != nil {
		return err
	}

	s.publish(ctx, event.TopicDocumentClosed, DocumentEvent{URI: uri})
	return flushErr
}
