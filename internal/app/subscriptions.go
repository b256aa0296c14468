package app

import (
	"context"
	"fmt"

	"nbweave/internal/event"
)

// The two subscribers below are deliberately independent even though both
// react to kernel.connection.changed: each can be exercised on its own by
// feeding synthetic envelopes.

func (s *Service) setupSubscriptions() error {
	mirror, err := s.bus.Subscribe(event.TopicKernelConnectionChanged, s.mirrorDocumentLanguage)
	if err != nil {
		return err
	}
	record, err := s.bus.Subscribe(event.TopicKernelConnectionChanged, s.recordPreferredKernel)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, mirror, record)
	return nil
}

// mirrorDocumentLanguage keeps an open document's language and kernelspec
// metadata aligned with the kernel it connected to, so the next save
// persists the choice. The update runs on the document's mutation chain
// like any other mutation.
func (s *Service) mirrorDocumentLanguage(ctx context.Context, env event.Envelope) error {
	change, ok := env.Payload.(ConnectionChange)
	if !ok {
		return nil
	}
	doc, ok := s.registry.Get(change.DocumentURI)
	if !ok {
		return nil
	}

	ticket := s.queue.Schedule(ctx, string(doc.ID()), func(context.Context) error {
		if change.Language != "" && doc.Language() != change.Language {
			doc.SetLanguage(change.Language)

			info := map[string]any{}
			if li, ok := doc.Metadata()["language_info"].(map[string]any); ok {
				info = li
			}
			info["name"] = change.Language
			doc.SetMetadataKey("language_info", info)
		}
		if change.SpecName != "" {
			doc.SetMetadataKey("kernelspec", map[string]any{
				"name":         change.SpecName,
				"display_name": change.DisplayName,
				"language":     change.Language,
			})
		}
		return nil
	})
	return ticket.Wait(ctx)
}

// recordPreferredKernel remembers the connected kernel for the document so
// the next open tries it first.
func (s *Service) recordPreferredKernel(ctx context.Context, env event.Envelope) error {
	change, ok := env.Payload.(ConnectionChange)
	if !ok || change.KernelID == "" {
		return nil
	}
	if err := s.prefs.Record(ctx, change.DocumentURI, change.KernelID); err != nil {
		return fmt.Errorf("recording preferred kernel: %w", err)
	}
	return nil
}
