package event

import (
	"context"
	"errors"
	"testing"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		if _, err := b.Subscribe("document.saved", func(context.Context, Envelope) error {
			order = append(order, name)
			return nil
		}); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if err := b.Publish(ctx, NewEnvelope(TopicDocumentSaved, nil, "test")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("delivered %d handlers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	var topics []Topic
	if _, err := b.Subscribe("kernel.**", func(_ context.Context, env Envelope) error {
		topics = append(topics, env.Topic)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for _, topic := range []Topic{TopicKernelStatusChanged, TopicKernelConnectionChanged, TopicDocumentSaved} {
		if err := b.Publish(ctx, NewEnvelope(topic, nil, "test")); err != nil {
			t.Fatalf("Publish(%s): %v", topic, err)
		}
	}

	if len(topics) != 2 {
		t.Fatalf("received %d events, want 2: %v", len(topics), topics)
	}
}

func TestPanicIsolation(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	delivered := false
	if _, err := b.Subscribe("document.saved", func(context.Context, Envelope) error {
		panic("handler exploded")
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := b.Subscribe("document.saved", func(context.Context, Envelope) error {
		delivered = true
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(ctx, NewEnvelope(TopicDocumentSaved, nil, "test")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !delivered {
		t.Error("panicking handler blocked later handlers")
	}
	if got := b.Stats().HandlerPanics; got != 1 {
		t.Errorf("HandlerPanics = %d, want 1", got)
	}
}

func TestHandlerErrorCounted(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	if _, err := b.Subscribe("document.saved", func(context.Context, Envelope) error {
		return errors.New("handler failed")
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := b.Publish(ctx, NewEnvelope(TopicDocumentSaved, nil, "test")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	stats := b.Stats()
	if stats.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", stats.HandlerErrors)
	}
	if stats.Delivered != 0 {
		t.Errorf("Delivered = %d, want 0", stats.Delivered)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	count := 0
	sub, err := b.Subscribe("document.*", func(context.Context, Envelope) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(ctx, NewEnvelope(TopicDocumentOpened, nil, "test")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	sub.Cancel()
	if err := b.Publish(ctx, NewEnvelope(TopicDocumentClosed, nil, "test")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := NewBus()

	if _, err := b.Subscribe("document.saved", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler = %v, want ErrNilHandler", err)
	}
	if _, err := b.Subscribe("", func(context.Context, Envelope) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty pattern = %v, want ErrInvalidTopic", err)
	}
}

func TestCloseRejectsPublish(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	sub, err := b.Subscribe("document.saved", func(context.Context, Envelope) error { return nil })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	b.Close()

	if sub.IsActive() {
		t.Error("Close left subscription active")
	}
	if err := b.Publish(ctx, NewEnvelope(TopicDocumentSaved, nil, "test")); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish after Close = %v, want ErrBusClosed", err)
	}
	if _, err := b.Subscribe("document.saved", func(context.Context, Envelope) error { return nil }); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Subscribe after Close = %v, want ErrBusClosed", err)
	}
}
