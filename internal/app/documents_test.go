package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"nbweave/internal/document"
	"nbweave/internal/event"
)

func TestOpenDeserializesNotebook(t *testing.T) {
	env := newTestService(t)

	var opened []string
	_, err := env.svc.Bus().Subscribe(event.TopicDocumentOpened, func(_ context.Context, e event.Envelope) error {
		if ev, ok := e.Payload.(DocumentEvent); ok {
			opened = append(opened, ev.URI)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	doc, err := env.svc.Open(context.Background(), testURI)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.URI() != testURI {
		t.Errorf("URI = %q, want %q", doc.URI(), testURI)
	}
	if doc.Language() != "python" {
		t.Errorf("Language = %q, want python", doc.Language())
	}
	if got := doc.CellCount(); got != 1 {
		t.Errorf("CellCount = %d, want 1", got)
	}
	if got, ok := env.svc.Document(testURI); !ok || got != doc {
		t.Errorf("Document(%q) = %v, %v; want the opened document", testURI, got, ok)
	}
	if len(opened) != 1 || opened[0] != testURI {
		t.Errorf("opened events = %v, want [%s]", opened, testURI)
	}
}

func TestOpenPublishesTranslationFallback(t *testing.T) {
	env := newTestService(t)
	env.storage.files["file:///odd.ipynb"] = []byte(`{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [
    {"output_type": "widget_snapshot", "data": {"text/plain": ["x"]}, "metadata": {}}
   ],
   "source": ["x"]
  }
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`)

	var types []string
	_, err := env.svc.Bus().Subscribe(event.TopicFormatFallback, func(_ context.Context, e event.Envelope) error {
		if ev, ok := e.Payload.(TranslationFallback); ok {
			types = append(types, ev.OutputType)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := env.svc.Open(context.Background(), "file:///odd.ipynb"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(types) != 1 || types[0] != "widget_snapshot" {
		t.Errorf("fallback events = %v, want [widget_snapshot]", types)
	}
}

func TestOpenMissingFile(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.Open(context.Background(), "file:///nope.ipynb")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestOpenMalformedNotebook(t *testing.T) {
	env := newTestService(t)
	env.storage.files["file:///bad.ipynb"] = []byte("{not json")

	if _, err := env.svc.Open(context.Background(), "file:///bad.ipynb"); err == nil {
		t.Fatal("Open accepted malformed notebook")
	}
}

func TestOpenTwiceFails(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)

	_, err := env.svc.Open(context.Background(), testURI)
	if !errors.Is(err, document.ErrAlreadyRegistered) {
		t.Fatalf("second Open = %v, want ErrAlreadyRegistered", err)
	}
}

func TestSaveWritesThroughStorage(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)

	if err := env.svc.Save(context.Background(), testURI); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data := env.storage.read(testURI)
	if len(data) == 0 {
		t.Fatal("storage holds no bytes after Save")
	}
	root := gjson.ParseBytes(data)
	if got := root.Get("nbformat").Int(); got != 4 {
		t.Errorf("nbformat = %d, want 4", got)
	}
	if got := root.Get("metadata.kernelspec.name").String(); got != "py3" {
		t.Errorf("kernelspec.name = %q, want py3", got)
	}
}

func TestSaveObservesQueuedMutations(t *testing.T) {
	env := newTestService(t)
	doc, err := env.svc.Open(context.Background(), testURI)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cellID := doc.Cells()[0].ID

	// A slow edit scheduled before Save must be visible in the saved
	// bytes: both run on the document's mutation chain.
	env.svc.Queue().Schedule(context.Background(), string(doc.ID()), func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return doc.SetCellText(cellID, "print(2)")
	})

	if err := env.svc.Save(context.Background(), testURI); err != nil {
		t.Fatalf("Save: %v", err)
	}

	src := gjson.GetBytes(env.storage.read(testURI), "cells.0.source")
	lines := src.Array()
	if len(lines) != 1 || lines[0].String() != "print(2)" {
		t.Errorf("saved source = %s, want the queued edit applied", src.Raw)
	}
}

func TestSaveUnopenedDocument(t *testing.T) {
	env := newTestService(t)

	if err := env.svc.Save(context.Background(), testURI); !errors.Is(err, ErrDocumentNotOpen) {
		t.Fatalf("Save = %v, want ErrDocumentNotOpen", err)
	}
}

func TestSaveSurfacesWriteError(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)
	boom := errors.New("disk full")
	env.storage.mu.Lock()
	env.storage.writeErr = boom
	env.storage.mu.Unlock()

	if err := env.svc.Save(context.Background(), testURI); !errors.Is(err, boom) {
		t.Fatalf("Save = %v, want wrapped write error", err)
	}
}

func TestCloseReleasesDocument(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)

	var closed []string
	_, err := env.svc.Bus().Subscribe(event.TopicDocumentClosed, func(_ context.Context, e event.Envelope) error {
		if ev, ok := e.Payload.(DocumentEvent); ok {
			closed = append(closed, ev.URI)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := env.svc.Close(context.Background(), testURI); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := env.svc.Document(testURI); ok {
		t.Error("document still registered after Close")
	}
	if len(closed) != 1 || closed[0] != testURI {
		t.Errorf("closed events = %v, want [%s]", closed, testURI)
	}
	if err := env.svc.Close(context.Background(), testURI); !errors.Is(err, ErrDocumentNotOpen) {
		t.Errorf("second Close = %v, want ErrDocumentNotOpen", err)
	}
}

func TestCloseDetachesSession(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)
	if _, err := env.svc.Connect(context.Background(), testURI); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := env.svc.Close(context.Background(), testURI); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := env.svc.Session(testURI); ok {
		t.Error("session still attached after document Close")
	}
}
