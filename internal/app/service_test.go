package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"nbweave/internal/completion"
	"nbweave/internal/config"
	"nbweave/internal/kernel"
	"nbweave/internal/kernel/discovery"
	"nbweave/internal/session"
	"nbweave/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testURI = "file:///home/x/nb.ipynb"

const sampleNotebook = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": ["print(1)"]
  }
 ],
 "metadata": {
  "kernelspec": {"display_name": "Python 3", "language": "python", "name": "py3"},
  "language_info": {"name": "python"}
 },
 "nbformat": 4,
 "nbformat_minor": 5
}`

type fakeStorage struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr error
	writes   int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (f *fakeStorage) ReadFile(_ context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[uri]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStorage) WriteFile(_ context.Context, uri string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.files[uri] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) read(uri string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[uri]
}

type fakeLister struct {
	pool []kernel.ConnectionMetadata
	err  error
}

func (f *fakeLister) ListLocalKernels(context.Context) ([]kernel.ConnectionMetadata, error) {
	return f.pool, f.err
}

func (f *fakeLister) ListRemoteKernels(context.Context, discovery.ServerClient) ([]kernel.ConnectionMetadata, error) {
	return nil, nil
}

// fakeConn is a scriptable kernel transport. The status channel stays
// open so the session sees a live kernel until it closes.
type fakeConn struct {
	id       string
	statusCh chan session.Status

	mu          sync.Mutex
	script      []session.ExecutionEvent
	completeRaw []byte
	completeErr error
	interrupts  int
	restarts    int
	shutdowns   int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, statusCh: make(chan session.Status, 8)}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Execute(context.Context, string) (<-chan session.ExecutionEvent, error) {
	f.mu.Lock()
	script := f.script
	f.mu.Unlock()

	ch := make(chan session.ExecutionEvent, len(script)+1)
	for _, ev := range script {
		ch <- ev
	}
	ch <- session.ExecutionEvent{Kind: session.EventDone}
	close(ch)
	return ch, nil
}

func (f *fakeConn) Complete(context.Context, string, int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeRaw, f.completeErr
}

func (f *fakeConn) Interrupt(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeConn) Restart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return nil
}

func (f *fakeConn) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeConn) StatusChanges() <-chan session.Status { return f.statusCh }

func (f *fakeConn) counts() (interrupts, restarts, shutdowns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupts, f.restarts, f.shutdowns
}

func (f *fakeConn) setScript(script []session.ExecutionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = script
}

func (f *fakeConn) setCompleteRaw(raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeRaw = raw
}

type fakeConnector struct {
	mu    sync.Mutex
	err   error
	calls int
	conns []*fakeConn
}

func (f *fakeConnector) Connect(_ context.Context, meta kernel.ConnectionMetadata) (session.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn(meta.ID())
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func (f *fakeConnector) connectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	interp *kernel.Interpreter
	err    error
}

func (f fakeResolver) ActiveInterpreter(context.Context) (*kernel.Interpreter, error) {
	return f.interp, f.err
}

type fakeDeps struct {
	has bool
	err error
}

func (f fakeDeps) HasKernelPackage(context.Context, kernel.Interpreter) (bool, error) {
	return f.has, f.err
}

type fakeStatic struct {
	items []completion.Item
}

func (f fakeStatic) Complete(context.Context, completion.Request) ([]completion.Item, error) {
	return f.items, nil
}

func specPool() []kernel.ConnectionMetadata {
	return []kernel.ConnectionMetadata{
		kernel.KernelSpecConnection{Spec: kernel.KernelSpec{Name: "py2", DisplayName: "Python 2", Language: "python"}},
		kernel.KernelSpecConnection{Spec: kernel.KernelSpec{Name: "py3", DisplayName: "Python 3", Language: "python"}},
	}
}

type testEnv struct {
	svc       *Service
	storage   *fakeStorage
	connector *fakeConnector
	prefs     *store.MemoryStore
}

func newTestService(t *testing.T, opts ...Option) testEnv {
	t.Helper()

	st := newFakeStorage()
	st.files[testURI] = []byte(sampleNotebook)
	connector := &fakeConnector{}
	prefs := store.NewMemoryStore()

	base := []Option{
		WithStorage(st),
		WithConnector(connector),
		WithPreferredKernelStore(prefs),
		WithLister(&fakeLister{pool: specPool()}),
	}
	svc, err := New(config.Default(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return testEnv{svc: svc, storage: st, connector: connector, prefs: prefs}
}

func openTestDocument(t *testing.T, env testEnv) {
	t.Helper()
	if _, err := env.svc.Open(context.Background(), testURI); err != nil {
		t.Fatalf("Open: %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CompletionTimeoutMS = 0

	_, err := New(cfg)
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("New error = %v, want ValidationError", err)
	}
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	svc, err := New(nil,
		WithStorage(newFakeStorage()),
		WithLister(&fakeLister{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := svc.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}()

	if got := svc.Config().PreferredLanguage; got != "python" {
		t.Errorf("PreferredLanguage = %q, want python", got)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	env := newTestService(t)
	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestShutdownRejectsOperations(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)
	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	ctx := context.Background()
	if _, err := env.svc.Open(ctx, testURI); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Open after shutdown = %v, want ErrServiceClosed", err)
	}
	if err := env.svc.Save(ctx, testURI); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Save after shutdown = %v, want ErrServiceClosed", err)
	}
	if _, err := env.svc.Connect(ctx, testURI); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Connect after shutdown = %v, want ErrServiceClosed", err)
	}
	if _, err := env.svc.Complete(ctx, testURI, completion.Request{}); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Complete after shutdown = %v, want ErrServiceClosed", err)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	env := newTestService(t)
	openTestDocument(t, env)
	if _, err := env.svc.Connect(context.Background(), testURI); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, ok := env.svc.Session(testURI); ok {
		t.Errorf("Session still registered after shutdown")
	}
}
