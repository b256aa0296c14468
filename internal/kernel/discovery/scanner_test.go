package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"nbweave/internal/kernel"
)

func writeSpec(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kernel.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListLocalKernels(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "python3", `{
		"argv": ["python", "-m", "ipykernel_launcher", "-f", "{connection_file}"],
		"display_name": "Python 3",
		"language": "python"
	}`)
	writeSpec(t, root, "ir", `{"argv": ["R", "--slave"], "display_name": "R", "language": "r"}`)
	writeSpec(t, root, "broken", `{not json`)
	writeSpec(t, root, "nolang", `{"argv": ["x"], "display_name": "No Language"}`)

	s := NewScanner(WithRoots(root))
	pool, err := s.ListLocalKernels(context.Background())
	if err != nil {
		t.Fatalf("ListLocalKernels: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("pool = %d candidates, want 2 (broken and language-less skipped)", len(pool))
	}

	// Sorted by display name.
	py, ok := pool[0].(kernel.KernelSpecConnection)
	if !ok || py.Spec.Name != "python3" {
		t.Errorf("pool[0] = %v", pool[0])
	}
	if py.Spec.DisplayName != "Python 3" || py.Spec.Language != "python" {
		t.Errorf("spec = %+v", py.Spec)
	}
	if len(py.Spec.Argv) != 5 {
		t.Errorf("argv = %v", py.Spec.Argv)
	}
	if pool[1].DisplayName() != "R" {
		t.Errorf("pool[1] = %q", pool[1].DisplayName())
	}
}

func TestListLocalKernelsDirNameWins(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "actual", `{"argv": ["x"], "name": "liar", "display_name": "X", "language": "python"}`)

	s := NewScanner(WithRoots(root))
	pool, err := s.ListLocalKernels(context.Background())
	if err != nil {
		t.Fatalf("ListLocalKernels: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("pool = %d", len(pool))
	}
	if got := pool[0].(kernel.KernelSpecConnection).Spec.Name; got != "actual" {
		t.Errorf("name = %q, want directory name", got)
	}
}

func TestListLocalKernelsShadowing(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeSpec(t, first, "python3", `{"argv": ["a"], "display_name": "First", "language": "python"}`)
	writeSpec(t, second, "python3", `{"argv": ["b"], "display_name": "Second", "language": "python"}`)

	s := NewScanner(WithRoots(first, second))
	pool, err := s.ListLocalKernels(context.Background())
	if err != nil {
		t.Fatalf("ListLocalKernels: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("pool = %d, want earlier root to shadow", len(pool))
	}
	if pool[0].DisplayName() != "First" {
		t.Errorf("display = %q, want First", pool[0].DisplayName())
	}
}

func TestListLocalKernelsEmbeddedInterpreter(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "venv-kernel", `{
		"argv": ["/opt/venv/bin/python", "-m", "ipykernel_launcher"],
		"display_name": "Venv",
		"language": "python",
		"metadata": {"interpreter": {"path": "/opt/venv/bin/python", "envName": "venv"}}
	}`)

	s := NewScanner(WithRoots(root))
	pool, err := s.ListLocalKernels(context.Background())
	if err != nil {
		t.Fatalf("ListLocalKernels: %v", err)
	}
	conn := pool[0].(kernel.KernelSpecConnection)
	if conn.Interpreter == nil {
		t.Fatal("embedded interpreter not extracted")
	}
	if conn.Interpreter.Path != "/opt/venv/bin/python" || conn.Interpreter.EnvName != "venv" {
		t.Errorf("interpreter = %+v", conn.Interpreter)
	}
}

func TestListLocalKernelsMissingRoot(t *testing.T) {
	s := NewScanner(WithRoots(filepath.Join(t.TempDir(), "does-not-exist")))
	pool, err := s.ListLocalKernels(context.Background())
	if err != nil {
		t.Fatalf("missing root should not error: %v", err)
	}
	if len(pool) != 0 {
		t.Errorf("pool = %d", len(pool))
	}
}

func TestListLocalKernelsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(WithRoots(t.TempDir()))
	if _, err := s.ListLocalKernels(ctx); err == nil {
		t.Error("canceled context should error")
	}
}
