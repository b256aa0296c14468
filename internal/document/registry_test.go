package document

import (
	"errors"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	d := New("file:///a.ipynb")

	if err := r.Add(d); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(d); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Add = %v, want ErrAlreadyRegistered", err)
	}

	got, ok := r.Get("file:///a.ipynb")
	if !ok || got != d {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	byID, ok := r.GetByID(d.ID())
	if !ok || byID != d {
		t.Fatalf("GetByID returned %v, %v", byID, ok)
	}

	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if uris := r.URIs(); len(uris) != 1 || uris[0] != "file:///a.ipynb" {
		t.Errorf("URIs = %v", uris)
	}

	if err := r.Remove("file:///a.ipynb"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := r.Get("file:///a.ipynb"); ok {
		t.Error("document resolvable after Remove")
	}
	if _, ok := r.GetByID(d.ID()); ok {
		t.Error("document resolvable by ID after Remove")
	}
	if err := r.Remove("file:///a.ipynb"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second Remove = %v, want ErrNotRegistered", err)
	}
}

func TestRegistryIndependentDocuments(t *testing.T) {
	r := NewRegistry()
	a := New("file:///a.ipynb")
	b := New("file:///b.ipynb")

	if err := r.Add(a); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}

	if err := r.Remove(a.URI()); err != nil {
		t.Fatalf("Remove a: %v", err)
	}
	if _, ok := r.Get(b.URI()); !ok {
		t.Error("removing one document dropped another")
	}
}
