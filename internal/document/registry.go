package document

import "sync"

// Registry tracks open documents by URI. Lifecycle is explicit: Add on
// open, Remove on close. Nothing is evicted implicitly, so a document
// stays resolvable for as long as the editor holds it open.
type Registry struct {
	mu   sync.RWMutex
	byID map[ID]*Document
	docs map[string]*Document
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[ID]*Document),
		docs: make(map[string]*Document),
	}
}

// Add registers a document under its URI.
func (r *Registry) Add(d *Document) error {
	if d == nil {
		return ErrNilCell
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.URI()]; ok {
		return ErrAlreadyRegistered
	}
	r.docs[d.URI()] = d
	r.byID[d.ID()] = d
	return nil
}

// Get returns the document registered under the given URI.
func (r *Registry) Get(uri string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[uri]
	return d, ok
}

// GetByID returns the document with the given identity.
func (r *Registry) GetByID(id ID) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Remove unregisters the document under the given URI.
func (r *Registry) Remove(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[uri]
	if !ok {
		return ErrNotRegistered
	}
	delete(r.docs, uri)
	delete(r.byID, d.ID())
	return nil
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// URIs returns the registered URIs in no particular order.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uris := make([]string, 0, len(r.docs))
	for uri := range r.docs {
		uris = append(uris, uri)
	}
	return uris
}
