package document

import (
	"sync"

	"github.com/google/uuid"
)

// ID uniquely identifies a live document for the lifetime of the process.
type ID string

// Document is the live notebook: an ordered cell list plus the
// document-level fields needed to reproduce the wire form on save
// (format version, indentation, notebook metadata, language).
//
// Every method takes the document lock. Cross-mutation ordering is provided
// by scheduling mutators through a mutation.Queue keyed by the document ID;
// see the package comment.
type Document struct {
	mu sync.RWMutex

	id  ID
	uri string

	language      string
	nbFormat      int
	nbFormatMinor int
	indent        string
	metadata      map[string]any

	cells   []*Cell
	version int64
}

// Option configures a new document.
type Option func(*Document)

// WithLanguage sets the document's preferred language.
func WithLanguage(lang string) Option {
	return func(d *Document) { d.language = lang }
}

// WithFormatVersion sets the persisted nbformat major/minor version.
func WithFormatVersion(major, minor int) Option {
	return func(d *Document) {
		d.nbFormat = major
		d.nbFormatMinor = minor
	}
}

// WithIndent sets the indentation unit detected at load time.
func WithIndent(indent string) Option {
	return func(d *Document) { d.indent = indent }
}

// WithMetadata sets the notebook-level metadata bag.
func WithMetadata(metadata map[string]any) Option {
	return func(d *Document) { d.metadata = metadata }
}

// WithCells sets the initial cell list. The document takes ownership.
func WithCells(cells []*Cell) Option {
	return func(d *Document) { d.cells = cells }
}

// New creates a live document for the given URI.
func New(uri string, opts ...Option) *Document {
	d := &Document{
		id:       ID(uuid.NewString()),
		uri:      uri,
		metadata: make(map[string]any),
		cells:    []*Cell{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cells == nil {
		d.cells = []*Cell{}
	}
	if d.metadata == nil {
		d.metadata = make(map[string]any)
	}
	return d
}

// ID returns the document's stable identity.
func (d *Document) ID() ID { return d.id }

// URI returns the document's URI.
func (d *Document) URI() string { return d.uri }

// Version returns a counter incremented on every committed mutation.
func (d *Document) Version() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Language returns the document's language.
func (d *Document) Language() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.language
}

// FormatVersion returns the persisted nbformat major and minor versions.
// Zero values mean "not recorded"; the serializer substitutes defaults.
func (d *Document) FormatVersion() (major, minor int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nbFormat, d.nbFormatMinor
}

// Indent returns the indentation unit detected at load time ("" if unknown).
func (d *Document) Indent() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.indent
}

// Metadata returns a deep copy of the notebook-level metadata bag.
func (d *Document) Metadata() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneBag(d.metadata)
}

// SetLanguage sets the document language and mirrors it onto every code
// cell, matching the behavior expected when the active kernel changes.
func (d *Document) SetLanguage(lang string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.language = lang
	for _, c := range d.cells {
		if c.Kind == CellKindCode {
			c.Language = lang
		}
	}
	d.version++
}

// CellCount returns the number of cells.
func (d *Document) CellCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cells)
}

// Cells returns a snapshot of the cell list. The returned slice is owned by
// the caller; the cells themselves are shared, so treat them as read-only
// outside queue-scheduled mutations.
func (d *Document) Cells() []*Cell {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Cell, len(d.cells))
	copy(out, d.cells)
	return out
}

// Cell returns the cell with the given ID.
func (d *Document) Cell(cellID string) (*Cell, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, c := d.findLocked(cellID)
	return c, c != nil
}

// CellAt returns the cell at the given index.
func (d *Document) CellAt(index int) (*Cell, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.cells) {
		return nil, false
	}
	return d.cells[index], true
}

// CellIndex returns the position of the cell with the given ID, or -1.
func (d *Document) CellIndex(cellID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, _ := d.findLocked(cellID)
	return i
}

// InsertCellAt inserts a cell at the given index (len(cells) appends).
func (d *Document) InsertCellAt(index int, c *Cell) error {
	if c == nil {
		return ErrNilCell
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index > len(d.cells) {
		return ErrIndexOutOfRange
	}
	d.cells = append(d.cells, nil)
	copy(d.cells[index+1:], d.cells[index:])
	d.cells[index] = c
	d.version++
	return nil
}

// AppendCell appends a cell to the end of the document.
func (d *Document) AppendCell(c *Cell) error {
	return d.InsertCellAt(d.CellCount(), c)
}

// RemoveCell removes the cell with the given ID.
func (d *Document) RemoveCell(cellID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, _ := d.findLocked(cellID)
	if i < 0 {
		return ErrCellNotFound
	}
	d.cells = append(d.cells[:i], d.cells[i+1:]...)
	d.version++
	return nil
}

// SetCellText replaces a cell's text buffer.
func (d *Document) SetCellText(cellID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return ErrCellNotFound
	}
	c.Text = text
	d.version++
	return nil
}

// SetExecutionOrder sets a cell's execution count (nil clears it).
func (d *Document) SetExecutionOrder(cellID string, order *int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return ErrCellNotFound
	}
	if order == nil {
		c.ExecutionOrder = nil
	} else {
		n := *order
		c.ExecutionOrder = &n
	}
	d.version++
	return nil
}

// SetMetadataKey sets one key in the notebook-level metadata bag.
func (d *Document) SetMetadataKey(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metadata[key] = value
	d.version++
}

// SetCellMetadataKey sets one key in a cell's metadata bag.
func (d *Document) SetCellMetadataKey(cellID, key string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return ErrCellNotFound
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	d.version++
	return nil
}

// ClearOutputs removes all outputs from a cell.
func (d *Document) ClearOutputs(cellID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return ErrCellNotFound
	}
	c.Outputs = []Output{}
	d.version++
	return nil
}

// AppendOutput appends an output to a cell and returns its index.
func (d *Document) AppendOutput(cellID string, out Output) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return -1, ErrCellNotFound
	}
	c.Outputs = append(c.Outputs, out)
	d.version++
	return len(c.Outputs) - 1, nil
}

// ReplaceOutputAt replaces the output at the given index in a cell.
func (d *Document) ReplaceOutputAt(cellID string, index int, out Output) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, c := d.findLocked(cellID)
	if c == nil {
		return ErrCellNotFound
	}
	if index < 0 || index >= len(c.Outputs) {
		return ErrOutputIndexOutOfRange
	}
	c.Outputs[index] = out
	d.version++
	return nil
}

// LastOutput returns the final output of a cell and its index.
func (d *Document) LastOutput(cellID string) (Output, int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, c := d.findLocked(cellID)
	if c == nil || len(c.Outputs) == 0 {
		return Output{}, -1, false
	}
	return c.Outputs[len(c.Outputs)-1], len(c.Outputs) - 1, true
}

// findLocked returns the index and pointer for a cell ID; (-1, nil) if absent.
// Callers must hold at least the read lock.
func (d *Document) findLocked(cellID string) (int, *Cell) {
	for i, c := range d.cells {
		if c.ID == cellID {
			return i, c
		}
	}
	return -1, nil
}
