package document

import "github.com/google/uuid"

// CellKind discriminates the three live cell kinds.
type CellKind uint8

const (
	// CellKindCode is an executable cell with outputs.
	CellKindCode CellKind = iota + 1

	// CellKindMarkup is a rendered-text (markdown) cell.
	CellKindMarkup

	// CellKindRaw is a passthrough cell excluded from execution and rendering.
	CellKindRaw
)

// String returns a human-readable kind name.
func (k CellKind) String() string {
	switch k {
	case CellKindCode:
		return "code"
	case CellKindMarkup:
		return "markup"
	case CellKindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Cell is one live cell: a text buffer, a language tag, outputs (code cells
// only), and the round-trip-preserving metadata mirrored from the wire cell.
//
// Cells are owned by exactly one Document; use the Document's mutators
// (through the mutation queue) rather than writing fields directly once a
// cell has been inserted.
type Cell struct {
	// ID is stable for the cell's lifetime. Cells translated from the wire
	// keep their wire ID when present; freshly inserted cells get a UUID.
	ID string

	Kind     CellKind
	Text     string
	Language string

	// Attachments mirrors the wire cell's attachments bag (markdown/raw).
	Attachments map[string]any

	// Metadata mirrors the wire cell's metadata bag.
	Metadata map[string]any

	// Outputs is the ordered output list. Non-nil only for code cells.
	Outputs []Output

	// ExecutionOrder is the cell's tracked execution count; nil when the
	// cell has never run. Serialized as null, never omitted.
	ExecutionOrder *int
}

// NewCodeCell creates a code cell with the given source and language.
func NewCodeCell(text, language string) *Cell {
	return &Cell{
		ID:       uuid.NewString(),
		Kind:     CellKindCode,
		Text:     text,
		Language: language,
		Metadata: make(map[string]any),
		Outputs:  []Output{},
	}
}

// NewMarkupCell creates a markdown cell.
func NewMarkupCell(text string) *Cell {
	return &Cell{
		ID:       uuid.NewString(),
		Kind:     CellKindMarkup,
		Text:     text,
		Language: "markdown",
		Metadata: make(map[string]any),
	}
}

// NewRawCell creates a raw cell.
func NewRawCell(text string) *Cell {
	return &Cell{
		ID:       uuid.NewString(),
		Kind:     CellKindRaw,
		Text:     text,
		Language: "raw",
		Metadata: make(map[string]any),
	}
}

// Clone returns a deep copy of the cell with the same ID.
func (c *Cell) Clone() *Cell {
	outputs := make([]Output, len(c.Outputs))
	for i, o := range c.Outputs {
		outputs[i] = o.Clone()
	}
	var order *int
	if c.ExecutionOrder != nil {
		n := *c.ExecutionOrder
		order = &n
	}
	return &Cell{
		ID:             c.ID,
		Kind:           c.Kind,
		Text:           c.Text,
		Language:       c.Language,
		Attachments:    cloneBag(c.Attachments),
		Metadata:       cloneBag(c.Metadata),
		Outputs:        outputs,
		ExecutionOrder: order,
	}
}
