package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"nbweave/internal/document"
)

// Notebook format defaults written when a document has no recorded values.
const (
	DefaultNBFormat      = 4
	DefaultNBFormatMinor = 2
)

// minorWithCellIDs is the first nbformat_minor whose schema has cell ids.
const minorWithCellIDs = 5

// Codec converts whole documents between notebook bytes and the live model.
type Codec struct {
	cells             *CellCodec
	preferredLanguage string
	defaultIndent     string
	logger            *zap.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithPreferredLanguage sets the language assumed for notebooks that do not
// record one. Defaults to "python".
func WithPreferredLanguage(lang string) Option {
	return func(c *Codec) {
		if lang != "" {
			c.preferredLanguage = lang
		}
	}
}

// WithDefaultIndent sets the indentation unit used when none was detected
// at load time. Defaults to a single space.
func WithDefaultIndent(indent string) Option {
	return func(c *Codec) {
		if indent != "" {
			c.defaultIndent = indent
		}
	}
}

// WithLogger sets the codec's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCellCodec substitutes the cell codec, letting the caller own its
// fallback hook.
func WithCellCodec(cells *CellCodec) Option {
	return func(c *Codec) {
		if cells != nil {
			c.cells = cells
		}
	}
}

// NewCodec creates a notebook codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		preferredLanguage: "python",
		defaultIndent:     " ",
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cells == nil {
		c.cells = NewCellCodec(WithCellLogger(c.logger))
	}
	return c
}

// Cells returns the cell codec in use.
func (c *Codec) Cells() *CellCodec { return c.cells }

// Deserialize parses notebook bytes into a live document.
//
// Empty input is a new notebook, not an error. A parsed notebook with zero
// cells gets one empty code cell: the editing surface is never handed an
// empty document. The indentation unit of the raw text is recorded on the
// document so Serialize can reproduce it.
//
// Cell IDs missing from the wire (formats older than 4.5) are generated;
// they identify the live cells but are pruned again on save.
func (c *Codec) Deserialize(uri string, data []byte) (*document.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		doc := document.New(uri,
			document.WithLanguage(c.preferredLanguage),
			document.WithFormatVersion(DefaultNBFormat, DefaultNBFormatMinor),
			document.WithCells([]*document.Cell{document.NewCodeCell("", c.preferredLanguage)}),
		)
		return doc, nil
	}

	preview, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	if preview.NBFormat != 0 && preview.NBFormat < 4 {
		return nil, &FormatError{
			Op:     "deserialize",
			Detail: fmt.Sprintf("nbformat %d", preview.NBFormat),
			Err:    ErrUnsupportedFormat,
		}
	}

	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, &FormatError{Op: "deserialize", Err: err}
	}

	language := preview.Language
	if language == "" {
		language = c.preferredLanguage
	}

	cells := make([]*document.Cell, 0, len(nb.Cells))
	for i, wc := range nb.Cells {
		live, err := c.cells.WireToLive(wc, language)
		if err != nil {
			return nil, &FormatError{Op: "deserialize", Detail: fmt.Sprintf("cell %d", i), Err: err}
		}
		cells = append(cells, live)
	}
	if len(cells) == 0 {
		cells = append(cells, document.NewCodeCell("", language))
	}

	doc := document.New(uri,
		document.WithLanguage(language),
		document.WithFormatVersion(nb.NBFormat, nb.NBFormatMinor),
		document.WithIndent(preview.Indent),
		document.WithMetadata(nb.Metadata),
		document.WithCells(cells),
	)
	c.logger.Debug("deserialized notebook",
		zap.String("uri", uri),
		zap.Int("cells", len(cells)),
		zap.String("language", language))
	return doc, nil
}

// Serialize converts a live document back into notebook bytes: format
// version defaults are substituted where the document recorded none,
// metadata defaults (orig_nbformat, language_info.name) are filled in
// without disturbing recorded values, transient output fields and
// unsupported cell ids are pruned, and the detected indentation is
// reapplied.
func (c *Codec) Serialize(doc *document.Document) ([]byte, error) {
	major, minor := doc.FormatVersion()
	if major == 0 {
		major = DefaultNBFormat
	}
	if minor == 0 {
		minor = DefaultNBFormatMinor
	}

	liveCells := doc.Cells()
	wireCells := make([]WireCell, 0, len(liveCells))
	for i, cell := range liveCells {
		wc, err := c.cells.LiveToWire(cell)
		if err != nil {
			return nil, &FormatError{Op: "serialize", Detail: fmt.Sprintf("cell %d", i), Err: err}
		}
		pruneCell(&wc, minor)
		wireCells = append(wireCells, wc)
	}

	metadata := doc.Metadata()
	if metadata == nil {
		metadata = map[string]any{}
	}

	nb := Notebook{
		Cells:         wireCells,
		Metadata:      metadata,
		NBFormat:      major,
		NBFormatMinor: minor,
	}
	data, err := json.Marshal(nb)
	if err != nil {
		return nil, &FormatError{Op: "serialize", Err: err}
	}

	data, err = c.applyMetadataDefaults(data, doc.Language(), major)
	if err != nil {
		return nil, err
	}

	indent := doc.Indent()
	if indent == "" {
		indent = c.defaultIndent
	}
	data = pretty.PrettyOptions(data, &pretty.Options{Indent: indent, Width: 80})
	return data, nil
}

// pruneCell removes fields that must never persist: per-output transient
// bags, and cell ids on formats whose schema predates them.
func pruneCell(wc *WireCell, minor int) {
	if minor < minorWithCellIDs {
		wc.ID = ""
	}
	for i := range wc.Outputs {
		wc.Outputs[i].Transient = nil
	}
}

// applyMetadataDefaults fills metadata.orig_nbformat and
// metadata.language_info.name when absent, surgically so the rest of the
// serialized bytes stay untouched.
func (c *Codec) applyMetadataDefaults(data []byte, language string, major int) ([]byte, error) {
	var err error
	if !gjson.GetBytes(data, "metadata.orig_nbformat").Exists() {
		data, err = sjson.SetBytes(data, "metadata.orig_nbformat", major)
		if err != nil {
			return nil, &FormatError{Op: "serialize", Detail: "orig_nbformat default", Err: err}
		}
	}
	if !gjson.GetBytes(data, "metadata.language_info.name").Exists() {
		if language == "" {
			language = c.preferredLanguage
		}
		data, err = sjson.SetBytes(data, "metadata.language_info.name", language)
		if err != nil {
			return nil, &FormatError{Op: "serialize", Detail: "language_info default", Err: err}
		}
	}
	return data, nil
}

// FallbackCount reports how many unrecognized output types have passed
// through the cell codec.
func (c *Codec) FallbackCount() int64 { return c.cells.FallbackCount() }
