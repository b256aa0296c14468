package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire cell types defined by nbformat >= 4.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Wire output types defined by the Jupyter messaging spec.
const (
	OutputTypeStream            = "stream"
	OutputTypeDisplayData       = "display_data"
	OutputTypeExecuteResult     = "execute_result"
	OutputTypeUpdateDisplayData = "update_display_data"
	OutputTypeError             = "error"
)

// Stream names carried by stream outputs.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// MultilineText is the nbformat string-or-array-of-strings shape. Notebook
// files store source and stream text as arrays of lines with retained
// newlines; kernels and older files send plain strings. The Go value is
// always the joined single string; marshaling splits it back into lines.
type MultilineText string

// String returns the joined text.
func (m MultilineText) String() string { return string(m) }

// Lines splits the text into nbformat lines: every line keeps its trailing
// newline except the last, which keeps whatever the text ends with.
func (m MultilineText) Lines() []string {
	s := string(m)
	if s == "" {
		return []string{}
	}
	parts := strings.SplitAfter(s, "\n")
	// SplitAfter leaves a trailing "" when the text ends in a newline.
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// UnmarshalJSON accepts a string or an array of strings.
func (m *MultilineText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultilineText(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("multiline text is neither string nor string array: %w", err)
	}
	*m = MultilineText(strings.Join(lines, ""))
	return nil
}

// MarshalJSON emits the array-of-lines form used by notebook files.
func (m MultilineText) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Lines())
}

// MimeBundle maps MIME type to payload. Text MIME values are strings or
// line arrays, binary/image values are base64 strings, JSON values are
// already-parsed structures. Values are kept as decoded JSON (any); the
// cell codec applies the per-MIME byte encodings.
type MimeBundle map[string]any

// Text returns the bundle value for mime joined to a single string when it
// is a string or an array of strings.
func (b MimeBundle) Text(mime string) (string, bool) {
	v, ok := b[mime]
	if !ok {
		return "", false
	}
	return joinTextValue(v)
}

// joinTextValue flattens the string-or-line-array shape MIME bundles use for
// text values.
func joinTextValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		var sb strings.Builder
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	case []string:
		return strings.Join(t, ""), true
	default:
		return "", false
	}
}

// WireOutput is one output in a code cell's outputs array, discriminated by
// OutputType. Only the fields for the given type are populated:
//
//	stream              Name, Text
//	display_data        Data, Metadata, Transient
//	execute_result      Data, Metadata, ExecutionCount, Transient
//	update_display_data Data, Metadata, Transient
//	error               EName, EValue, Traceback
//
// Unknown output types keep their fields in Extra so nothing is lost.
type WireOutput struct {
	OutputType string `json:"output_type"`

	// stream
	Name string        `json:"name,omitempty"`
	Text MultilineText `json:"text,omitempty"`

	// display_data / execute_result / update_display_data
	Data           MimeBundle     `json:"data,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Transient      map[string]any `json:"transient,omitempty"`

	// error
	EName     string   `json:"ename,omitempty"`
	EValue    string   `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`

	// Extra holds unrecognized top-level fields of unknown output types.
	Extra map[string]any `json:"-"`
}

// wireOutputFields is the set of keys the typed struct covers; anything else
// on an unknown output type lands in Extra.
var wireOutputFields = map[string]bool{
	"output_type":     true,
	"name":            true,
	"text":            true,
	"data":            true,
	"metadata":        true,
	"execution_count": true,
	"transient":       true,
	"ename":           true,
	"evalue":          true,
	"traceback":       true,
}

// UnmarshalJSON decodes the typed fields and collects leftovers into Extra.
func (o *WireOutput) UnmarshalJSON(data []byte) error {
	type alias WireOutput
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*o = WireOutput(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if wireOutputFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[k] = val
	}
	return nil
}

// MarshalJSON emits the typed fields for known output types and merges Extra
// back in. display-family outputs always serialize data and metadata, even
// when empty, because downstream tooling assumes their presence.
func (o WireOutput) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 8)
	m["output_type"] = o.OutputType

	switch o.OutputType {
	case OutputTypeStream:
		m["name"] = o.Name
		m["text"] = o.Text.Lines()
	case OutputTypeDisplayData, OutputTypeExecuteResult, OutputTypeUpdateDisplayData:
		data := o.Data
		if data == nil {
			data = MimeBundle{}
		}
		meta := o.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		m["data"] = data
		m["metadata"] = meta
		if o.OutputType == OutputTypeExecuteResult {
			m["execution_count"] = o.ExecutionCount
		}
		if o.Transient != nil {
			m["transient"] = o.Transient
		}
	case OutputTypeError:
		m["ename"] = o.EName
		m["evalue"] = o.EValue
		tb := o.Traceback
		if tb == nil {
			tb = []string{}
		}
		m["traceback"] = tb
	default:
		if o.Data != nil {
			m["data"] = o.Data
		}
		if o.Metadata != nil {
			m["metadata"] = o.Metadata
		}
		if o.ExecutionCount != nil {
			m["execution_count"] = o.ExecutionCount
		}
		if o.Transient != nil {
			m["transient"] = o.Transient
		}
	}
	for k, v := range o.Extra {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// WireCell is one cell in a notebook's cells array, discriminated by
// CellType. Metadata is never absent in serialized form; code cells always
// carry execution_count (null when never run) and outputs.
type WireCell struct {
	CellType string `json:"cell_type"`

	// ID is the nbformat 4.5 cell id; empty on older notebooks.
	ID string `json:"id,omitempty"`

	Source   MultilineText  `json:"source"`
	Metadata map[string]any `json:"metadata"`

	// Attachments carries inline images for markdown/raw cells.
	Attachments map[string]any `json:"attachments,omitempty"`

	// Code-cell fields.
	ExecutionCount *int         `json:"execution_count,omitempty"`
	Outputs        []WireOutput `json:"outputs,omitempty"`
}

// MarshalJSON enforces the serialization invariants: metadata always
// present, and code cells always carrying execution_count and outputs.
func (c WireCell) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 7)
	m["cell_type"] = c.CellType
	if c.ID != "" {
		m["id"] = c.ID
	}
	m["source"] = c.Source.Lines()

	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	m["metadata"] = meta

	if c.Attachments != nil {
		m["attachments"] = c.Attachments
	}
	if c.CellType == CellTypeCode {
		// null, never undefined: downstream tools index the field directly.
		m["execution_count"] = c.ExecutionCount
		outputs := c.Outputs
		if outputs == nil {
			outputs = []WireOutput{}
		}
		m["outputs"] = outputs
	}
	return json.Marshal(m)
}

// Notebook is the top-level nbformat document.
type Notebook struct {
	Cells         []WireCell     `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}
