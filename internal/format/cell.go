package format

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nbweave/internal/document"
)

// CellCodec translates single cells and their outputs between the wire
// format and the live model. It is stateless apart from the fallback
// counter; one codec can serve any number of documents concurrently.
type CellCodec struct {
	logger     *zap.Logger
	onFallback func(outputType string)
	fallbacks  atomic.Int64
}

// CellOption configures a CellCodec.
type CellOption func(*CellCodec)

// WithCellLogger sets the codec's logger. Defaults to a no-op logger.
func WithCellLogger(logger *zap.Logger) CellOption {
	return func(c *CellCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFallbackHook registers a hook invoked once per output whose
// output_type is not recognized. The output is still translated as a
// best-effort passthrough; the hook exists so callers can surface the
// count (the app layer publishes it on the event bus).
func WithFallbackHook(fn func(outputType string)) CellOption {
	return func(c *CellCodec) { c.onFallback = fn }
}

// NewCellCodec creates a cell codec.
func NewCellCodec(opts ...CellOption) *CellCodec {
	c := &CellCodec{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FallbackCount returns how many unrecognized output types this codec has
// translated since construction.
func (c *CellCodec) FallbackCount() int64 {
	return c.fallbacks.Load()
}

// WireToLive converts one wire cell into a live cell. Code cells get
// languageHint as their language; markdown and raw map 1:1 with no outputs.
// Wire cells without an id get a generated one, since live cells are
// addressed by ID. The notebook codec prunes generated ids from formats
// too old to carry them.
func (c *CellCodec) WireToLive(cell WireCell, languageHint string) (*document.Cell, error) {
	id := cell.ID
	if id == "" {
		id = uuid.NewString()
	}

	live := &document.Cell{
		ID:          id,
		Text:        cell.Source.String(),
		Metadata:    bagOrEmpty(cell.Metadata),
		Attachments: cell.Attachments,
	}

	switch cell.CellType {
	case CellTypeMarkdown:
		live.Kind = document.CellKindMarkup
		live.Language = "markdown"
	case CellTypeRaw:
		live.Kind = document.CellKindRaw
		live.Language = "raw"
	case CellTypeCode:
		live.Kind = document.CellKindCode
		live.Language = languageHint
		if cell.ExecutionCount != nil {
			n := *cell.ExecutionCount
			live.ExecutionOrder = &n
		}
		outputs := make([]document.Output, 0, len(cell.Outputs))
		for _, w := range cell.Outputs {
			outputs = append(outputs, c.WireOutputToLive(w))
		}
		live.Outputs = outputs
	default:
		return nil, &FormatError{Op: "cell", Detail: cell.CellType, Err: ErrUnknownCellType}
	}
	return live, nil
}

// LiveToWire converts one live cell back into its wire form. The execution
// count serializes as null when the cell never ran, never as a missing
// field, which downstream tools reject.
func (c *CellCodec) LiveToWire(cell *document.Cell) (WireCell, error) {
	if cell == nil {
		return WireCell{}, &FormatError{Op: "cell", Err: document.ErrNilCell}
	}

	w := WireCell{
		ID:          cell.ID,
		Source:      MultilineText(cell.Text),
		Metadata:    bagOrEmpty(cell.Metadata),
		Attachments: cell.Attachments,
	}

	switch cell.Kind {
	case document.CellKindMarkup:
		w.CellType = CellTypeMarkdown
	case document.CellKindRaw:
		w.CellType = CellTypeRaw
	case document.CellKindCode:
		w.CellType = CellTypeCode
		if cell.ExecutionOrder != nil {
			n := *cell.ExecutionOrder
			w.ExecutionCount = &n
		}
		outputs := make([]WireOutput, 0, len(cell.Outputs))
		for _, out := range cell.Outputs {
			wo, err := c.LiveOutputToWire(out)
			if err != nil {
				return WireCell{}, err
			}
			outputs = append(outputs, wo)
		}
		w.Outputs = outputs
	default:
		return WireCell{}, &FormatError{Op: "cell", Detail: cell.Kind.String(), Err: ErrUnknownCellKind}
	}
	return w, nil
}

// WireOutputToLive converts one wire output into a live output bundle via
// the per-output-type translators. Unrecognized output types are passed
// through with everything preserved and counted as fallbacks; nothing is
// dropped silently.
func (c *CellCodec) WireOutputToLive(out WireOutput) document.Output {
	switch out.OutputType {
	case OutputTypeStream:
		return streamToLive(out)
	case OutputTypeError:
		return errorToLive(out)
	case OutputTypeDisplayData, OutputTypeExecuteResult, OutputTypeUpdateDisplayData:
		return displayToLive(out)
	default:
		c.fallbacks.Add(1)
		c.logger.Warn("unrecognized output type, translating as passthrough",
			zap.String("output_type", out.OutputType))
		if c.onFallback != nil {
			c.onFallback(out.OutputType)
		}
		return unknownToLive(out)
	}
}

// LiveOutputToWire converts a live output bundle back into its wire form.
// Bundles without an outputType tag came from a source outside this module;
// they are inferred as display_data unless every item carries a stream
// sentinel (then stream) or the single item is the error sentinel.
func (c *CellCodec) LiveOutputToWire(out document.Output) (WireOutput, error) {
	outputType := out.OutputType()
	if outputType == "" {
		outputType = inferOutputType(out)
	}

	switch outputType {
	case OutputTypeStream:
		return streamToWire(out), nil
	case OutputTypeError:
		return errorToWire(out)
	case OutputTypeDisplayData, OutputTypeExecuteResult, OutputTypeUpdateDisplayData:
		return displayToWire(outputType, out), nil
	default:
		return unknownToWire(outputType, out), nil
	}
}

func inferOutputType(out document.Output) string {
	if len(out.Items) == 1 && out.Items[0].Mime == MimeError {
		return OutputTypeError
	}
	if len(out.Items) > 0 {
		allStream := true
		for _, it := range out.Items {
			if it.Mime != MimeStdout && it.Mime != MimeStderr {
				allStream = false
				break
			}
		}
		if allStream {
			return OutputTypeStream
		}
	}
	return OutputTypeDisplayData
}

// streamToLive concatenates the stream text into a single item tagged with
// the stdout/stderr sentinel MIME.
func streamToLive(out WireOutput) document.Output {
	mime := MimeStdout
	if out.Name == StreamStderr {
		mime = MimeStderr
	}
	return document.NewOutput(
		[]document.Item{{Mime: mime, Data: []byte(out.Text.String())}},
		map[string]any{document.MetaOutputType: OutputTypeStream},
	)
}

func streamToWire(out document.Output) WireOutput {
	name := StreamStdout
	var text strings.Builder
	for _, it := range out.Items {
		if it.Mime == MimeStderr {
			name = StreamStderr
		}
		text.Write(it.Data)
	}
	return WireOutput{
		OutputType: OutputTypeStream,
		Name:       name,
		Text:       MultilineText(text.String()),
	}
}

// errorItemPayload is the rendered error shape handed to the editing
// surface. Stack is the traceback joined by newlines and therefore lossy;
// the authoritative wire fields ride in the output metadata.
type errorItemPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

func errorToLive(out WireOutput) document.Output {
	payload, err := json.Marshal(errorItemPayload{
		Name:    out.EName,
		Message: out.EValue,
		Stack:   strings.Join(out.Traceback, "\n"),
	})
	if err != nil {
		payload = []byte("{}")
	}
	traceback := out.Traceback
	if traceback == nil {
		traceback = []string{}
	}
	meta := map[string]any{
		document.MetaOutputType: OutputTypeError,
		document.MetaOriginalError: map[string]any{
			"ename":     out.EName,
			"evalue":    out.EValue,
			"traceback": traceback,
		},
	}
	return document.NewOutput([]document.Item{{Mime: MimeError, Data: payload}}, meta)
}

func errorToWire(out document.Output) (WireOutput, error) {
	w := WireOutput{OutputType: OutputTypeError, Traceback: []string{}}

	// The preserved wire fields are the source of truth when present.
	if orig, ok := out.Metadata[document.MetaOriginalError].(map[string]any); ok {
		w.EName, _ = orig["ename"].(string)
		w.EValue, _ = orig["evalue"].(string)
		w.Traceback = toStringSlice(orig["traceback"])
		return w, nil
	}

	// Reconstructing from the rendered payload splits the joined stack;
	// only taken for error outputs produced outside this module.
	if it, ok := out.ItemByMime(MimeError); ok {
		var payload errorItemPayload
		if err := json.Unmarshal(it.Data, &payload); err != nil {
			return WireOutput{}, &FormatError{Op: "output", Detail: "error payload", Err: err}
		}
		w.EName = payload.Name
		w.EValue = payload.Message
		if payload.Stack != "" {
			w.Traceback = strings.Split(payload.Stack, "\n")
		}
	}
	return w, nil
}

// displayToLive produces one item per MIME key, byte-encoded per the MIME
// class, ordered by display priority.
func displayToLive(out WireOutput) document.Output {
	meta := map[string]any{document.MetaOutputType: out.OutputType}
	if out.Metadata != nil {
		meta[document.MetaOutputMetadata] = out.Metadata
	}
	if out.ExecutionCount != nil {
		meta[document.MetaExecutionCount] = *out.ExecutionCount
	}
	if out.Transient != nil {
		meta[document.MetaTransient] = out.Transient
	}

	items, rawMimes := bundleToItems(out.Data)
	if len(rawMimes) > 0 {
		meta[document.MetaRawBase64] = rawMimes
	}
	return document.NewOutput(items, meta)
}

func displayToWire(outputType string, out document.Output) WireOutput {
	w := WireOutput{OutputType: outputType, Data: itemsToBundle(out)}
	if m, ok := out.Metadata[document.MetaOutputMetadata].(map[string]any); ok {
		w.Metadata = m
	}
	if outputType == OutputTypeExecuteResult {
		if n, ok := metaInt(out.Metadata, document.MetaExecutionCount); ok {
			w.ExecutionCount = &n
		}
	}
	if t, ok := out.Metadata[document.MetaTransient].(map[string]any); ok {
		w.Transient = t
	}
	return w
}

// unknownToLive keeps everything an unrecognized output carried: the data
// bundle becomes items, typed stray fields and Extra are stashed so
// unknownToWire can rebuild the original shape.
func unknownToLive(out WireOutput) document.Output {
	meta := map[string]any{document.MetaOutputType: out.OutputType}
	if out.Metadata != nil {
		meta[document.MetaOutputMetadata] = out.Metadata
	}
	if out.Transient != nil {
		meta[document.MetaTransient] = out.Transient
	}
	if out.ExecutionCount != nil {
		meta[document.MetaExecutionCount] = *out.ExecutionCount
	}

	extra := make(map[string]any, len(out.Extra)+4)
	for k, v := range out.Extra {
		extra[k] = v
	}
	if out.Name != "" {
		extra["name"] = out.Name
	}
	if out.Text != "" {
		extra["text"] = out.Text.String()
	}
	if out.EName != "" {
		extra["ename"] = out.EName
	}
	if out.EValue != "" {
		extra["evalue"] = out.EValue
	}
	if out.Traceback != nil {
		extra["traceback"] = out.Traceback
	}
	if len(extra) > 0 {
		meta[document.MetaExtraFields] = extra
	}

	items, rawMimes := bundleToItems(out.Data)
	if len(rawMimes) > 0 {
		meta[document.MetaRawBase64] = rawMimes
	}
	return document.NewOutput(items, meta)
}

func unknownToWire(outputType string, out document.Output) WireOutput {
	w := WireOutput{OutputType: outputType}
	if len(out.Items) > 0 {
		w.Data = itemsToBundle(out)
	}
	if m, ok := out.Metadata[document.MetaOutputMetadata].(map[string]any); ok {
		w.Metadata = m
	}
	if t, ok := out.Metadata[document.MetaTransient].(map[string]any); ok {
		w.Transient = t
	}
	if n, ok := metaInt(out.Metadata, document.MetaExecutionCount); ok {
		w.ExecutionCount = &n
	}
	if extra, ok := out.Metadata[document.MetaExtraFields].(map[string]any); ok {
		w.Extra = extra
	}
	return w
}

// bundleToItems encodes each MIME entry to payload bytes and sorts the
// items by display priority. Returned rawMimes lists entries whose base64
// payload failed to decode and is carried verbatim instead.
func bundleToItems(data MimeBundle) ([]document.Item, []string) {
	if len(data) == 0 {
		return []document.Item{}, nil
	}
	mimes := make([]string, 0, len(data))
	for mime := range data {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)

	items := make([]document.Item, 0, len(mimes))
	var rawMimes []string
	for _, mime := range mimes {
		payload, raw := encodeMimeValue(mime, data[mime])
		if raw {
			rawMimes = append(rawMimes, mime)
		}
		items = append(items, document.Item{Mime: mime, Data: payload})
	}
	return SortItemsByDisplayPriority(items), rawMimes
}

func itemsToBundle(out document.Output) MimeBundle {
	raw := rawBase64Set(out.Metadata)
	bundle := make(MimeBundle, len(out.Items))
	for _, it := range out.Items {
		bundle[it.Mime] = decodeMimeValue(it.Mime, it.Data, raw[it.Mime])
	}
	return bundle
}

// encodeMimeValue turns one MIME bundle value into payload bytes: JSON MIME
// types always marshal, so a string value stays a string when the payload is
// parsed back. Text values become their UTF-8 bytes, base64 image values
// decode to raw bytes (SVG stays text), other structured values become
// canonical JSON. The second return is true when a base64 payload failed to
// decode and the original string is carried instead.
func encodeMimeValue(mime string, value any) ([]byte, bool) {
	if isJSONMime(mime) {
		payload, err := json.Marshal(value)
		if err != nil {
			return []byte{}, false
		}
		return payload, false
	}
	if s, ok := joinTextValue(value); ok {
		if isImageMime(mime) {
			decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(s))
			if err != nil {
				return []byte(s), true
			}
			return decoded, false
		}
		return []byte(s), false
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return []byte{}, false
	}
	return payload, false
}

// decodeMimeValue is the inverse of encodeMimeValue: images re-encode to
// base64 strings, JSON MIME types parse back into structures, text emits
// the nbformat line-array form.
func decodeMimeValue(mime string, data []byte, rawBase64 bool) any {
	if rawBase64 {
		return string(data)
	}
	if isImageMime(mime) {
		return base64.StdEncoding.EncodeToString(data)
	}
	if isJSONMime(mime) {
		if len(data) == 0 {
			return ""
		}
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
		return string(data)
	}
	return MultilineText(data).Lines()
}

func rawBase64Set(meta map[string]any) map[string]bool {
	set := make(map[string]bool)
	for _, mime := range toStringSlice(meta[document.MetaRawBase64]) {
		set[mime] = true
	}
	return set
}

// stripWhitespace removes the line breaks base64 image payloads commonly
// carry in notebook files.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func metaInt(meta map[string]any, key string) (int, bool) {
	switch n := meta[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func bagOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
