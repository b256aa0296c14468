package document

// Metadata keys used on live outputs. The format codec writes these when
// translating wire outputs inbound and reads them back when translating
// outbound; the session layer consults them when applying kernel events.
const (
	// MetaOutputType records the wire output_type discriminant.
	MetaOutputType = "outputType"

	// MetaExecutionCount records an execute_result's execution count.
	MetaExecutionCount = "executionCount"

	// MetaOutputMetadata carries the wire output's own metadata bag.
	MetaOutputMetadata = "metadata"

	// MetaTransient carries the wire output's transient bag (display_id and
	// friends). It survives the cell codec but is pruned on document save.
	MetaTransient = "transient"

	// MetaOriginalError preserves the exact {ename, evalue, traceback} of an
	// error output. The rendered {name, message, stack} payload is derived
	// and lossy; this bag is the source of truth for round-tripping.
	MetaOriginalError = "originalError"

	// MetaRawBase64 lists MIME types whose payload failed base64 decoding on
	// the way in and is therefore stored verbatim rather than as raw bytes.
	MetaRawBase64 = "rawBase64"

	// MetaExtraFields preserves unrecognized top-level fields of an unknown
	// output type so nothing is dropped silently.
	MetaExtraFields = "extraFields"
)

// Item is a single rendering of an output: one MIME type plus its payload
// bytes. Items are immutable once constructed; replacing an output means
// building a new Output value.
type Item struct {
	Mime string
	Data []byte
}

// Output is one output bundle of a code cell: an ordered sequence of items
// (one per available MIME representation, highest display priority first)
// plus a metadata bag tagging the originating output type and related wire
// fields.
type Output struct {
	Items    []Item
	Metadata map[string]any
}

// NewOutput constructs an output from items and an optional metadata bag.
func NewOutput(items []Item, metadata map[string]any) Output {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Output{Items: items, Metadata: metadata}
}

// OutputType returns the tagged wire output_type, or "" when untagged
// (outputs produced by unknown sources carry no tag).
func (o Output) OutputType() string {
	s, _ := o.Metadata[MetaOutputType].(string)
	return s
}

// ItemByMime returns the first item with the given MIME type.
func (o Output) ItemByMime(mime string) (Item, bool) {
	for _, it := range o.Items {
		if it.Mime == mime {
			return it, true
		}
	}
	return Item{}, false
}

// Clone returns a deep copy of the output. Item payloads are copied so a
// clone can outlive mutations to the original's backing arrays.
func (o Output) Clone() Output {
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		data := make([]byte, len(it.Data))
		copy(data, it.Data)
		items[i] = Item{Mime: it.Mime, Data: data}
	}
	return Output{Items: items, Metadata: cloneBag(o.Metadata)}
}

// cloneBag deep-copies a metadata bag. Values are copied structurally for
// maps and slices; scalars are shared (they are immutable).
func cloneBag(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneBag(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
