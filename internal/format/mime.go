package format

import (
	"sort"
	"strings"

	"nbweave/internal/document"
)

// Sentinel MIME types for outputs that have no real data MIME: stream text
// and errors. They are module-private vocabulary between the codec, the
// session layer, and the editing surface; they never appear on the wire.
const (
	MimeStdout = "application/vnd.nbweave.stdout"
	MimeStderr = "application/vnd.nbweave.stderr"
	MimeError  = "application/vnd.nbweave.error"
)

// displayOrder is the fixed MIME display-priority table. Entries ending in
// ".*" are prefix patterns. An item's priority is the index of the first
// matching entry; unmatched MIME types rank after every entry.
var displayOrder = []string{
	"application/vnd.*",
	"application/vdom.*",
	"application/geo+json",
	"application/x-nteract-model-debug+json",
	"text/html",
	"application/javascript",
	"image/gif",
	"text/latex",
	"text/markdown",
	"image/svg+xml",
	"image/png",
	"image/jpeg",
	"application/json",
	"text/plain",
}

// unmatchedPriority ranks below every table entry.
var unmatchedPriority = len(displayOrder)

// PriorityIndex returns the display priority of a MIME type: lower is more
// primary. Unmatched types return the largest (worst) value.
func PriorityIndex(mime string) int {
	for i, entry := range displayOrder {
		if matchMime(entry, mime) {
			return i
		}
	}
	return unmatchedPriority
}

func matchMime(entry, mime string) bool {
	if strings.HasSuffix(entry, ".*") {
		return strings.HasPrefix(mime, entry[:len(entry)-1])
	}
	return entry == mime
}

// SortItemsByDisplayPriority orders a bundle's items by the priority table,
// most primary first. The sort is stable, so items of equal priority keep
// their bundle order.
//
// A vendor-specific item with an empty payload is demoted below every
// matched type: some third-party tools emit an empty vendor MIME entry
// alongside real HTML/JS output, and without the demotion the empty
// placeholder would be selected as the primary rendering. Empty payloads
// under non-vendor types keep their table position.
func SortItemsByDisplayPriority(items []document.Item) []document.Item {
	sorted := make([]document.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortPriority(sorted[i]) < sortPriority(sorted[j])
	})
	return sorted
}

func sortPriority(it document.Item) int {
	if len(it.Data) == 0 && isVendorMime(it.Mime) {
		return unmatchedPriority
	}
	return PriorityIndex(it.Mime)
}

func isVendorMime(mime string) bool {
	return strings.HasPrefix(mime, "application/vnd.") ||
		strings.HasPrefix(mime, "application/vdom.")
}

// isImageMime reports whether payloads for mime arrive base64-encoded on the
// wire. SVG is the exception: it travels as text.
func isImageMime(mime string) bool {
	return strings.HasPrefix(mime, "image/") && mime != "image/svg+xml"
}

// isJSONMime reports whether payloads for mime are structured JSON on the
// wire rather than text.
func isJSONMime(mime string) bool {
	return strings.Contains(strings.ToLower(mime), "json")
}
