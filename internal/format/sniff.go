package format

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Preview is a cheap summary of raw notebook bytes, extracted with path
// queries instead of a full structured decode. The notebook codec uses it
// as a preflight check; the CLI uses it for inspection.
type Preview struct {
	NBFormat          int
	NBFormatMinor     int
	CellCount         int
	Language          string
	KernelSpecName    string
	KernelDisplayName string
	Indent            string
}

// Sniff extracts a Preview from raw notebook bytes. It fails only when the
// bytes are not a JSON object; missing fields are zero values.
func Sniff(data []byte) (Preview, error) {
	if !gjson.ValidBytes(data) {
		return Preview{}, &FormatError{Op: "sniff", Err: ErrInvalidNotebook}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Preview{}, &FormatError{Op: "sniff", Detail: "top level is not an object", Err: ErrInvalidNotebook}
	}

	p := Preview{
		NBFormat:          int(root.Get("nbformat").Int()),
		NBFormatMinor:     int(root.Get("nbformat_minor").Int()),
		CellCount:         int(root.Get("cells.#").Int()),
		Language:          root.Get("metadata.language_info.name").String(),
		KernelSpecName:    root.Get("metadata.kernelspec.name").String(),
		KernelDisplayName: root.Get("metadata.kernelspec.display_name").String(),
		Indent:            DetectIndent(data),
	}
	if p.Language == "" {
		p.Language = root.Get("metadata.kernelspec.language").String()
	}
	return p, nil
}

// DetectIndent returns the indentation unit of pretty-printed JSON: the
// leading whitespace of the first indented line. Returns "" for compact or
// single-line documents. The serializer reuses the detected unit so saving
// does not reformat a whole file.
func DetectIndent(data []byte) string {
	for _, line := range bytes.Split(data, []byte("\n")) {
		i := 0
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i > 0 && i < len(line) {
			return string(line[:i])
		}
	}
	return ""
}
