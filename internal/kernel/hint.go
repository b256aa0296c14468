package kernel

// DocumentHint is the kernel-selection evidence a notebook carries: the
// persisted kernelspec metadata, the tracked language, and optionally the
// connection the preferred-kernel store last recorded for the document.
type DocumentHint struct {
	// KernelSpecName is metadata.kernelspec.name.
	KernelSpecName string

	// KernelDisplayName is metadata.kernelspec.display_name.
	KernelDisplayName string

	// Language is metadata.language_info.name, falling back to
	// metadata.kernelspec.language.
	Language string

	// InterpreterPath is the interpreter recorded by a previous session,
	// when the notebook carries one.
	InterpreterPath string

	// PreferredID is the connection ID recorded by the preferred-kernel
	// store, resolved by the caller before matching.
	PreferredID string
}

// Empty reports whether the hint carries no selection evidence at all.
func (h DocumentHint) Empty() bool {
	return h.KernelSpecName == "" && h.Language == "" &&
		h.InterpreterPath == "" && h.PreferredID == ""
}

// HintFromMetadata extracts a DocumentHint from notebook-level metadata as
// parsed from the wire (metadata.kernelspec, metadata.language_info,
// metadata.interpreter).
func HintFromMetadata(metadata map[string]any) DocumentHint {
	var h DocumentHint
	if metadata == nil {
		return h
	}
	if ks, ok := metadata["kernelspec"].(map[string]any); ok {
		h.KernelSpecName, _ = ks["name"].(string)
		h.KernelDisplayName, _ = ks["display_name"].(string)
		h.Language, _ = ks["language"].(string)
	}
	if li, ok := metadata["language_info"].(map[string]any); ok {
		if name, ok := li["name"].(string); ok && name != "" {
			h.Language = name
		}
	}
	if in, ok := metadata["interpreter"].(map[string]any); ok {
		h.InterpreterPath, _ = in["path"].(string)
	}
	return h
}
