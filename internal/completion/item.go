package completion

// Kind classifies a completion item, mirroring what editors render.
type Kind int

const (
	// KindUnknown is the default for untyped candidates.
	KindUnknown Kind = iota
	// KindKeyword is a language keyword.
	KindKeyword
	// KindFunction is a free function.
	KindFunction
	// KindMethod is a bound method.
	KindMethod
	// KindClass is a class or type.
	KindClass
	// KindModule is an importable module.
	KindModule
	// KindVariable is a variable binding.
	KindVariable
	// KindField is an attribute or field.
	KindField
	// KindInstance is a live object in the kernel's namespace.
	KindInstance
	// KindStatement is a statement-level binding.
	KindStatement
	// KindMagic is a % line magic, %% cell magic, or ! shell escape.
	KindMagic
	// KindFile is a filesystem file path.
	KindFile
	// KindFolder is a filesystem directory path.
	KindFolder
)

// String returns a human-readable kind string.
func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindClass:
		return "class"
	case KindModule:
		return "module"
	case KindVariable:
		return "variable"
	case KindField:
		return "field"
	case KindInstance:
		return "instance"
	case KindStatement:
		return "statement"
	case KindMagic:
		return "magic"
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// kindFromJupyterType maps the type names Jupyter kernels report in
// _jupyter_types_experimental onto item kinds.
func kindFromJupyterType(t string) Kind {
	switch t {
	case "keyword":
		return KindKeyword
	case "function":
		return KindFunction
	case "method":
		return KindMethod
	case "class":
		return KindClass
	case "module":
		return KindModule
	case "instance":
		return KindInstance
	case "statement":
		return KindStatement
	case "magic":
		return KindMagic
	case "path", "file":
		return KindFile
	case "folder", "directory":
		return KindFolder
	default:
		return KindUnknown
	}
}

// Source tags which provider produced a candidate.
type Source int

const (
	// SourceKernel marks candidates from the live kernel.
	SourceKernel Source = iota
	// SourceStatic marks candidates from the static language service.
	SourceStatic
)

// String returns a human-readable source string.
func (s Source) String() string {
	switch s {
	case SourceKernel:
		return "kernel"
	case SourceStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Range is a half-open [Start, End) byte span in the cell text that an
// item's insert text replaces.
type Range struct {
	Start int
	End   int
}

// Item is one completion candidate.
type Item struct {
	// Label is the text shown in the completion list.
	Label string

	// Kind classifies the candidate.
	Kind Kind

	// Detail is an optional one-line annotation (type, signature).
	Detail string

	// InsertText is what gets inserted; empty means Label.
	InsertText string

	// SortKey is the two-letter ranking key assigned by the reconciler.
	SortKey string

	// Range is the span the insert text replaces.
	Range Range

	// Source tags the provider the candidate came from.
	Source Source
}

// Result is a reconciled completion list. Timeouts, busy kernels and
// cancellation all yield an empty non-nil Items slice, never an error.
type Result struct {
	Items []Item

	// Incomplete is set when more items existed than the sort-key space
	// can order; ordering past that point is not guaranteed.
	Incomplete bool
}
