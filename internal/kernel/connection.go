package kernel

// ConnectionKind discriminates the connection metadata variants.
type ConnectionKind int

const (
	// KindPythonInterpreter starts a kernel from a Python interpreter.
	KindPythonInterpreter ConnectionKind = iota
	// KindKernelSpec starts a kernel from an installed kernelspec.
	KindKernelSpec
	// KindLiveKernel attaches to an already-running kernel.
	KindLiveKernel
	// KindDefaultKernel starts a server's declared default kernel.
	KindDefaultKernel
)

// String returns a human-readable kind string.
func (k ConnectionKind) String() string {
	switch k {
	case KindPythonInterpreter:
		return "python-interpreter"
	case KindKernelSpec:
		return "kernel-spec"
	case KindLiveKernel:
		return "live-kernel"
	case KindDefaultKernel:
		return "default-kernel"
	default:
		return "unknown"
	}
}

// ConnectionMetadata is the resolved choice of how to start or attach to a
// kernel. Exactly four variants implement it; consumers switch on Kind (or
// the concrete type) and must handle all of them.
//
// ID is stable across processes: equal connections yield equal IDs, and
// the preferred-kernel store persists them between sessions.
type ConnectionMetadata interface {
	// ID returns the connection's derived stable identity.
	ID() string
	// Kind returns the variant tag.
	Kind() ConnectionKind
	// Language returns the language the connection executes ("" if unknown).
	Language() string
	// DisplayName returns the name shown when presenting a choice.
	DisplayName() string

	sealed()
}

// PythonInterpreterConnection starts a kernel directly from a Python
// interpreter, used when no installed kernelspec matches.
type PythonInterpreterConnection struct {
	Interpreter Interpreter
}

// ID implements ConnectionMetadata.
func (c PythonInterpreterConnection) ID() string {
	return "python-interpreter:" + NormalizePath(c.Interpreter.Path)
}

// Kind implements ConnectionMetadata.
func (c PythonInterpreterConnection) Kind() ConnectionKind { return KindPythonInterpreter }

// Language implements ConnectionMetadata.
func (c PythonInterpreterConnection) Language() string { return "python" }

// DisplayName implements ConnectionMetadata.
func (c PythonInterpreterConnection) DisplayName() string { return c.Interpreter.DisplayName() }

func (c PythonInterpreterConnection) sealed() {}

// KernelSpecConnection starts a kernel from an installed kernelspec. When
// the spec's metadata embeds an interpreter, Interpreter points at it and
// participates in identity.
type KernelSpecConnection struct {
	Spec        KernelSpec
	Interpreter *Interpreter
}

// ID implements ConnectionMetadata.
func (c KernelSpecConnection) ID() string {
	id := "kernel-spec:" + normalizeName(c.Spec.Name) + ":" + normalizeName(c.Spec.Language)
	if c.Interpreter != nil {
		id += ":" + NormalizePath(c.Interpreter.Path)
	}
	return id
}

// Kind implements ConnectionMetadata.
func (c KernelSpecConnection) Kind() ConnectionKind { return KindKernelSpec }

// Language implements ConnectionMetadata.
func (c KernelSpecConnection) Language() string { return c.Spec.Language }

// DisplayName implements ConnectionMetadata.
func (c KernelSpecConnection) DisplayName() string { return c.Spec.Title() }

func (c KernelSpecConnection) sealed() {}

// LiveKernelConnection attaches to a kernel that is already running on a
// Jupyter server.
type LiveKernelConnection struct {
	Model LiveKernelModel

	// ServerID identifies the server the kernel runs on, so kernels with
	// equal server-assigned ids on different servers stay distinct.
	ServerID string
}

// ID implements ConnectionMetadata.
func (c LiveKernelConnection) ID() string {
	if c.ServerID != "" {
		return "live-kernel:" + c.ServerID + ":" + c.Model.ID
	}
	return "live-kernel:" + c.Model.ID
}

// Kind implements ConnectionMetadata.
func (c LiveKernelConnection) Kind() ConnectionKind { return KindLiveKernel }

// Language implements ConnectionMetadata.
func (c LiveKernelConnection) Language() string { return c.Model.Language }

// DisplayName implements ConnectionMetadata.
func (c LiveKernelConnection) DisplayName() string {
	if c.Model.SessionName != "" {
		return c.Model.Name + " (" + c.Model.SessionName + ")"
	}
	if c.Model.Name != "" {
		return c.Model.Name
	}
	return c.Model.ID
}

func (c LiveKernelConnection) sealed() {}

// DefaultKernelConnection starts the kernel a server declares as its
// default, used when nothing else matches a remote notebook.
type DefaultKernelConnection struct {
	Spec KernelSpec
}

// ID implements ConnectionMetadata.
func (c DefaultKernelConnection) ID() string {
	return "default-kernel:" + normalizeName(c.Spec.Name)
}

// Kind implements ConnectionMetadata.
func (c DefaultKernelConnection) Kind() ConnectionKind { return KindDefaultKernel }

// Language implements ConnectionMetadata.
func (c DefaultKernelConnection) Language() string { return c.Spec.Language }

// DisplayName implements ConnectionMetadata.
func (c DefaultKernelConnection) DisplayName() string { return c.Spec.Title() }

func (c DefaultKernelConnection) sealed() {}

// specName returns the kernelspec name a connection resolves to, "" for
// interpreter connections.
func specName(c ConnectionMetadata) string {
	switch v := c.(type) {
	case PythonInterpreterConnection:
		return ""
	case KernelSpecConnection:
		return v.Spec.Name
	case LiveKernelConnection:
		return v.Model.Name
	case DefaultKernelConnection:
		return v.Spec.Name
	default:
		return ""
	}
}

// interpreterPath returns the interpreter path a connection is bound to,
// "" when the connection has none.
func interpreterPath(c ConnectionMetadata) string {
	switch v := c.(type) {
	case PythonInterpreterConnection:
		return v.Interpreter.Path
	case KernelSpecConnection:
		if v.Interpreter != nil {
			return v.Interpreter.Path
		}
		return ""
	case LiveKernelConnection:
		return ""
	case DefaultKernelConnection:
		return ""
	default:
		return ""
	}
}
