package kernel

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// KernelSpec models a kernel.json descriptor: the command line, display
// name and language of a runnable kernel.
type KernelSpec struct {
	// Name is the kernelspec directory name ("python3", "ir").
	Name string `json:"name"`

	// DisplayName is the human-readable name shown in pickers.
	DisplayName string `json:"display_name"`

	// Language is the language the kernel executes.
	Language string `json:"language"`

	// Argv is the command line used to launch the kernel.
	Argv []string `json:"argv"`

	// InterruptMode is "signal" or "message"; empty means signal.
	InterruptMode string `json:"interrupt_mode,omitempty"`

	// Env holds extra environment variables for the kernel process.
	Env map[string]string `json:"env,omitempty"`

	// Metadata is the spec's opaque metadata bag.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Path is where the spec was loaded from (kernel.json location).
	// Empty for specs listed by a remote server.
	Path string `json:"-"`
}

// Title returns the name to display for the spec, falling back to Name.
func (s KernelSpec) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Version is a Python-style version tuple.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`
}

// String returns "major.minor.micro", or "" for the zero value.
func (v Version) String() string {
	if v.Major == 0 && v.Minor == 0 && v.Micro == 0 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Interpreter describes a Python environment: the executable path plus the
// version, sys.prefix and environment name reported by the interpreter
// itself.
type Interpreter struct {
	Path      string  `json:"path"`
	Version   Version `json:"versionInfo"`
	SysPrefix string  `json:"sysPrefix"`
	EnvName   string  `json:"envName,omitempty"`
}

// DisplayName returns a picker-friendly name for the interpreter.
func (i Interpreter) DisplayName() string {
	name := "Python"
	if v := i.Version.String(); v != "" {
		name += " " + v
	}
	if i.EnvName != "" {
		name += " (" + i.EnvName + ")"
	}
	return name
}

// LiveKernelModel describes an already-running kernel reported by a
// Jupyter server's sessions listing.
type LiveKernelModel struct {
	// ID is the server-assigned kernel id.
	ID string `json:"id"`

	// Name is the kernelspec name the kernel was started from.
	Name string `json:"name"`

	// Language is the kernel's language when the server reports one.
	Language string `json:"language,omitempty"`

	// SessionName is the notebook path or session name on the server.
	SessionName string `json:"session_name,omitempty"`

	// LastActivity is the server's last-activity timestamp, verbatim.
	LastActivity string `json:"last_activity,omitempty"`

	// Connections is the number of clients attached to the kernel.
	Connections int `json:"connections"`

	// ExecutionState is the kernel's reported state ("idle", "busy").
	ExecutionState string `json:"execution_state,omitempty"`
}

// NormalizePath canonicalizes a filesystem path for identity comparison:
// cleaned, slash-separated, and case-folded on case-insensitive platforms.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.ToSlash(filepath.Clean(path))
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		p = strings.ToLower(p)
	}
	return p
}

// normalizeName canonicalizes a kernelspec name for identity comparison.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// baseName strips a trailing version suffix from a kernelspec name, so
// "python3", "python3.8" and "python-3" all share the base "python".
func baseName(name string) string {
	return strings.TrimRight(normalizeName(name), "0123456789._-")
}

// looseNameEqual reports whether two kernelspec names match exactly or
// across version suffixes.
func looseNameEqual(a, b string) bool {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	ba, bb := baseName(na), baseName(nb)
	return ba != "" && ba == bb
}

// languageEqual compares languages case-insensitively.
func languageEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
