package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"

	"nbweave/internal/kernel"
)

// Scanner implements Lister. Local kernels are read from kernelspec roots;
// remote kernels are parsed from a server's listing payloads.
type Scanner struct {
	roots  []string
	logger *zap.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithRoots replaces the default kernelspec roots.
func WithRoots(roots ...string) ScannerOption {
	return func(s *Scanner) { s.roots = roots }
}

// WithExtraRoots appends kernelspec roots searched after the defaults.
func WithExtraRoots(roots ...string) ScannerOption {
	return func(s *Scanner) { s.roots = append(s.roots, roots...) }
}

// WithLogger sets the scanner's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a kernel scanner. Without WithRoots it searches the
// standard Jupyter kernelspec locations.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		roots:  KernelSpecRoots(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KernelSpecRoots returns the directories searched for kernelspecs, in
// precedence order: $JUPYTER_PATH entries, the user's Jupyter data
// directory, then the system-wide locations.
func KernelSpecRoots() []string {
	var dirs []string
	if jp := os.Getenv("JUPYTER_PATH"); jp != "" {
		for _, d := range filepath.SplitList(jp) {
			if d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	if u := userDataDir(); u != "" {
		dirs = append(dirs, u)
	}
	dirs = append(dirs, systemDataDirs()...)

	roots := make([]string, 0, len(dirs))
	for _, d := range dirs {
		roots = append(roots, filepath.Join(d, "kernels"))
	}
	return roots
}

// userDataDir resolves the per-user Jupyter data directory.
func userDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Jupyter")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "jupyter")
		}
		return ""
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "jupyter")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".local", "share", "jupyter")
	}
}

func systemDataDirs() []string {
	if runtime.GOOS == "windows" {
		if programData := os.Getenv("PROGRAMDATA"); programData != "" {
			return []string{filepath.Join(programData, "jupyter")}
		}
		return nil
	}
	return []string{"/usr/local/share/jupyter", "/usr/share/jupyter"}
}

// ListLocalKernels scans the kernelspec roots. Specs in earlier roots
// shadow same-named specs in later ones, matching Jupyter's precedence.
// Unreadable or malformed specs are skipped, not fatal: one broken
// kernel.json must not hide every other kernel.
func (s *Scanner) ListLocalKernels(ctx context.Context) ([]kernel.ConnectionMetadata, error) {
	seen := make(map[string]bool)
	var pool []kernel.ConnectionMetadata

	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Debug("kernelspec root unreadable",
					zap.String("root", root), zap.Error(err))
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			conn, err := s.loadSpec(root, name)
			if err != nil {
				s.logger.Warn("skipping kernelspec",
					zap.String("name", name),
					zap.String("root", root),
					zap.Error(err))
				continue
			}
			seen[key] = true
			pool = append(pool, conn)
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		return pool[i].DisplayName() < pool[j].DisplayName()
	})
	s.logger.Debug("local kernels listed", zap.Int("count", len(pool)))
	return pool, nil
}

// loadSpec reads one kernelspec directory. The directory name is the
// authoritative spec name regardless of what kernel.json claims.
func (s *Scanner) loadSpec(root, name string) (kernel.ConnectionMetadata, error) {
	path := filepath.Join(root, name, "kernel.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec kernel.KernelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	spec.Name = name
	spec.Path = path
	if spec.Language == "" {
		return nil, kernel.ErrMissingLanguage
	}

	return kernel.KernelSpecConnection{
		Spec:        spec,
		Interpreter: embeddedInterpreter(spec.Metadata),
	}, nil
}

// embeddedInterpreter extracts metadata.interpreter from a kernelspec, the
// marker left behind when a kernel was registered from a specific Python
// environment.
func embeddedInterpreter(metadata map[string]any) *kernel.Interpreter {
	raw, ok := metadata["interpreter"].(map[string]any)
	if !ok {
		return nil
	}
	path, _ := raw["path"].(string)
	if path == "" {
		return nil
	}
	interp := &kernel.Interpreter{Path: path}
	if prefix, ok := raw["sysPrefix"].(string); ok {
		interp.SysPrefix = prefix
	}
	if env, ok := raw["envName"].(string); ok {
		interp.EnvName = env
	}
	return interp
}

// ListRemoteKernels fetches and parses a server's kernelspec and session
// listings. Live kernels missing a language inherit it from the spec they
// were started from.
func (s *Scanner) ListRemoteKernels(ctx context.Context, server ServerClient) ([]kernel.ConnectionMetadata, error) {
	specsBody, err := server.KernelSpecs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kernelspecs: %w", err)
	}
	pool, err := ParseKernelSpecsResponse(specsBody)
	if err != nil {
		return nil, err
	}

	langByName := make(map[string]string, len(pool))
	for _, c := range pool {
		if sc, ok := c.(kernel.KernelSpecConnection); ok {
			langByName[strings.ToLower(sc.Spec.Name)] = sc.Spec.Language
		}
	}

	sessionsBody, err := server.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	live, err := ParseSessionsResponse(sessionsBody, server.ID())
	if err != nil {
		return nil, err
	}
	for _, lk := range live {
		if lk.Model.Language == "" {
			lk.Model.Language = langByName[strings.ToLower(lk.Model.Name)]
		}
		pool = append(pool, lk)
	}

	s.logger.Debug("remote kernels listed",
		zap.String("server", server.ID()),
		zap.Int("count", len(pool)))
	return pool, nil
}

// Ensure Scanner implements Lister.
var _ Lister = (*Scanner)(nil)
