package kernel

import (
	"context"
	"errors"
	"testing"
)

func specConn(name, display, language string) KernelSpecConnection {
	return KernelSpecConnection{Spec: KernelSpec{
		Name:        name,
		DisplayName: display,
		Language:    language,
		Argv:        []string{name, "-f", "{connection_file}"},
	}}
}

type fakeDeps struct {
	has bool
	err error
}

func (f fakeDeps) HasKernelPackage(context.Context, Interpreter) (bool, error) {
	return f.has, f.err
}

func TestFindExactNameBeatsLanguageOnly(t *testing.T) {
	pool := []ConnectionMetadata{
		specConn("py2", "Python 2", "python"),
		specConn("py3", "Python 3", "python"),
	}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{KernelSpecName: "py3", Language: "python"}, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Outcome != OutcomeFound {
		t.Fatalf("outcome = %v", got.Outcome)
	}
	if got.Tier != TierExactIdentity {
		t.Errorf("tier = %v", got.Tier)
	}
	if specName(got.Connection) != "py3" {
		t.Errorf("matched %q, want py3", specName(got.Connection))
	}
}

func TestFindLooseNameAcrossVersionSuffix(t *testing.T) {
	pool := []ConnectionMetadata{
		specConn("xpython", "XPython", "python"),
		specConn("python3.8", "Python 3.8", "python"),
	}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{KernelSpecName: "python3", Language: "python"}, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Tier != TierLanguage {
		t.Errorf("tier = %v", got.Tier)
	}
	if specName(got.Connection) != "python3.8" {
		t.Errorf("matched %q, want python3.8", specName(got.Connection))
	}
}

func TestFindLanguageTieBreaksByDisplayName(t *testing.T) {
	pool := []ConnectionMetadata{
		specConn("b-kernel", "Zeta", "python"),
		specConn("a-kernel", "Alpha", "python"),
	}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{Language: "python"}, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Connection.DisplayName() != "Alpha" {
		t.Errorf("matched %q, want Alpha", got.Connection.DisplayName())
	}
}

func TestFindPreferredID(t *testing.T) {
	preferred := specConn("py3", "Python 3", "python")
	pool := []ConnectionMetadata{
		specConn("other", "Other", "python"),
		preferred,
	}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{PreferredID: preferred.ID()}, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Tier != TierPreferred {
		t.Errorf("tier = %v", got.Tier)
	}
	if got.Connection.ID() != preferred.ID() {
		t.Errorf("matched %q", got.Connection.ID())
	}
}

func TestFindInterpreterPathIdentity(t *testing.T) {
	interp := Interpreter{Path: "/opt/venv/bin/python"}
	pool := []ConnectionMetadata{
		specConn("py3", "Python 3", "python"),
		KernelSpecConnection{
			Spec:        KernelSpec{Name: "venv-kernel", DisplayName: "venv", Language: "python"},
			Interpreter: &interp,
		},
	}
	m := NewMatcher()

	// Unnormalized path still matches after cleaning.
	hint := DocumentHint{InterpreterPath: "/opt/venv/bin/../bin/python"}
	got, err := m.Find(context.Background(), hint, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Tier != TierExactIdentity {
		t.Errorf("tier = %v", got.Tier)
	}
	if specName(got.Connection) != "venv-kernel" {
		t.Errorf("matched %q, want venv-kernel", specName(got.Connection))
	}
}

func TestFindInterpreterFallback(t *testing.T) {
	interp := &Interpreter{Path: "/usr/bin/python3", Version: Version{Major: 3, Minor: 11, Micro: 2}}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{}, nil, interp)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Outcome != OutcomeFound || got.Tier != TierInterpreterFallback {
		t.Fatalf("outcome = %v tier = %v", got.Outcome, got.Tier)
	}
	conn, ok := got.Connection.(PythonInterpreterConnection)
	if !ok {
		t.Fatalf("connection type = %T", got.Connection)
	}
	if conn.Interpreter.Path != interp.Path {
		t.Errorf("interpreter = %q", conn.Interpreter.Path)
	}
}

func TestFindFallbackSkippedForNonPython(t *testing.T) {
	interp := &Interpreter{Path: "/usr/bin/python3"}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{Language: "r"}, nil, interp)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Outcome != OutcomeNotFound {
		t.Errorf("outcome = %v, want not found", got.Outcome)
	}
	if got.Connection != nil {
		t.Errorf("connection = %v, want nil", got.Connection)
	}
}

func TestFindDependencyMissing(t *testing.T) {
	interp := &Interpreter{Path: "/usr/bin/python3"}

	t.Run("package absent", func(t *testing.T) {
		m := NewMatcher(WithDependencyChecker(fakeDeps{has: false}))
		got, err := m.Find(context.Background(), DocumentHint{}, nil, interp)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Outcome != OutcomeDependencyMissing {
			t.Fatalf("outcome = %v", got.Outcome)
		}
		// The connection still names the interpreter so the caller can
		// offer to install into it.
		if got.Connection == nil || got.Connection.Kind() != KindPythonInterpreter {
			t.Errorf("connection = %v", got.Connection)
		}
	})

	t.Run("probe error", func(t *testing.T) {
		m := NewMatcher(WithDependencyChecker(fakeDeps{err: errors.New("probe failed")}))
		got, err := m.Find(context.Background(), DocumentHint{}, nil, interp)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Outcome != OutcomeDependencyMissing {
			t.Errorf("outcome = %v", got.Outcome)
		}
	})

	t.Run("package present", func(t *testing.T) {
		m := NewMatcher(WithDependencyChecker(fakeDeps{has: true}))
		got, err := m.Find(context.Background(), DocumentHint{}, nil, interp)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Outcome != OutcomeFound {
			t.Errorf("outcome = %v", got.Outcome)
		}
	})
}

func TestFindNotFoundIsNotError(t *testing.T) {
	pool := []ConnectionMetadata{specConn("py3", "Python 3", "python")}
	m := NewMatcher()

	got, err := m.Find(context.Background(), DocumentHint{Language: "julia"}, pool, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Outcome != OutcomeNotFound {
		t.Errorf("outcome = %v", got.Outcome)
	}
}

func TestFindMalformedPool(t *testing.T) {
	m := NewMatcher()

	pool := []ConnectionMetadata{KernelSpecConnection{Spec: KernelSpec{Name: "broken"}}}
	_, err := m.Find(context.Background(), DocumentHint{}, pool, nil)
	if !errors.Is(err, ErrMissingLanguage) {
		t.Fatalf("err = %v, want ErrMissingLanguage", err)
	}
	var pe *PoolError
	if !errors.As(err, &pe) || pe.Index != 0 || pe.Name != "broken" {
		t.Errorf("pool error = %+v", pe)
	}

	pool = []ConnectionMetadata{nil}
	if _, err := m.Find(context.Background(), DocumentHint{}, pool, nil); !errors.Is(err, ErrNilCandidate) {
		t.Errorf("err = %v, want ErrNilCandidate", err)
	}
}

func TestFindRemotePrefersLiveKernel(t *testing.T) {
	live := LiveKernelConnection{Model: LiveKernelModel{
		ID:       "k1",
		Name:     "python3",
		Language: "python",
	}}
	pool := []ConnectionMetadata{
		specConn("python3", "Python 3", "python"),
		live,
	}
	m := NewMatcher()

	hint := DocumentHint{KernelSpecName: "python3", Language: "python"}
	got, err := m.FindRemote(context.Background(), hint, pool)
	if err != nil {
		t.Fatalf("FindRemote: %v", err)
	}
	if got.Connection.Kind() != KindLiveKernel {
		t.Errorf("kind = %v, want live kernel", got.Connection.Kind())
	}
}

func TestFindRemoteServerDefault(t *testing.T) {
	pool := []ConnectionMetadata{
		specConn("python3", "Python 3", "python"),
		DefaultKernelConnection{Spec: KernelSpec{Name: "ir", DisplayName: "R", Language: "r"}},
	}
	m := NewMatcher()

	got, err := m.FindRemote(context.Background(), DocumentHint{Language: "julia"}, pool)
	if err != nil {
		t.Fatalf("FindRemote: %v", err)
	}
	if got.Tier != TierServerDefault {
		t.Errorf("tier = %v", got.Tier)
	}
	if got.Connection.Kind() != KindDefaultKernel {
		t.Errorf("kind = %v", got.Connection.Kind())
	}
}

func TestFindRemoteNotFound(t *testing.T) {
	pool := []ConnectionMetadata{specConn("python3", "Python 3", "python")}
	m := NewMatcher()

	got, err := m.FindRemote(context.Background(), DocumentHint{Language: "julia"}, pool)
	if err != nil {
		t.Fatalf("FindRemote: %v", err)
	}
	if got.Outcome != OutcomeNotFound {
		t.Errorf("outcome = %v", got.Outcome)
	}
}

func TestRankOrdersByFit(t *testing.T) {
	exact := specConn("py3", "Python 3", "python")
	loose := specConn("py3.8", "Python 3.8", "python")
	langOnly := specConn("other", "Other Python", "python")
	offLanguage := specConn("ir", "R", "r")
	pool := []ConnectionMetadata{offLanguage, langOnly, loose, exact}
	m := NewMatcher()

	ranked := m.Rank(DocumentHint{KernelSpecName: "py3", Language: "python"}, pool)
	want := []string{"py3", "py3.8", "other", "ir"}
	for i, w := range want {
		if specName(ranked[i]) != w {
			t.Errorf("ranked[%d] = %q, want %q", i, specName(ranked[i]), w)
		}
	}
}
