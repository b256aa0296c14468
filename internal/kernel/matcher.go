package kernel

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// DependencyChecker probes whether an interpreter can execute notebook
// cells, i.e. whether the kernel adapter package (ipykernel) is installed
// in its environment.
type DependencyChecker interface {
	HasKernelPackage(ctx context.Context, interp Interpreter) (bool, error)
}

// Outcome describes how a Find resolved.
type Outcome int

const (
	// OutcomeFound means Connection is ready to use.
	OutcomeFound Outcome = iota
	// OutcomeDependencyMissing means the fallback interpreter was selected
	// but lacks the kernel package; Connection names the interpreter so
	// the caller can offer to install it or pick another kernel.
	OutcomeDependencyMissing
	// OutcomeNotFound means nothing in the pool fits the hint.
	OutcomeNotFound
)

// String returns a human-readable outcome string.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeDependencyMissing:
		return "dependency missing"
	case OutcomeNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Tier identifies which matching tier produced a connection.
type Tier int

const (
	// TierNone means no tier matched.
	TierNone Tier = iota
	// TierPreferred matched the connection ID recorded for the document.
	TierPreferred
	// TierExactIdentity matched by normalized name+language or
	// interpreter path.
	TierExactIdentity
	// TierLanguage matched by language, possibly with a version-suffix
	// tolerant name preference.
	TierLanguage
	// TierInterpreterFallback synthesized a connection from the active
	// Python interpreter.
	TierInterpreterFallback
	// TierServerDefault selected a remote server's declared default.
	TierServerDefault
)

// String returns a human-readable tier string.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierPreferred:
		return "preferred"
	case TierExactIdentity:
		return "exact"
	case TierLanguage:
		return "language"
	case TierInterpreterFallback:
		return "interpreter"
	case TierServerDefault:
		return "server-default"
	default:
		return "unknown"
	}
}

// Match is the result of a Find. Connection is set for OutcomeFound and
// OutcomeDependencyMissing, nil for OutcomeNotFound.
type Match struct {
	Outcome    Outcome
	Connection ConnectionMetadata
	Tier       Tier
}

// Matcher resolves which kernel a notebook should use.
type Matcher struct {
	logger *zap.Logger
	deps   DependencyChecker
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the matcher's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDependencyChecker sets the probe used on the interpreter-fallback
// tier. Without one, fallback interpreters are assumed ready.
func WithDependencyChecker(deps DependencyChecker) Option {
	return func(m *Matcher) { m.deps = deps }
}

// NewMatcher creates a kernel connection matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Find resolves a connection for a local notebook. The pool is read-only
// during the call; discovery publishes new pool snapshots atomically
// rather than mutating one in place.
//
// Tier order: the connection recorded for the document, exact identity
// (normalized name+language, or interpreter path), language match with a
// version-suffix tolerant name preference, then the active Python
// interpreter when the notebook is Python-family. Equal-rank candidates
// tie-break by display name ascending.
//
// "No match" is OutcomeNotFound, not an error. Errors are returned only
// for malformed pool entries.
func (m *Matcher) Find(ctx context.Context, hint DocumentHint, pool []ConnectionMetadata, fallback *Interpreter) (Match, error) {
	if err := validatePool(pool); err != nil {
		return Match{Outcome: OutcomeNotFound}, err
	}

	if c := findByID(hint.PreferredID, pool); c != nil {
		return m.found(c, TierPreferred), nil
	}
	if c := exactMatch(hint, pool, false); c != nil {
		return m.found(c, TierExactIdentity), nil
	}
	if c := languageMatch(hint, pool, false); c != nil {
		return m.found(c, TierLanguage), nil
	}

	if fallback != nil && pythonFamily(hint.Language) {
		conn := PythonInterpreterConnection{Interpreter: *fallback}
		if m.deps != nil {
			ok, err := m.deps.HasKernelPackage(ctx, *fallback)
			if err != nil {
				m.logger.Warn("kernel package probe failed",
					zap.String("interpreter", fallback.Path),
					zap.Error(err))
				return Match{Outcome: OutcomeDependencyMissing, Connection: conn}, nil
			}
			if !ok {
				m.logger.Debug("fallback interpreter lacks kernel package",
					zap.String("interpreter", fallback.Path))
				return Match{Outcome: OutcomeDependencyMissing, Connection: conn}, nil
			}
		}
		return m.found(conn, TierInterpreterFallback), nil
	}

	m.logger.Debug("no kernel matched",
		zap.String("name", hint.KernelSpecName),
		zap.String("language", hint.Language),
		zap.Int("pool", len(pool)))
	return Match{Outcome: OutcomeNotFound}, nil
}

// FindRemote resolves a connection against a live server's listing. The
// tiering matches Find, with two differences: running kernels are
// preferred over starting new ones at equal rank, and the final fallback
// is the server's declared default kernel instead of a local interpreter.
func (m *Matcher) FindRemote(ctx context.Context, hint DocumentHint, pool []ConnectionMetadata) (Match, error) {
	if err := validatePool(pool); err != nil {
		return Match{Outcome: OutcomeNotFound}, err
	}

	if c := findByID(hint.PreferredID, pool); c != nil {
		return m.found(c, TierPreferred), nil
	}
	if c := exactMatch(hint, pool, true); c != nil {
		return m.found(c, TierExactIdentity), nil
	}
	if c := languageMatch(hint, pool, true); c != nil {
		return m.found(c, TierLanguage), nil
	}

	var def ConnectionMetadata
	for _, c := range pool {
		if c.Kind() != KindDefaultKernel {
			continue
		}
		if def == nil || c.DisplayName() < def.DisplayName() {
			def = c
		}
	}
	if def != nil {
		return m.found(def, TierServerDefault), nil
	}

	m.logger.Debug("no remote kernel matched",
		zap.String("name", hint.KernelSpecName),
		zap.String("language", hint.Language),
		zap.Int("pool", len(pool)))
	return Match{Outcome: OutcomeNotFound}, nil
}

// Rank orders the pool by fit for the hint, best first, for presenting a
// manual choice. The input slice is not modified.
func (m *Matcher) Rank(hint DocumentHint, pool []ConnectionMetadata) []ConnectionMetadata {
	ranked := make([]ConnectionMetadata, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := fitScore(hint, ranked[i]), fitScore(hint, ranked[j])
		if si != sj {
			return si < sj
		}
		return ranked[i].DisplayName() < ranked[j].DisplayName()
	})
	return ranked
}

func (m *Matcher) found(c ConnectionMetadata, tier Tier) Match {
	m.logger.Debug("kernel matched",
		zap.String("tier", tier.String()),
		zap.String("id", c.ID()),
		zap.String("display", c.DisplayName()))
	return Match{Outcome: OutcomeFound, Connection: c, Tier: tier}
}

// fitScore buckets a candidate's fit for the hint; lower is better.
func fitScore(hint DocumentHint, c ConnectionMetadata) int {
	switch {
	case hint.PreferredID != "" && c.ID() == hint.PreferredID:
		return 0
	case exactIdentity(hint, c):
		return 1
	case hint.Language != "" && languageEqual(c.Language(), hint.Language):
		if hint.KernelSpecName != "" && looseNameEqual(specName(c), hint.KernelSpecName) {
			return 2
		}
		return 3
	default:
		return 4
	}
}

func validatePool(pool []ConnectionMetadata) error {
	for i, c := range pool {
		if c == nil {
			return &PoolError{Index: i, Err: ErrNilCandidate}
		}
		switch v := c.(type) {
		case KernelSpecConnection:
			if err := validateSpec(i, v.Spec); err != nil {
				return err
			}
		case DefaultKernelConnection:
			if err := validateSpec(i, v.Spec); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSpec(index int, spec KernelSpec) error {
	if spec.Name == "" {
		return &PoolError{Index: index, Err: ErrMissingName}
	}
	if spec.Language == "" {
		return &PoolError{Index: index, Name: spec.Name, Err: ErrMissingLanguage}
	}
	return nil
}

func findByID(id string, pool []ConnectionMetadata) ConnectionMetadata {
	if id == "" {
		return nil
	}
	for _, c := range pool {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// exactMatch returns the best candidate whose normalized identity equals
// the hint's, nil if none.
func exactMatch(hint DocumentHint, pool []ConnectionMetadata, preferLive bool) ConnectionMetadata {
	var best ConnectionMetadata
	for _, c := range pool {
		if !exactIdentity(hint, c) {
			continue
		}
		if best == nil || better(c, best, preferLive) {
			best = c
		}
	}
	return best
}

func exactIdentity(hint DocumentHint, c ConnectionMetadata) bool {
	if hint.InterpreterPath != "" {
		if p := interpreterPath(c); p != "" && NormalizePath(p) == NormalizePath(hint.InterpreterPath) {
			return true
		}
	}
	if hint.KernelSpecName == "" {
		return false
	}
	if normalizeName(specName(c)) != normalizeName(hint.KernelSpecName) {
		return false
	}
	if hint.Language != "" && !languageEqual(c.Language(), hint.Language) {
		return false
	}
	return true
}

// languageMatch returns the best candidate matching the hint's language,
// preferring name matches across version suffixes, nil if none.
func languageMatch(hint DocumentHint, pool []ConnectionMetadata, preferLive bool) ConnectionMetadata {
	if hint.Language == "" {
		return nil
	}
	var (
		best     ConnectionMetadata
		bestRank int
	)
	for _, c := range pool {
		if !languageEqual(c.Language(), hint.Language) {
			continue
		}
		rank := 1
		if hint.KernelSpecName != "" && looseNameEqual(specName(c), hint.KernelSpecName) {
			rank = 0
		}
		switch {
		case best == nil,
			rank < bestRank,
			rank == bestRank && better(c, best, preferLive):
			best, bestRank = c, rank
		}
	}
	return best
}

// better reports whether a should win over b at equal rank.
func better(a, b ConnectionMetadata, preferLive bool) bool {
	if preferLive {
		al, bl := a.Kind() == KindLiveKernel, b.Kind() == KindLiveKernel
		if al != bl {
			return al
		}
	}
	return a.DisplayName() < b.DisplayName()
}

func pythonFamily(language string) bool {
	return language == "" || languageEqual(language, "python")
}
