package completion

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultKernelTimeout bounds the kernel completion round-trip: generous
// enough for a loaded kernel, short enough to not block typing.
const DefaultKernelTimeout = 1000 * time.Millisecond

// sortKeyLimit caps the number of distinct sort keys. Items past it share
// the terminal key; their relative order is an accepted loss.
const sortKeyLimit = 300

// KernelCompleter requests completions from a live kernel.
type KernelCompleter interface {
	// Busy reports whether the kernel is mid-execution. Busy kernels are
	// skipped entirely rather than queued behind a running cell.
	Busy() bool

	// Complete resolves candidates at a cursor position in cell code.
	Complete(ctx context.Context, req Request) (*KernelReply, error)
}

// StaticProvider supplies candidates from a static language service.
type StaticProvider interface {
	Complete(ctx context.Context, req Request) ([]Item, error)
}

// Request is one completion request.
type Request struct {
	// Code is the full cell text.
	Code string

	// Cursor is a byte offset into Code.
	Cursor int

	// TriggerCharacter is the character that fired the request, "" when
	// invoked manually.
	TriggerCharacter string
}

// Reconciler merges kernel and static completion lists.
type Reconciler struct {
	timeout    time.Duration
	pathFilter bool
	logger     *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithKernelTimeout bounds the kernel completion request.
func WithKernelTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithStringPathFilter toggles restricting in-string completions to
// path-like candidates. Enabled by default.
func WithStringPathFilter(enabled bool) Option {
	return func(r *Reconciler) { r.pathFilter = enabled }
}

// WithLogger sets the reconciler's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler creates a completion reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		timeout:    DefaultKernelTimeout,
		pathFilter: true,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile fans out to the kernel and the static provider, then merges.
// Either provider may be nil. The result is always usable: timeouts,
// kernel errors, busy kernels and cancellation degrade to whatever
// candidates remain, down to an empty list, and never to an error.
func (r *Reconciler) Reconcile(ctx context.Context, kc KernelCompleter, sp StaticProvider, req Request) Result {
	var kernelItems, staticItems []Item

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kernelItems = r.collectKernel(gctx, kc, req)
		return nil
	})
	g.Go(func() error {
		staticItems = r.collectStatic(gctx, sp, req)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return Result{Items: []Item{}}
	}

	cur := AnalyzeCursor(req.Code, req.Cursor)
	kernelItems = stripMemberPrefix(kernelItems, cur)
	kernelItems = r.filterByContext(kernelItems, cur, req.TriggerCharacter)
	kernelItems = dropDuplicates(kernelItems, staticItems)

	merged := rank(staticItems, kernelItems)
	r.logger.Debug("completions reconciled",
		zap.Int("static", len(staticItems)),
		zap.Int("kernel", len(kernelItems)),
		zap.Int("total", len(merged)))
	return Result{Items: merged, Incomplete: len(merged) > sortKeyLimit}
}

// collectKernel requests kernel completions bounded by the timeout. The
// request is abandoned on timeout or cancellation: the result is
// discarded without being awaited further.
func (r *Reconciler) collectKernel(ctx context.Context, kc KernelCompleter, req Request) []Item {
	if kc == nil {
		return nil
	}
	if kc.Busy() {
		r.logger.Debug("kernel busy, skipping completion request")
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		rep *KernelReply
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		rep, err := kc.Complete(tctx, req)
		ch <- outcome{rep, err}
	}()

	select {
	case <-tctx.Done():
		r.logger.Debug("kernel completion abandoned", zap.Error(tctx.Err()))
		return nil
	case out := <-ch:
		if out.err != nil {
			r.logger.Debug("kernel completion failed", zap.Error(out.err))
			return nil
		}
		if out.rep == nil || (out.rep.Status != "" && out.rep.Status != "ok") {
			return nil
		}
		return itemsFromReply(out.rep)
	}
}

func (r *Reconciler) collectStatic(ctx context.Context, sp StaticProvider, req Request) []Item {
	if sp == nil {
		return nil
	}
	items, err := sp.Complete(ctx, req)
	if err != nil {
		r.logger.Debug("static completion failed", zap.Error(err))
		return nil
	}
	for i := range items {
		items[i].Source = SourceStatic
		if items[i].InsertText == "" {
			items[i].InsertText = items[i].Label
		}
	}
	return items
}

// itemsFromReply converts a kernel reply into items, joining the
// experimental type metadata by match text.
func itemsFromReply(rep *KernelReply) []Item {
	kinds := make(map[string]Kind, len(rep.Types))
	for _, t := range rep.Types {
		kinds[t.Text] = kindFromJupyterType(t.Type)
	}

	rng := Range{Start: rep.CursorStart, End: rep.CursorEnd}
	items := make([]Item, 0, len(rep.Matches))
	for _, m := range rep.Matches {
		items = append(items, Item{
			Label:      m,
			Kind:       kinds[m],
			InsertText: m,
			Range:      rng,
			Source:     SourceKernel,
		})
	}
	return items
}

// stripMemberPrefix rewrites dotted kernel labels when the cursor word is
// a member access: completing os.pa| turns "os.path" into "path" with the
// replacement range shifted past the dot, so only the suffix is inserted.
// This runs before context filtering so dotted member labels survive the
// outside-string path filter as plain suffixes.
func stripMemberPrefix(items []Item, cur CursorContext) []Item {
	if cur.DotPrefix == "" {
		return items
	}
	shift := len(cur.DotPrefix)
	for i, it := range items {
		if !strings.HasPrefix(it.Label, cur.DotPrefix) {
			continue
		}
		items[i].Label = it.Label[shift:]
		items[i].InsertText = it.Label[shift:]
		items[i].Range.Start = it.Range.Start + shift
	}
	return items
}

// filterByContext applies the string-context rules: inside a string (or
// on a quote trigger) only path-like candidates survive; outside strings
// path-like candidates are dropped as noise.
func (r *Reconciler) filterByContext(items []Item, cur CursorContext, trigger string) []Item {
	inString := cur.InString || trigger == `"` || trigger == "'"
	if inString && !r.pathFilter {
		return items
	}

	keep := items[:0]
	for _, it := range items {
		if inString {
			if pathLikeInString(it.Label) {
				keep = append(keep, it)
			}
			continue
		}
		if !pathLike(it.Label) {
			keep = append(keep, it)
		}
	}
	return keep
}

// pathLikeInString matches candidates plausible as filesystem paths:
// dotted names (filenames carry extensions) or anything ending in a
// separator.
func pathLikeInString(label string) bool {
	return strings.Contains(label, ".") || strings.HasSuffix(label, "/")
}

// pathLike matches candidates that are path fragments.
func pathLike(label string) bool {
	return strings.Contains(label, "/")
}

// dropDuplicates removes kernel candidates whose label the static set
// already carries; static analysis wins on duplicates because it has the
// richer type and documentation info.
func dropDuplicates(kernelItems, staticItems []Item) []Item {
	if len(kernelItems) == 0 || len(staticItems) == 0 {
		return kernelItems
	}
	seen := make(map[string]bool, len(staticItems))
	for _, it := range staticItems {
		seen[it.Label] = true
	}
	keep := kernelItems[:0]
	for _, it := range kernelItems {
		if !seen[it.Label] {
			keep = append(keep, it)
		}
	}
	return keep
}

// rank merges the lists and freezes positions into sort keys: static
// items first, then kernel items, with magics and shell escapes demoted
// behind everything normal.
func rank(staticItems, kernelItems []Item) []Item {
	merged := make([]Item, 0, len(staticItems)+len(kernelItems))
	var demoted []Item
	classify := func(it Item) {
		if isMagic(it.Label) {
			demoted = append(demoted, it)
			return
		}
		merged = append(merged, it)
	}
	for _, it := range staticItems {
		classify(it)
	}
	for _, it := range kernelItems {
		classify(it)
	}
	merged = append(merged, demoted...)

	for i := range merged {
		merged[i].SortKey = sortKey(i)
	}
	return merged
}

// isMagic matches line/cell magics and shell escapes.
func isMagic(label string) bool {
	return strings.HasPrefix(label, "%") || strings.HasPrefix(label, "!")
}

// sortKey returns the two-letter base-26 key for a position. Keys sort
// lexicographically, so host editors sorting items as strings preserve
// list order; positions past the limit share "zz".
func sortKey(i int) string {
	if i >= sortKeyLimit {
		return "zz"
	}
	return string([]byte{'a' + byte(i/26), 'a' + byte(i%26)})
}
