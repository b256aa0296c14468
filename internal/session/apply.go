package session

import (
	"sync"

	"go.uber.org/zap"

	"nbweave/internal/document"
	"nbweave/internal/format"
)

// execState is the per-execution bookkeeping shared by the mutation ops of
// one cell run. Ops on a document chain run strictly one at a time, so the
// fields need no locking: every access happens inside a chained op.
type execState struct {
	// clearPending records a clear_output with wait=true: the clear is
	// applied right before the next output lands.
	clearPending bool
}

// applyOutput lands one output event in the document. Runs on the
// document's mutation chain.
func (s *Session) applyOutput(cellID string, wireOut format.WireOutput, st *execState) error {
	if st.clearPending {
		st.clearPending = false
		s.displays.forgetCell(cellID)
		if err := s.doc.ClearOutputs(cellID); err != nil {
			return err
		}
	}

	if wireOut.OutputType == format.OutputTypeUpdateDisplayData {
		return s.applyDisplayUpdate(wireOut)
	}

	out := s.codec.WireOutputToLive(wireOut)

	// Consecutive chunks of the same stream coalesce into one output, so
	// a print loop yields one stdout block instead of hundreds.
	if wireOut.OutputType == format.OutputTypeStream {
		if last, idx, ok := s.doc.LastOutput(cellID); ok {
			if merged, same := mergeStream(last, out); same {
				return s.doc.ReplaceOutputAt(cellID, idx, merged)
			}
		}
	}

	idx, err := s.doc.AppendOutput(cellID, out)
	if err != nil {
		return err
	}
	if id := displayID(wireOut.Transient); id != "" {
		s.displays.record(id, cellID, idx)
	}
	return nil
}

// applyDisplayUpdate rewrites every output showing the update's display ID.
// The stored outputs keep their display_data identity; only the content
// changes. Runs on the document's mutation chain.
func (s *Session) applyDisplayUpdate(wireOut format.WireOutput) error {
	id := displayID(wireOut.Transient)
	if id == "" {
		s.logger.Warn("update_display_data without display_id, dropping")
		return nil
	}
	targets := s.displays.lookup(id)
	if len(targets) == 0 {
		s.logger.Debug("display update for untracked id", zap.String("display_id", id))
		return nil
	}

	replacement := wireOut
	replacement.OutputType = format.OutputTypeDisplayData
	out := s.codec.WireOutputToLive(replacement)
	for _, tgt := range targets {
		if err := s.doc.ReplaceOutputAt(tgt.cellID, tgt.index, out); err != nil {
			return err
		}
	}
	return nil
}

// mergeStream merges b onto a when both are single-item stream outputs on
// the same channel. Outputs are immutable, so merging builds a new value.
func mergeStream(a, b document.Output) (document.Output, bool) {
	if a.OutputType() != format.OutputTypeStream || b.OutputType() != format.OutputTypeStream {
		return document.Output{}, false
	}
	if len(a.Items) != 1 || len(b.Items) != 1 || a.Items[0].Mime != b.Items[0].Mime {
		return document.Output{}, false
	}
	data := make([]byte, 0, len(a.Items[0].Data)+len(b.Items[0].Data))
	data = append(data, a.Items[0].Data...)
	data = append(data, b.Items[0].Data...)
	merged := document.NewOutput(
		[]document.Item{{Mime: a.Items[0].Mime, Data: data}},
		a.Metadata,
	)
	return merged, true
}

// displayID extracts transient.display_id, or "" when untagged.
func displayID(transient map[string]any) string {
	if transient == nil {
		return ""
	}
	id, _ := transient["display_id"].(string)
	return id
}

// displayTarget is one output position showing a display ID.
type displayTarget struct {
	cellID string
	index  int
}

// displayTracker maps display IDs to the output positions showing them so
// update_display_data can rewrite every occurrence in place.
type displayTracker struct {
	mu      sync.Mutex
	targets map[string][]displayTarget
}

func newDisplayTracker() *displayTracker {
	return &displayTracker{targets: make(map[string][]displayTarget)}
}

func (t *displayTracker) record(id, cellID string, index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[id] = append(t.targets[id], displayTarget{cellID: cellID, index: index})
}

// lookup returns a copy of the positions for id.
func (t *displayTracker) lookup(id string) []displayTarget {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.targets[id]
	if len(src) == 0 {
		return nil
	}
	out := make([]displayTarget, len(src))
	copy(out, src)
	return out
}

// forgetCell drops every target inside cellID. Called when the cell's
// outputs are cleared, which invalidates recorded indices.
func (t *displayTracker) forgetCell(cellID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, targets := range t.targets {
		keep := targets[:0]
		for _, tgt := range targets {
			if tgt.cellID != cellID {
				keep = append(keep, tgt)
			}
		}
		if len(keep) == 0 {
			delete(t.targets, id)
		} else {
			t.targets[id] = keep
		}
	}
}

// reset drops everything. Called after a kernel restart: the kernel that
// owned these display IDs is gone.
func (t *displayTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets = make(map[string][]displayTarget)
}
