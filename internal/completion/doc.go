// Package completion merges kernel-sourced and static-analysis completion
// candidates at a cursor position into one ranked list.
//
// The two requests fan out concurrently. The kernel side is bounded by a
// timeout and skipped outright when the kernel is busy; either way the
// reconciler degrades to the static result instead of failing, so a
// completion request never surfaces an error to the editing surface.
//
// Filtering follows cursor context: inside string literals only path-like
// candidates survive (string completions are assumed to be filesystem
// paths), outside strings path-like candidates are dropped as noise.
// Magics and shell escapes rank after normal items, duplicates resolve in
// favor of the static provider, and final positions are frozen into
// two-letter sort keys so host editors sorting by string preserve the
// order.
package completion
