// Package document defines the live notebook model consumed and mutated by
// the editing surface: documents, cells, and output bundles, plus an explicit
// registry that owns document lifecycles.
//
// The live model is deliberately separate from the wire format (see
// internal/format): wire cells are what .ipynb files and kernel messages
// carry, live cells are what the editor renders and mutates. Translation
// between the two is the format package's job.
//
// All Document methods are safe for concurrent use, but ordering between
// mutations is not this package's concern: callers that need "mutation A
// commits before mutation B" must route both through a mutation.Queue keyed
// by the document ID.
package document
