// Package format translates between the Jupyter notebook wire format
// (nbformat >= 4 JSON) and the live document model in internal/document.
//
// The translation is lossless: a document loaded from well-formed notebook
// bytes and saved again produces a model-identical notebook, with the
// exception of fields that are deliberately never persisted (per-output
// transient bags and this module's own session bookkeeping).
//
// CellCodec converts single cells and outputs; NotebookCodec builds on it
// for whole documents, handling format-version defaults, indentation
// detection, the at-least-one-cell rule, and save-time pruning.
package format
