// Package app assembles the notebook core into one service: documents
// opened and saved through a storage boundary, kernel selection and
// session attachment, execution and completion entry points, and the bus
// subscribers that mirror kernel changes back into documents and the
// preferred-kernel store.
//
// The service owns the shared mutation queue. Every document change,
// including the save itself, is scheduled on the document's chain, so a
// save always observes the mutations issued before it.
package app
