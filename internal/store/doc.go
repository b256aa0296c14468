// Package store remembers which kernel each notebook last used.
//
// Entries are keyed by a CRC-32 hash of the document URI and bounded: once
// the store exceeds its capacity the least recently recorded entries are
// evicted. A lookup miss is a normal result, not an error, mirroring the
// matcher's not-found-as-result contract. Two implementations are provided:
// an in-memory store for tests and ephemeral use, and a SQLite-backed store
// for persistence across sessions.
package store
