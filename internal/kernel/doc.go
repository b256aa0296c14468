// Package kernel models kernel connection metadata and resolves which
// kernel a notebook should use.
//
// A connection is a tagged variant: start a kernel from an interpreter,
// start one from a kernelspec, attach to an already-running kernel, or use
// a server's declared default. Every variant derives a stable ID used for
// equality and for the per-document preferred-kernel store.
//
// The Matcher walks a fixed tier order over a candidate pool: previously
// recorded connection, exact identity, language match with name
// preference, then (locally) the user's active Python interpreter. "No
// match" is an explicit result, never an error; the only errors are
// malformed pool entries.
package kernel
