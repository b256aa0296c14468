// Package discovery finds the kernels a document can connect to.
//
// Local kernels come from kernelspec directories on disk (JUPYTER_PATH,
// the user's Jupyter data directory, system locations). Remote kernels
// come from a Jupyter server's kernelspec and session listings; the HTTP
// transport stays outside this package, which only parses the payloads.
//
// CachedLister wraps a Lister with an immutable pool snapshot so matching
// never observes a half-refreshed pool, and watches kernelspec roots to
// refresh the snapshot when specs are installed or removed.
package discovery
