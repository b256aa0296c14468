// Package session orchestrates the lifecycle of one live document bound to
// one kernel connection: executing cells, applying the resulting output and
// status events to the document, and serializing interrupt/restart requests.
//
// The package owns no transport. A Connection is the boundary to whatever
// speaks the Jupyter protocol; the session consumes its event stream and
// turns each event into a mutation scheduled on the document's chain, so
// execution counts, streamed output and status updates never race each
// other into the live model. Executions against one kernel are chained the
// same way: a second Execute, Interrupt or Restart waits for the first to
// settle.
package session
