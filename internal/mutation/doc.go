// Package mutation provides an ordered asynchronous operation queue.
//
// A Queue maintains one chain per key. Operations scheduled under the same
// key run strictly in submission order, one at a time; operations under
// different keys run independently. Documents use their document ID as the
// key so edits, output writes, and saves observe a single total order, and
// kernel sessions use a kernel-scoped key so execute, interrupt, and
// restart requests are serialized per kernel.
//
// A failed or panicking operation settles only its own Ticket. The chain
// itself is never poisoned: the next operation runs regardless of the
// previous outcome. Idle chains are removed automatically, so the queue's
// footprint tracks the set of keys with work in flight.
package mutation
