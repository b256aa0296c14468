// Package event provides a small synchronous pub/sub bus.
//
// Topics are hierarchical dot-separated strings ("document.saved",
// "kernel.status.changed"). Subscriptions match topics with patterns where
// "*" matches exactly one segment and "**" matches zero or more.
//
// Delivery is synchronous and in subscription order: Publish invokes every
// matching handler on the caller's goroutine before returning. A panicking
// handler is isolated and counted; it never takes down the publisher or
// the remaining handlers. Handlers that need asynchrony schedule their own
// work (typically on a mutation.Queue).
package event
