package mutation

import "context"

// Ticket is the future for one scheduled operation. It settles exactly
// once: when the operation returns, when it panics, or when its context
// is canceled before it got to run.
type Ticket struct {
	done chan struct{}
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

// settle records the outcome and releases waiters. Must be called once.
func (t *Ticket) settle(err error) {
	t.err = err
	close(t.done)
}

// Done returns a channel closed when the operation has settled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the operation's outcome. It returns nil until Done is
// closed, so callers that need to distinguish pending from success should
// wait on Done first (or use Wait).
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the operation settles or ctx is done, returning the
// operation's outcome or the context error.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settled returns a pre-resolved ticket, used for scheduling failures.
func settled(err error) *Ticket {
	t := newTicket()
	t.settle(err)
	return t
}
