package mutation

import (
	"context"
	"sync"
	"sync/atomic"
)

// Op is a unit of work scheduled on a chain. The context is the one passed
// to Schedule; ops should honor its cancellation for long work.
type Op func(ctx context.Context) error

// chain tracks one key's in-flight operations. tail is closed when the
// most recently scheduled operation finishes.
type chain struct {
	tail    chan struct{}
	pending int
}

// Queue serializes operations per key. The zero value is not usable; use
// NewQueue.
type Queue struct {
	mu     sync.Mutex
	chains map[string]*chain
	closed bool
	wg     sync.WaitGroup

	scheduled atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Scheduled int64
	Completed int64
	Failed    int64
	Panicked  int64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{chains: make(map[string]*chain)}
}

// start is a pre-closed channel: the head of every new chain.
var start = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Schedule appends op to the chain for key and returns its Ticket. The op
// runs after every previously scheduled op for the same key has settled.
// If ctx is canceled before the op's turn comes, the op is skipped and the
// ticket settles with the context error; the chain continues either way.
func (q *Queue) Schedule(ctx context.Context, key string, op Op) *Ticket {
	if op == nil {
		return settled(ErrNilOp)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return settled(ErrQueueClosed)
	}
	ch, ok := q.chains[key]
	if !ok {
		ch = &chain{tail: start}
		q.chains[key] = ch
	}
	prev := ch.tail
	next := make(chan struct{})
	ch.tail = next
	ch.pending++
	q.scheduled.Add(1)
	q.wg.Add(1)
	q.mu.Unlock()

	t := newTicket()
	go q.run(key, ch, op, ctx, t, prev, next)
	return t
}

func (q *Queue) run(key string, ch *chain, op Op, ctx context.Context, t *Ticket, prev <-chan struct{}, next chan struct{}) {
	defer q.wg.Done()

	<-prev
	err := q.invoke(ctx, op)
	t.settle(err)
	close(next)

	if err != nil {
		q.failed.Add(1)
	} else {
		q.completed.Add(1)
	}

	q.mu.Lock()
	ch.pending--
	if ch.pending == 0 && q.chains[key] == ch {
		delete(q.chains, key)
	}
	q.mu.Unlock()
}

// invoke runs op with panic recovery, skipping it when ctx is already done.
func (q *Queue) invoke(ctx context.Context, op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			err = &PanicError{Value: r}
		}
	}()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return op(ctx)
}

// Flush blocks until every operation scheduled for key before the call has
// settled, or until ctx is done. Operations scheduled after Flush begins
// are not waited for.
func (q *Queue) Flush(ctx context.Context, key string) error {
	q.mu.Lock()
	ch, ok := q.chains[key]
	if !ok {
		q.mu.Unlock()
		return nil
	}
	tail := ch.tail
	q.mu.Unlock()

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forget drops the chain bookkeeping for key, typically on document close.
// In-flight operations still run to completion, but later Schedule calls
// with the same key start a fresh chain that does not wait for them.
func (q *Queue) Forget(key string) {
	q.mu.Lock()
	delete(q.chains, key)
	q.mu.Unlock()
}

// Pending returns the number of unsettled operations for key.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.chains[key]; ok {
		return ch.pending
	}
	return 0
}

// Len returns the number of keys with work in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chains)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Scheduled: q.scheduled.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Panicked:  q.panicked.Load(),
	}
}

// Close stops intake and waits for in-flight operations to settle, or for
// ctx to be done. Schedule calls made after Close return ErrQueueClosed.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
