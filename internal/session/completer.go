package session

import (
	"context"

	"nbweave/internal/completion"
)

// Completer returns a completion.KernelCompleter view of the session: busy
// whenever the kernel cannot answer promptly, completing through the
// connection's complete request.
func (s *Session) Completer() completion.KernelCompleter {
	return completer{s: s}
}

type completer struct {
	s *Session
}

var _ completion.KernelCompleter = completer{}

func (c completer) Busy() bool {
	return !c.s.Status().Available()
}

func (c completer) Complete(ctx context.Context, req completion.Request) (*completion.KernelReply, error) {
	raw, err := c.s.conn.Complete(ctx, req.Code, req.Cursor)
	if err != nil {
		return nil, err
	}
	return completion.DecodeKernelReply(raw)
}
