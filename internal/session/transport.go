package session

import (
	"context"

	"nbweave/internal/format"
)

// EventKind discriminates the events observed while a cell executes.
type EventKind int

const (
	// EventExecuteInput reports the kernel accepted the submission and
	// assigned it an execution count.
	EventExecuteInput EventKind = iota
	// EventOutput carries one output payload: stream, display_data,
	// execute_result, update_display_data or error.
	EventOutput
	// EventClearOutput asks for the cell's outputs to be cleared.
	EventClearOutput
	// EventStatus reports a kernel execution-state transition.
	EventStatus
	// EventDone ends the stream: the round-trip settled.
	EventDone
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventExecuteInput:
		return "execute_input"
	case EventOutput:
		return "output"
	case EventClearOutput:
		return "clear_output"
	case EventStatus:
		return "status"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// ExecutionEvent is one message observed during a cell execution.
type ExecutionEvent struct {
	Kind EventKind

	// ExecutionCount is set on EventExecuteInput: the count the kernel
	// assigned to this submission.
	ExecutionCount *int

	// Output is set on EventOutput, in wire form.
	Output format.WireOutput

	// Wait is set on EventClearOutput: true defers the clear until the
	// next output arrives, so the display never flashes empty.
	Wait bool

	// State is set on EventStatus.
	State Status

	// Err is set on EventDone when the execution failed at the transport
	// level. Exceptions raised by the executed code arrive as error
	// outputs, not here.
	Err error
}

// Connection is the kernel transport boundary. Implementations speak the
// Jupyter protocol over whatever medium they like; the session only
// consumes these shapes.
type Connection interface {
	// ID identifies the underlying kernel. Stable for the connection's
	// lifetime; used to chain executions per kernel.
	ID() string

	// Execute submits code for execution and returns the event stream.
	// The channel delivers events in kernel-emission order and is closed
	// after EventDone.
	Execute(ctx context.Context, code string) (<-chan ExecutionEvent, error)

	// Complete resolves completions at a cursor offset and returns the
	// raw complete_reply content JSON.
	Complete(ctx context.Context, code string, cursor int) ([]byte, error)

	// Interrupt asks the kernel to interrupt the running execution.
	Interrupt(ctx context.Context) error

	// Restart restarts the kernel process, dropping its state.
	Restart(ctx context.Context) error

	// Shutdown stops the kernel.
	Shutdown(ctx context.Context) error

	// StatusChanges streams execution-state transitions. The channel is
	// closed when the connection goes away.
	StatusChanges() <-chan Status
}
