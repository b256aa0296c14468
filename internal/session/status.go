package session

// Status is the kernel execution state as reported over the transport.
type Status int

const (
	// StatusUnknown is the state before the first report arrives.
	StatusUnknown Status = iota
	// StatusStarting means the kernel process is coming up.
	StatusStarting
	// StatusIdle means the kernel is ready for work.
	StatusIdle
	// StatusBusy means the kernel is executing.
	StatusBusy
	// StatusRestarting means a requested restart is in progress.
	StatusRestarting
	// StatusAutorestarting means the kernel died and is being revived.
	StatusAutorestarting
	// StatusTerminating means a shutdown is in progress.
	StatusTerminating
	// StatusDead means the kernel is gone and will not come back.
	StatusDead
)

// String returns the Jupyter execution_state spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusRestarting:
		return "restarting"
	case StatusAutorestarting:
		return "autorestarting"
	case StatusTerminating:
		return "terminating"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Available reports whether a kernel in this state can take a request
// without queueing behind running work or a lifecycle transition.
func (s Status) Available() bool {
	switch s {
	case StatusUnknown, StatusStarting, StatusIdle:
		return true
	default:
		return false
	}
}

// ParseStatus maps a Jupyter execution_state string onto a Status.
// Unrecognized states parse as StatusUnknown.
func ParseStatus(state string) Status {
	switch state {
	case "starting":
		return StatusStarting
	case "idle":
		return StatusIdle
	case "busy":
		return StatusBusy
	case "restarting":
		return StatusRestarting
	case "autorestarting":
		return StatusAutorestarting
	case "terminating":
		return StatusTerminating
	case "dead":
		return StatusDead
	default:
		return StatusUnknown
	}
}
