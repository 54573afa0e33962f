package engine

// State is the engine lifecycle phase. Transitions run strictly forward:
// Uninitialized → Initialized → Configured → Running → Stopping →
// Deinitialized.
type State int

const (
	Uninitialized State = iota
	Initialized
	Configured
	Running
	Stopping
	Deinitialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Deinitialized:
		return "deinitialized"
	}
	return "unknown"
}
