package hantas

import "time"

// ConnState is the pipeline's connection state.
type ConnState int

const (
	Closed ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// connTracker holds the mutable state the worker tick consults to drive
// transitions: when the connection attempt started, when the queue was last
// non-idle (for keep-alive), and when a response was last observed (for
// keep-alive timeout detection).
type connTracker struct {
	state ConnState

	connectedAt time.Time
	lastActivity time.Time
	lastResponseAt time.Time

	keepAliveEnabled bool
	keepAliveSent bool

	// legacy holds the vendor-serial sub-state machine, nil for
	// Modbus-native pipelines.
	legacy *legacyProbe
}

func newConnTracker() *connTracker {
	return &connTracker{state: Closed}
}
