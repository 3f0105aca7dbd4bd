package obd

// ConnectionState is the externally observable session state. Setup moves
// it forward monotonically; any link failure or explicit stop resets it to
// Disconnected.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	ConnectedToAdapter
	ConnectedToVehicle
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectedToAdapter:
		return "connected to adapter"
	case ConnectedToVehicle:
		return "connected to vehicle"
	default:
		return "disconnected"
	}
}

// StateObserver receives every state change, including repeats of the same
// value. Observers must be idempotent and must not call back into the
// engine.
type StateObserver func(ConnectionState)

// OnStateChange registers an observer for connection-state changes.
func (e *Engine) OnStateChange(fn StateObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// setState records the new state and notifies observers unconditionally,
// even when the value did not change.
func (e *Engine) setState(s ConnectionState) {
	e.mu.Lock()
	e.state = s
	observers := make([]StateObserver, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}
