package coordinator

// State of the execution loop. Transitions are driven only by the
// coordinator itself; no other component changes run state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateIdle         State = "IDLE"
	StateScanning     State = "SCANNING"
	StateMonitoring   State = "MONITORING"
	StateReconnecting State = "RECONNECTING"
	StateShuttingDown State = "SHUTTING_DOWN"
)

// active reports whether the loop is in a working state from which a
// connectivity failure moves to RECONNECTING.
func (s State) active() bool {
	switch s {
	case StateIdle, StateScanning, StateMonitoring:
		return true
	}
	return false
}
