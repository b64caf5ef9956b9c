package types

// ConnectionState tracks relay presence and readiness of both peers. The two
// flags are independent: peers can be connected without being ready.
type ConnectionState struct {
	ClientsConnected bool `json:"clients_connected"`
	ClientsReady     bool `json:"clients_ready"`
}

// State is the channel session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateConnected
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateConnected:
		return "connected"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Phase is the handshake progress within a connected session.
type Phase int

const (
	PhasePending Phase = iota
	PhaseInProgress
	PhaseExchanged
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseInProgress:
		return "in_progress"
	case PhaseExchanged:
		return "exchanged"
	default:
		return "unknown"
	}
}
