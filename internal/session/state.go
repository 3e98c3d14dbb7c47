package session

import (
	"encoding/json"
	"fmt"
)

// State is one of the seven top-level session states from spec.md §3/§4.4.
type State int

const (
	Idle State = iota
	Initializing
	Configuring
	Running
	Stopped
	Exited
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Exited:
		return "exited"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// MarshalJSON renders State as its lowercase name, not its ordinal, so IPC
// clients never need to hardcode the enum's numeric order.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase name produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for _, st := range []State{Idle, Initializing, Configuring, Running, Stopped, Exited, Terminating} {
		if st.String() == name {
			*s = st

			return nil
		}
	}

	return fmt.Errorf("session: unknown state %q", name)
}
