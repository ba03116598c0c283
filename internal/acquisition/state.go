package acquisition

import "fmt"

// State is the lifecycle position of a Loop.
type State int32

const (
	Idle State = iota
	Connecting
	Running
	Reconnecting
	Draining
	Terminated
)

var stateNames = [...]string{
	Idle:         "idle",
	Connecting:   "connecting",
	Running:      "running",
	Reconnecting: "reconnecting",
	Draining:     "draining",
	Terminated:   "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
