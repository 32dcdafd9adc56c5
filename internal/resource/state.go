package resource

import "fmt"

// State is a handle's lifecycle state.
type State int32

const (
	Alive State = iota
	Destroying
	Dead
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Destroying:
		return "destroying"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
