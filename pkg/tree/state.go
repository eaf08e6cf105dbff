package tree

import "fmt"

// State is the lifecycle state of a Loader.
type State int

const (
	// StateUnloaded is the initial state.
	StateUnloaded State = iota
	// StateRootRequested means the root listing is being fetched.
	StateRootRequested
	// StateRootOpen means the root listing is rendered and the root node opened.
	StateRootOpen
	// StatePathResolving means an ancestor chain is being walked.
	StatePathResolving
	// StatePathResolved is terminal for path expansion: the completion has fired.
	StatePathResolved
	// StateTornDown is terminal: the loader was discarded.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateRootRequested:
		return "root_requested"
	case StateRootOpen:
		return "root_open"
	case StatePathResolving:
		return "path_resolving"
	case StatePathResolved:
		return "path_resolved"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal successors of every state.
var transitions = map[State][]State{
	StateUnloaded:      {StateRootRequested, StateTornDown},
	StateRootRequested: {StateRootOpen, StateUnloaded, StateTornDown},
	StateRootOpen:      {StatePathResolving, StateTornDown},
	StatePathResolving: {StatePathResolved, StateTornDown},
	StatePathResolved:  {StateTornDown},
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
