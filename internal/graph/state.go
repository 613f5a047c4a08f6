package graph

import "fmt"

// State is the runtime execution state of a node within one run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s State) bool {
	return s == StateSucceeded || s == StateFailed
}

// ExecutionState maps node name to its current State.
type ExecutionState map[string]State

// Transition performs a validated transition for a single node.
//
// The caller supplies the expected prior state so races become observable.
// The map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, name string, from, to State) error {
	cur, ok := state[name]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", name)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	state[name] = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}
