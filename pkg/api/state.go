package api

import "fmt"

// InvocationState tracks where a single invocation is in its lifecycle.
type InvocationState string

const (
	StateCreated          InvocationState = "created"
	StateBuilding         InvocationState = "building"
	StateRunning          InvocationState = "running"
	StateCompleted        InvocationState = "completed"
	StateTimedOut         InvocationState = "timed_out"
	StateCrashed          InvocationState = "crashed"
	StateParsing          InvocationState = "parsing"
	StateValidated        InvocationState = "validated"
	StateValidationFailed InvocationState = "validation_failed"
	StateConnectionFailed InvocationState = "connection_failed"
)

// ValidateTransition checks whether an invocation state transition is valid.
// Terminal states do not allow outgoing transitions. Build failures move
// BUILDING directly to CRASHED; CONNECTION_FAILED is reachable only from
// CREATED, before any environment is assembled.
func ValidateTransition(from, to InvocationState) error {
	valid := map[InvocationState][]InvocationState{
		StateCreated:   {StateBuilding, StateConnectionFailed},
		StateBuilding:  {StateRunning, StateCrashed},
		StateRunning:   {StateCompleted, StateTimedOut, StateCrashed},
		StateCompleted: {StateParsing},
		StateParsing:   {StateValidated, StateValidationFailed},
	}

	allowed, exists := valid[from]
	if !exists {
		return fmt.Errorf("invalid transition from %s to %s: %s is terminal", from, to, from)
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// Terminal reports whether the state admits no further transitions.
func (s InvocationState) Terminal() bool {
	switch s {
	case StateTimedOut, StateCrashed, StateValidated, StateValidationFailed, StateConnectionFailed:
		return true
	}
	return false
}

// Succeeded reports whether the state represents overall invocation
// success. Only VALIDATED does; every other terminal state maps to
// success=false.
func (s InvocationState) Succeeded() bool {
	return s == StateValidated
}
