package alert

import "fmt"

// State is a step in the alert lifecycle.
type State string

const (
	StateObserved   State = "OBSERVED"
	StateEvaluated  State = "EVALUATED"
	StateAlerted    State = "ALERTED"
	StateSuppressed State = "SUPPRESSED"
	StateExpired    State = "EXPIRED"
	StateDismissed  State = "DISMISSED"
)

// transitions lists the legal next states. SUPPRESSED, EXPIRED and
// DISMISSED are terminal.
var transitions = map[State][]State{
	StateObserved:  {StateEvaluated},
	StateEvaluated: {StateAlerted, StateSuppressed},
	StateAlerted:   {StateExpired, StateDismissed},
}

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal alert transition %s -> %s", e.From, e.To)
}

// Transition returns to if the move is legal, otherwise a *TransitionError.
func Transition(from, to State) (State, error) {
	for _, next := range transitions[from] {
		if next == to {
			return to, nil
		}
	}
	return from, &TransitionError{From: from, To: to}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
