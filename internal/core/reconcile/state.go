package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// State is the lifecycle state of a single record within a batch.
type State string

const (
	StateFetched       State = "fetched"
	StateTransforming  State = "transforming"
	StateDiscarded     State = "discarded"
	StateNormalized    State = "normalized"
	StatePersisting    State = "persisting"
	StatePersisted     State = "persisted"
	StatePersistFailed State = "persist_failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Terminal states have no entry.
var ValidTransitions = map[State][]State{
	StateFetched:      {StateTransforming},
	StateTransforming: {StateDiscarded, StateNormalized},
	StateNormalized:   {StatePersisting},
	StatePersisting:   {StatePersisted, StatePersistFailed},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s State) bool {
	_, ok := ValidTransitions[s]
	return !ok
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// Observer is notified of every record transition.
type Observer func(key string, t Transition)

// Record tracks one record through the pipeline.
type Record struct {
	Key   string
	State State

	observer Observer
}

func newRecord(key string, observer Observer) *Record {
	return &Record{Key: key, State: StateFetched, observer: observer}
}

// Advance moves the record to the next state.
func (r *Record) Advance(to State, reason string) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
	t := Transition{From: r.State, To: to, Reason: reason, Timestamp: time.Now()}
	r.State = to
	if r.observer != nil {
		r.observer(r.Key, t)
	}
	return nil
}
