package progress

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
)

// Event drives a status transition.
type Event int

const (
	// EventEnterPhase is raised when a phase is started.
	EventEnterPhase Event = iota
	// EventAdvanced is raised after a successful Advance.
	EventAdvanced
	// EventExhausted is raised when Advance reports no more phases.
	EventExhausted
)

func (e Event) String() string {
	switch e {
	case EventEnterPhase:
		return "enter_phase"
	case EventAdvanced:
		return "advanced"
	case EventExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

var (
	ErrTerminal          = errors.New("session is completed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Transition is one step of the session status machine. ClearContinuity is
// set on the first phase entry, when any response continuity ids carried over
// from before must be dropped.
type Transition struct {
	Status          Status
	ClearContinuity bool
}

// Next returns the status that follows s on event.
func Next(s Status, event Event) (Transition, error) {
	switch s {
	case StatusCompleted:
		return Transition{Status: s}, ErrTerminal

	case StatusNotStarted, "":
		if event == EventEnterPhase {
			return Transition{Status: StatusActive, ClearContinuity: true}, nil
		}

	case StatusActive:
		switch event {
		case EventEnterPhase, EventAdvanced:
			return Transition{Status: StatusActive}, nil
		case EventExhausted:
			return Transition{Status: StatusCompleted}, nil
		}
	}

	return Transition{Status: s}, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, event)
}
