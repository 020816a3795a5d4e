package reminder

import "time"

// State represents the current position in the reminder cycle.
type State string

const (
	StateIdle           State = "idle"
	StateWaitingEyes    State = "waiting_eyes"
	StateFiredEyes      State = "fired_eyes"
	StateWaitingPosture State = "waiting_posture"
	StateFiredPosture   State = "fired_posture"
)

// Next returns the state that follows in the eyes/posture cycle.
func (state State) Next() State {
	switch state {
	case StateWaitingEyes:
		return StateFiredEyes
	case StateFiredEyes:
		return StateWaitingPosture
	case StateWaitingPosture:
		return StateFiredPosture
	default:
		return StateWaitingEyes
	}
}

// Kind identifies which reminder a state belongs to.
type Kind string

const (
	KindEyes    Kind = "eyes"
	KindPosture Kind = "posture"
)

// Kind returns the reminder a waiting or fired state refers to.
func (state State) Kind() Kind {
	switch state {
	case StateWaitingPosture, StateFiredPosture:
		return KindPosture
	default:
		return KindEyes
	}
}

// EventType defines the type of scheduler event.
type EventType string

const (
	EventWait EventType = "wait"
	EventFire EventType = "fire"
)

// Event represents a scheduler update for observers.
type Event struct {
	Type     EventType
	State    State
	Reminder Kind
	Seconds  int
	Wait     time.Duration
	At       time.Time
}
