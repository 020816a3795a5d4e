package model

import "time"

// ReminderRange is an inclusive range of whole seconds between reminders.
type ReminderRange struct {
	MinSeconds int
	MaxSeconds int
}

// SessionConfig contains the timing policy of a monitoring session.
type SessionConfig struct {
	FramePeriod     time.Duration
	StopwatchPeriod time.Duration
	DebounceWindow  time.Duration
	Reminder        ReminderRange
}

// DefaultSessionConfig returns the fixed session timing.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FramePeriod:     30 * time.Millisecond,
		StopwatchPeriod: 100 * time.Millisecond,
		DebounceWindow:  5 * time.Second,
		Reminder: ReminderRange{
			MinSeconds: 3,
			MaxSeconds: 7,
		},
	}
}
