package session

import (
	"fmt"
	"time"
)

// State is the session data owned by the Controller.
type State struct {
	MonitoringActive bool
	Elapsed          time.Duration
	StopwatchRunning bool
	// StopwatchAnchor is the zero time unless StopwatchRunning.
	StopwatchAnchor time.Time
	CameraIndex     int
	RunID           string
}

// ElapsedAt returns the stopwatch reading at now.
func (state State) ElapsedAt(now time.Time) time.Duration {
	if !state.StopwatchRunning {
		return state.Elapsed
	}
	elapsed := now.Sub(state.StopwatchAnchor)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// FormatStopwatch renders d as HH:MM:SS. Hours wrap at 24.
func FormatStopwatch(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
