package debounce

import "time"

// Gate rate-limits a repeating alert to at most once per cooldown window.
//
// A Gate is owned by a single goroutine and does no locking of its own.
type Gate struct {
	cooldown time.Duration
	last     time.Time
}

// New creates a gate that has never fired.
func New(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// ShouldFire reports whether an alert at now is allowed and records it if so.
func (gate *Gate) ShouldFire(now time.Time) bool {
	if !gate.last.IsZero() && now.Sub(gate.last) < gate.cooldown {
		return false
	}
	gate.last = now
	return true
}

// Reset forgets the last trigger.
func (gate *Gate) Reset() {
	gate.last = time.Time{}
}
