package reminder

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"sessionwatch/internal/core/model"
)

// Config contains runtime options for the Scheduler.
type Config struct {
	Range model.ReminderRange
	// Unit is the length of one drawn interval step. Defaults to a second.
	Unit time.Duration
	Rand *rand.Rand
}

// Scheduler alternates eyes and posture reminders at randomized intervals
// on a single background goroutine.
type Scheduler struct {
	mu       sync.Mutex
	config   Config
	rng      *rand.Rand
	observer func(Event)
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Scheduler. The observer runs on the worker goroutine and
// must not block.
func New(config Config, observer func(Event)) *Scheduler {
	if config.Unit <= 0 {
		config.Unit = time.Second
	}
	if config.Range.MinSeconds <= 0 {
		config.Range.MinSeconds = 1
	}
	if config.Range.MaxSeconds < config.Range.MinSeconds {
		config.Range.MaxSeconds = config.Range.MinSeconds
	}
	rng := config.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		config:   config,
		rng:      rng,
		observer: observer,
		state:    StateIdle,
	}
}

// Start launches the worker. It returns false if a worker is already live.
func (scheduler *Scheduler) Start(ctx context.Context) bool {
	scheduler.mu.Lock()
	if scheduler.done != nil {
		scheduler.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	scheduler.cancel = cancel
	scheduler.done = done
	scheduler.state = StateWaitingEyes
	scheduler.mu.Unlock()

	go scheduler.run(runCtx, done)
	return true
}

// Stop cancels the worker and waits for it to exit. Stopping an idle
// scheduler is a no-op.
func (scheduler *Scheduler) Stop() {
	scheduler.mu.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Running reports whether a worker is live.
func (scheduler *Scheduler) Running() bool {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	return scheduler.done != nil
}

// State returns the current cycle position.
func (scheduler *Scheduler) State() State {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	return scheduler.state
}

func (scheduler *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer func() {
		scheduler.mu.Lock()
		if scheduler.done == done {
			scheduler.done = nil
			scheduler.cancel = nil
			scheduler.state = StateIdle
		}
		scheduler.mu.Unlock()
		close(done)
	}()

	state := StateWaitingEyes
	for {
		seconds := scheduler.drawSeconds()
		wait := time.Duration(seconds) * scheduler.config.Unit
		scheduler.setState(state)
		scheduler.emit(Event{
			Type:     EventWait,
			State:    state,
			Reminder: state.Kind(),
			Seconds:  seconds,
			Wait:     wait,
			At:       time.Now(),
		})

		if !sleepWithContext(ctx, wait) {
			return
		}

		fired := state.Next()
		scheduler.setState(fired)
		scheduler.emit(Event{
			Type:     EventFire,
			State:    fired,
			Reminder: fired.Kind(),
			At:       time.Now(),
		})
		state = fired.Next()
	}
}

// drawSeconds is only called from the worker goroutine; workers never overlap.
func (scheduler *Scheduler) drawSeconds() int {
	span := scheduler.config.Range.MaxSeconds - scheduler.config.Range.MinSeconds + 1
	return scheduler.config.Range.MinSeconds + scheduler.rng.Intn(span)
}

func (scheduler *Scheduler) setState(state State) {
	scheduler.mu.Lock()
	scheduler.state = state
	scheduler.mu.Unlock()
}

func (scheduler *Scheduler) emit(event Event) {
	if scheduler.observer != nil {
		scheduler.observer(event)
	}
}

func sleepWithContext(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
