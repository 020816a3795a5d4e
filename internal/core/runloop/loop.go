// Package runloop provides the single cooperative scheduler that owns
// session state. Closures posted from any goroutine and timer callbacks all
// run serially on the goroutine that calls Run.
package runloop

import (
	"context"
	"sync"
	"time"
)

// Loop is a serial executor with re-armable timers.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	timers  map[*time.Timer]struct{}
	wake    chan struct{}
	quit    chan struct{}
	stopped bool
}

// New creates an idle loop. Call Run to start executing.
func New() *Loop {
	return &Loop{
		timers: make(map[*time.Timer]struct{}),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

// Post queues fn for execution on the loop. It never blocks and is safe to
// call from any goroutine, including the loop itself. Posts after Quit are
// dropped.
func (loop *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	loop.mu.Lock()
	if loop.stopped {
		loop.mu.Unlock()
		return
	}
	loop.queue = append(loop.queue, fn)
	loop.mu.Unlock()

	select {
	case loop.wake <- struct{}{}:
	default:
	}
}

// After runs fn on the loop once delay has elapsed.
func (loop *Loop) After(delay time.Duration, fn func()) {
	loop.mu.Lock()
	defer loop.mu.Unlock()
	if loop.stopped {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		loop.mu.Lock()
		delete(loop.timers, timer)
		loop.mu.Unlock()
		loop.Post(fn)
	})
	loop.timers[timer] = struct{}{}
}

// Every runs fn on the loop repeatedly, re-arming period after each run
// finishes so slow runs never overlap or pile up.
func (loop *Loop) Every(period time.Duration, fn func()) {
	var tick func()
	tick = func() {
		fn()
		loop.After(period, tick)
	}
	loop.After(0, tick)
}

// Run executes queued work until ctx is cancelled or Quit is called.
func (loop *Loop) Run(ctx context.Context) error {
	for {
		for _, fn := range loop.drain() {
			if loop.isStopped() {
				return nil
			}
			fn()
		}
		select {
		case <-ctx.Done():
			loop.Quit()
			return ctx.Err()
		case <-loop.quit:
			return nil
		case <-loop.wake:
		}
	}
}

// Quit stops pending timers and makes Run return. Queued work that has not
// started is discarded.
func (loop *Loop) Quit() {
	loop.mu.Lock()
	defer loop.mu.Unlock()
	if loop.stopped {
		return
	}
	loop.stopped = true
	for timer := range loop.timers {
		timer.Stop()
	}
	loop.timers = nil
	loop.queue = nil
	close(loop.quit)
}

// Done is closed once Quit has been called.
func (loop *Loop) Done() <-chan struct{} {
	return loop.quit
}

func (loop *Loop) isStopped() bool {
	loop.mu.Lock()
	defer loop.mu.Unlock()
	return loop.stopped
}

func (loop *Loop) drain() []func() {
	loop.mu.Lock()
	defer loop.mu.Unlock()
	queue := loop.queue
	loop.queue = nil
	return queue
}
