package reminder

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"sessionwatch/internal/core/model"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan Event
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan Event, 1024)}
}

func (rec *recorder) observe(event Event) {
	rec.mu.Lock()
	rec.events = append(rec.events, event)
	rec.mu.Unlock()
	select {
	case rec.notify <- event:
	default:
	}
}

func (rec *recorder) snapshot() []Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]Event(nil), rec.events...)
}

func (rec *recorder) fires() []Event {
	var fires []Event
	for _, event := range rec.snapshot() {
		if event.Type == EventFire {
			fires = append(fires, event)
		}
	}
	return fires
}

func (rec *recorder) waitFor(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-rec.notify:
			if match(event) {
				return event
			}
		case <-deadline:
			t.Fatal("timed out waiting for scheduler event")
		}
	}
}

func (rec *recorder) drain() {
	for {
		select {
		case <-rec.notify:
		default:
			return
		}
	}
}

func fastConfig(seed int64) Config {
	return Config{
		Range: model.DefaultSessionConfig().Reminder,
		Unit:  time.Millisecond,
		Rand:  rand.New(rand.NewSource(seed)),
	}
}

func TestSchedulerAlternatesEyesAndPosture(t *testing.T) {
	rec := newRecorder()
	scheduler := New(fastConfig(1), rec.observe)

	if !scheduler.Start(context.Background()) {
		t.Fatal("expected first start to succeed")
	}
	for len(rec.fires()) < 6 {
		rec.waitFor(t, func(event Event) bool { return event.Type == EventFire })
	}
	scheduler.Stop()

	fires := rec.fires()
	for i, event := range fires {
		want := KindEyes
		if i%2 == 1 {
			want = KindPosture
		}
		if event.Reminder != want {
			t.Fatalf("fire %d: got %s, want %s (sequence %v)", i, event.Reminder, want, fires)
		}
	}
}

func TestSchedulerSecondStartIsRejected(t *testing.T) {
	rec := newRecorder()
	scheduler := New(fastConfig(2), rec.observe)
	defer scheduler.Stop()

	if !scheduler.Start(context.Background()) {
		t.Fatal("expected first start to succeed")
	}
	if scheduler.Start(context.Background()) {
		t.Fatal("expected second start to be rejected while running")
	}

	for len(rec.fires()) < 4 {
		rec.waitFor(t, func(event Event) bool { return event.Type == EventFire })
	}
	fires := rec.fires()
	for i := 1; i < len(fires); i++ {
		if fires[i].Reminder == fires[i-1].Reminder {
			t.Fatalf("two consecutive %s fires: a duplicate worker is running", fires[i].Reminder)
		}
	}
}

func TestSchedulerWaitsStayInRange(t *testing.T) {
	rec := newRecorder()
	scheduler := New(Config{
		Range: model.ReminderRange{MinSeconds: 3, MaxSeconds: 7},
		Unit:  time.Microsecond,
		Rand:  rand.New(rand.NewSource(3)),
	}, rec.observe)

	scheduler.Start(context.Background())
	first := rec.waitFor(t, func(event Event) bool { return event.Type == EventWait })
	if first.State != StateWaitingEyes {
		t.Fatalf("first state = %s, want %s", first.State, StateWaitingEyes)
	}
	for len(rec.fires()) < 40 {
		rec.waitFor(t, func(event Event) bool { return event.Type == EventFire })
	}
	scheduler.Stop()

	for _, event := range rec.snapshot() {
		if event.Type != EventWait {
			continue
		}
		if event.Seconds < 3 || event.Seconds > 7 {
			t.Fatalf("wait of %d seconds outside [3,7]", event.Seconds)
		}
		if event.Wait != time.Duration(event.Seconds)*time.Microsecond {
			t.Fatalf("wait %s does not match %d units", event.Wait, event.Seconds)
		}
	}
}

func TestSchedulerStopMidWaitDoesNotFire(t *testing.T) {
	rec := newRecorder()
	scheduler := New(Config{
		Range: model.DefaultSessionConfig().Reminder,
		Unit:  time.Hour,
	}, rec.observe)

	scheduler.Start(context.Background())
	rec.waitFor(t, func(event Event) bool { return event.Type == EventWait })

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly while the worker was waiting")
	}

	if scheduler.Running() {
		t.Fatal("expected worker to have exited after Stop")
	}
	if fires := rec.fires(); len(fires) != 0 {
		t.Fatalf("expected no fires, got %v", fires)
	}
	if state := scheduler.State(); state != StateIdle {
		t.Fatalf("state after stop = %s, want %s", state, StateIdle)
	}
}

func TestSchedulerNoEventsAfterStopReturns(t *testing.T) {
	rec := newRecorder()
	scheduler := New(fastConfig(4), rec.observe)

	scheduler.Start(context.Background())
	rec.waitFor(t, func(event Event) bool { return event.Type == EventFire })
	scheduler.Stop()

	count := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)
	if after := len(rec.snapshot()); after != count {
		t.Fatalf("observed %d events after Stop returned", after-count)
	}
}

func TestSchedulerRestartBeginsWithEyes(t *testing.T) {
	rec := newRecorder()
	scheduler := New(fastConfig(5), rec.observe)

	scheduler.Start(context.Background())
	rec.waitFor(t, func(event Event) bool { return event.State == StateWaitingPosture })
	scheduler.Stop()
	rec.drain()

	if !scheduler.Start(context.Background()) {
		t.Fatal("expected restart after Stop to succeed")
	}
	defer scheduler.Stop()
	event := rec.waitFor(t, func(event Event) bool { return event.Type == EventWait })
	if event.State != StateWaitingEyes {
		t.Fatalf("restart began in %s, want %s", event.State, StateWaitingEyes)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	scheduler := New(fastConfig(6), nil)
	scheduler.Stop()
	scheduler.Start(context.Background())
	scheduler.Stop()
	scheduler.Stop()
	if scheduler.Running() {
		t.Fatal("expected scheduler to be stopped")
	}
}

func TestSchedulerParentCancellationEndsWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := New(Config{Unit: time.Hour}, nil)

	scheduler.Start(ctx)
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for scheduler.Running() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not exit after parent cancellation")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStateCycle(t *testing.T) {
	state := StateWaitingEyes
	want := []State{StateFiredEyes, StateWaitingPosture, StateFiredPosture, StateWaitingEyes}
	for _, next := range want {
		state = state.Next()
		if state != next {
			t.Fatalf("got %s, want %s", state, next)
		}
	}
	if StateFiredPosture.Kind() != KindPosture || StateWaitingEyes.Kind() != KindEyes {
		t.Fatal("unexpected kind mapping")
	}
}
