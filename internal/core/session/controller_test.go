package session

import (
	"errors"
	"image"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"sessionwatch/internal/capture"
	"sessionwatch/internal/core/model"
	"sessionwatch/internal/core/reminder"
)

type queuePoster struct {
	mu     sync.Mutex
	queue  []func()
	posted int
	notify chan struct{}
}

func newQueuePoster() *queuePoster {
	return &queuePoster{notify: make(chan struct{}, 256)}
}

func (poster *queuePoster) Post(fn func()) {
	poster.mu.Lock()
	poster.queue = append(poster.queue, fn)
	poster.posted++
	poster.mu.Unlock()
	select {
	case poster.notify <- struct{}{}:
	default:
	}
}

func (poster *queuePoster) count() int {
	poster.mu.Lock()
	defer poster.mu.Unlock()
	return poster.posted
}

// runPending executes queued closures on the calling goroutine, which plays
// the role of the run loop.
func (poster *queuePoster) runPending() int {
	poster.mu.Lock()
	queue := poster.queue
	poster.queue = nil
	poster.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

type textSink struct {
	status    []string
	stopwatch []string
}

func (sink *textSink) SetStatus(text string) { sink.status = append(sink.status, text) }

func (sink *textSink) SetStopwatch(text string) { sink.stopwatch = append(sink.stopwatch, text) }

func (sink *textSink) lastStatus() string {
	if len(sink.status) == 0 {
		return ""
	}
	return sink.status[len(sink.status)-1]
}

type recordingPlayer struct {
	mu     sync.Mutex
	played []model.Sound
}

func (player *recordingPlayer) Play(sound model.Sound) {
	player.mu.Lock()
	player.played = append(player.played, sound)
	player.mu.Unlock()
}

func (player *recordingPlayer) count() int {
	player.mu.Lock()
	defer player.mu.Unlock()
	return len(player.played)
}

type fakeCamera struct {
	index  int
	closed int
}

func (camera *fakeCamera) Read() (image.Image, error) { return nil, capture.ErrNoFrame }

func (camera *fakeCamera) Close() error {
	camera.closed++
	return nil
}

type fakeOpener struct {
	opened []*fakeCamera
	fail   map[int]bool
	calls  []int
}

func (opener *fakeOpener) open(index int) (capture.Source, error) {
	opener.calls = append(opener.calls, index)
	if opener.fail[index] {
		return nil, errors.New("no such device")
	}
	camera := &fakeCamera{index: index}
	opener.opened = append(opener.opened, camera)
	return camera, nil
}

type harness struct {
	poster *queuePoster
	text   *textSink
	player *recordingPlayer
	opener *fakeOpener
	clock  time.Time
	ctrl   *Controller
}

func newHarness(t *testing.T, unit time.Duration) *harness {
	t.Helper()
	h := &harness{
		poster: newQueuePoster(),
		text:   &textSink{},
		player: &recordingPlayer{},
		opener: &fakeOpener{fail: map[int]bool{}},
		clock:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	h.ctrl = New(Config{
		Loop:   h.poster,
		Opener: h.opener.open,
		Text:   h.text,
		Player: h.player,
		Reminder: reminder.Config{
			Range: model.ReminderRange{MinSeconds: 1, MaxSeconds: 1},
			Unit:  unit,
			Rand:  rand.New(rand.NewSource(7)),
		},
		Now: func() time.Time { return h.clock },
	})
	t.Cleanup(h.ctrl.Shutdown)
	return h
}

// waitForFires waits until the reminder worker has posted n fired reminders.
func (h *harness) waitForFires(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for h.poster.count() < n {
		select {
		case <-h.poster.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d reminders", n)
		}
	}
}

func TestStartMonitoringTwiceKeepsOneWorker(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.ctrl.StartMonitoring()
	first := h.ctrl.scheduler
	runID := h.ctrl.Snapshot().RunID
	h.ctrl.StartMonitoring()

	if h.ctrl.scheduler != first {
		t.Fatal("second start replaced the reminder worker")
	}
	if !first.Running() {
		t.Fatal("expected reminder worker to be running")
	}
	state := h.ctrl.Snapshot()
	if !state.MonitoringActive || !state.StopwatchRunning || state.RunID != runID {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(h.text.status) != 0 {
		t.Fatalf("start must not change status text, got %v", h.text.status)
	}
}

func TestReminderFireSetsStatusOnLoop(t *testing.T) {
	h := newHarness(t, time.Millisecond)

	h.ctrl.StartMonitoring()
	h.waitForFires(t, 1)
	if h.player.count() != 0 {
		t.Fatal("reminder sound played off the run loop")
	}
	h.poster.runPending()

	if got := h.text.status; len(got) == 0 || got[0] != model.StatusCheckEyes {
		t.Fatalf("status = %v, want first %q", got, model.StatusCheckEyes)
	}
	h.player.mu.Lock()
	first := h.player.played[0]
	h.player.mu.Unlock()
	if first != model.SoundCheckEyes {
		t.Fatalf("first sound = %s, want %s", first, model.SoundCheckEyes)
	}
}

func TestStopMonitoringJoinsWorkerAndDropsStaleStatus(t *testing.T) {
	h := newHarness(t, time.Millisecond)

	h.ctrl.StartMonitoring()
	h.waitForFires(t, 2)
	worker := h.ctrl.scheduler
	h.ctrl.StopMonitoring()

	if worker.Running() {
		t.Fatal("StopMonitoring returned before the worker exited")
	}
	posts := h.poster.count()
	time.Sleep(30 * time.Millisecond)
	if h.poster.count() != posts {
		t.Fatal("reminder fired after stop returned")
	}

	h.poster.runPending()
	if len(h.text.status) != 0 {
		t.Fatalf("stale reminder status applied after stop: %v", h.text.status)
	}
	if h.player.count() != 0 {
		t.Fatalf("stale reminder sounds played after stop: %d", h.player.count())
	}
	if h.ctrl.MonitoringActive() {
		t.Fatal("expected monitoring inactive")
	}
}

func TestStopwatchFoldsElapsedAcrossRuns(t *testing.T) {
	h := newHarness(t, time.Hour)
	start := h.clock

	h.ctrl.StartMonitoring()
	h.clock = start.Add(65 * time.Second)
	h.ctrl.TickStopwatch()
	if got := h.text.stopwatch[len(h.text.stopwatch)-1]; got != "00:01:05" {
		t.Fatalf("stopwatch = %q, want 00:01:05", got)
	}

	h.clock = start.Add(70 * time.Second)
	h.ctrl.StopMonitoring()
	state := h.ctrl.Snapshot()
	if state.Elapsed != 70*time.Second || state.StopwatchRunning || !state.StopwatchAnchor.IsZero() {
		t.Fatalf("unexpected state after stop %+v", state)
	}

	ticks := len(h.text.stopwatch)
	h.clock = start.Add(90 * time.Second)
	h.ctrl.TickStopwatch()
	if len(h.text.stopwatch) != ticks {
		t.Fatal("stopped stopwatch must not update")
	}

	h.clock = start.Add(100 * time.Second)
	h.ctrl.StartMonitoring()
	if anchor := h.ctrl.Snapshot().StopwatchAnchor; !anchor.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("anchor = %s, want now minus elapsed", anchor)
	}
	h.clock = start.Add(110 * time.Second)
	h.ctrl.TickStopwatch()
	if got := h.text.stopwatch[len(h.text.stopwatch)-1]; got != "00:01:20" {
		t.Fatalf("stopwatch = %q, want 00:01:20", got)
	}
}

func TestToggleMonitoring(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.ctrl.ToggleMonitoring()
	if !h.ctrl.MonitoringActive() {
		t.Fatal("expected toggle to start monitoring")
	}
	h.ctrl.ToggleMonitoring()
	if h.ctrl.MonitoringActive() || h.ctrl.scheduler != nil {
		t.Fatal("expected toggle to stop monitoring")
	}
}

func TestResetSessionClearsEverything(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.ctrl.StartMonitoring()
	h.clock = h.clock.Add(42 * time.Second)
	h.ctrl.TickStopwatch()
	worker := h.ctrl.scheduler
	h.ctrl.ResetSession()

	state := h.ctrl.Snapshot()
	if state.MonitoringActive || state.Elapsed != 0 || state.StopwatchRunning {
		t.Fatalf("unexpected state after reset %+v", state)
	}
	if worker.Running() {
		t.Fatal("reset must join the reminder worker")
	}
	if got := h.text.stopwatch[len(h.text.stopwatch)-1]; got != "00:00:00" {
		t.Fatalf("stopwatch = %q, want 00:00:00", got)
	}
	if got := h.text.lastStatus(); got != model.StatusDefault {
		t.Fatalf("status = %q, want %q", got, model.StatusDefault)
	}
}

func TestResetWhileIdleStillResetsText(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.ctrl.ResetSession()
	if h.text.lastStatus() != model.StatusDefault || len(h.text.stopwatch) != 1 {
		t.Fatalf("unexpected text status=%v stopwatch=%v", h.text.status, h.text.stopwatch)
	}
}

func TestSwitchCameraSourceCyclesTwoSources(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.ctrl.OpenCamera()
	original := h.ctrl.Camera().(*fakeCamera)
	h.ctrl.SwitchCameraSource()
	if original.closed != 1 {
		t.Fatalf("previous camera closed %d times, want 1", original.closed)
	}
	if got := h.ctrl.Camera().(*fakeCamera).index; got != 1 {
		t.Fatalf("camera index = %d, want 1", got)
	}

	h.ctrl.SwitchCameraSource()
	if got := h.ctrl.Snapshot().CameraIndex; got != 0 {
		t.Fatalf("camera index after two switches = %d, want 0", got)
	}
	if want := []int{0, 1, 0}; !slices.Equal(h.opener.calls, want) {
		t.Fatalf("open calls = %v, want %v", h.opener.calls, want)
	}
}

func TestSwitchCameraSourceOpenFailureStillAdvances(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.opener.fail[1] = true

	h.ctrl.OpenCamera()
	h.ctrl.SwitchCameraSource()
	if h.ctrl.Camera() != nil {
		t.Fatal("expected no camera after a failed open")
	}
	if got := h.ctrl.Snapshot().CameraIndex; got != 1 {
		t.Fatalf("camera index = %d, want 1", got)
	}

	h.ctrl.SwitchCameraSource()
	if h.ctrl.Camera() == nil || h.ctrl.Snapshot().CameraIndex != 0 {
		t.Fatal("expected camera 0 reopened")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.ctrl.OpenCamera()
	camera := h.ctrl.Camera().(*fakeCamera)
	h.ctrl.StartMonitoring()
	worker := h.ctrl.scheduler

	h.ctrl.Shutdown()
	h.ctrl.Shutdown()

	if camera.closed != 1 {
		t.Fatalf("camera closed %d times, want 1", camera.closed)
	}
	if worker.Running() || h.ctrl.MonitoringActive() {
		t.Fatal("shutdown must stop monitoring")
	}
	h.ctrl.StartMonitoring()
	h.ctrl.SwitchCameraSource()
	if h.ctrl.MonitoringActive() || h.ctrl.Camera() != nil {
		t.Fatal("operations after shutdown must be no-ops")
	}
}

func TestFormatStopwatch(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59*time.Second + 900*time.Millisecond, "00:00:59"},
		{time.Hour + time.Minute + time.Second, "01:01:01"},
		{25 * time.Hour, "01:00:00"},
		{-time.Second, "00:00:00"},
	}
	for _, tc := range cases {
		if got := FormatStopwatch(tc.in); got != tc.want {
			t.Errorf("FormatStopwatch(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
