// Package session owns monitoring state: the stopwatch, the reminder worker
// and the camera handle. Every Controller method except the reminder
// observer runs on the run loop goroutine.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sessionwatch/internal/capture"
	"sessionwatch/internal/core/model"
	"sessionwatch/internal/core/reminder"
	"sessionwatch/internal/logging"
)

// DefaultSources is the number of selectable camera sources.
const DefaultSources = 2

// TextSink receives status and stopwatch text.
type TextSink interface {
	SetStatus(text string)
	SetStopwatch(text string)
}

// Player plays alert sounds without blocking.
type Player interface {
	Play(sound model.Sound)
}

// Poster queues a closure for the run loop.
type Poster interface {
	Post(fn func())
}

// Config wires a Controller.
type Config struct {
	Context  context.Context
	Loop     Poster
	Opener   capture.Opener
	Sources  int
	Text     TextSink
	Player   Player
	Reminder reminder.Config
	Logger   *slog.Logger
	Now      func() time.Time
}

// Controller implements the session operations.
type Controller struct {
	ctx      context.Context
	loop     Poster
	opener   capture.Opener
	sources  int
	text     TextSink
	player   Player
	reminder reminder.Config
	logger   *slog.Logger
	now      func() time.Time

	state      State
	camera     capture.Source
	scheduler  *reminder.Scheduler
	generation uint64
	closed     bool
}

// New creates a Controller. No camera is opened until OpenCamera.
func New(cfg Config) *Controller {
	controller := &Controller{
		ctx:      cfg.Context,
		loop:     cfg.Loop,
		opener:   cfg.Opener,
		sources:  cfg.Sources,
		text:     cfg.Text,
		player:   cfg.Player,
		reminder: cfg.Reminder,
		logger:   logging.NewComponentLogger(cfg.Logger, "session"),
		now:      cfg.Now,
	}
	if controller.ctx == nil {
		controller.ctx = context.Background()
	}
	if controller.sources <= 0 {
		controller.sources = DefaultSources
	}
	if controller.now == nil {
		controller.now = time.Now
	}
	if controller.reminder.Range == (model.ReminderRange{}) {
		controller.reminder.Range = model.DefaultSessionConfig().Reminder
	}
	return controller
}

// MonitoringActive reports whether analysis and reminders are on.
func (controller *Controller) MonitoringActive() bool {
	return controller.state.MonitoringActive
}

// Camera returns the current camera handle, or nil when none is open.
func (controller *Controller) Camera() capture.Source {
	return controller.camera
}

// Snapshot returns a copy of the session state.
func (controller *Controller) Snapshot() State {
	return controller.state
}

// OpenCamera opens the camera at the current index, replacing any open handle.
func (controller *Controller) OpenCamera() {
	if controller.closed {
		return
	}
	controller.closeCamera()
	if controller.opener == nil {
		return
	}
	index := controller.state.CameraIndex
	source, err := controller.opener(index)
	if err != nil {
		logging.WarnWithContext(controller.logger, "camera open failed", "camera_open",
			logging.Int(logging.FieldCamera, index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the device path in settings or switch source"),
			logging.String(logging.FieldImpact, "no frames until a camera opens"),
		)
		return
	}
	controller.camera = source
	controller.logger.Info("camera opened", logging.Args(logging.Int(logging.FieldCamera, index))...)
}

// StartMonitoring turns on analysis, resumes the stopwatch and starts the
// reminder worker. It is a no-op while already active.
func (controller *Controller) StartMonitoring() {
	if controller.closed || controller.state.MonitoringActive {
		return
	}
	now := controller.now()
	controller.state.MonitoringActive = true
	controller.state.StopwatchRunning = true
	controller.state.StopwatchAnchor = now.Add(-controller.state.Elapsed)
	controller.state.RunID = uuid.NewString()
	controller.generation++

	generation := controller.generation
	runLogger := controller.logger.With(logging.String(logging.FieldRunID, controller.state.RunID))
	controller.scheduler = reminder.New(controller.reminder, func(event reminder.Event) {
		controller.onReminder(event, generation, runLogger)
	})
	controller.scheduler.Start(controller.ctx)
	runLogger.Info("monitoring started", logging.Args(logging.Duration("elapsed", controller.state.Elapsed))...)
}

// StopMonitoring pauses the stopwatch and stops the reminder worker. It
// returns once the worker has exited.
func (controller *Controller) StopMonitoring() {
	if !controller.state.MonitoringActive {
		return
	}
	controller.state.Elapsed = controller.state.ElapsedAt(controller.now())
	controller.state.StopwatchRunning = false
	controller.state.StopwatchAnchor = time.Time{}
	controller.state.MonitoringActive = false

	if controller.scheduler != nil {
		controller.scheduler.Stop()
		controller.scheduler = nil
	}
	// Status posts queued by the stopped worker carry the old generation.
	controller.generation++
	controller.logger.Info("monitoring stopped", logging.Args(
		logging.String(logging.FieldRunID, controller.state.RunID),
		logging.Duration("elapsed", controller.state.Elapsed),
	)...)
}

// ToggleMonitoring starts monitoring when inactive and stops it otherwise.
func (controller *Controller) ToggleMonitoring() {
	if controller.state.MonitoringActive {
		controller.StopMonitoring()
		return
	}
	controller.StartMonitoring()
}

// ResetSession stops monitoring and clears the stopwatch and status text.
func (controller *Controller) ResetSession() {
	controller.StopMonitoring()
	controller.state.Elapsed = 0
	controller.state.RunID = ""
	if controller.text != nil {
		controller.text.SetStopwatch(FormatStopwatch(0))
		controller.text.SetStatus(model.StatusDefault)
	}
	controller.logger.Info("session reset")
}

// SwitchCameraSource closes the current camera and opens the next source.
// The index advances even when the open fails.
func (controller *Controller) SwitchCameraSource() {
	if controller.closed {
		return
	}
	controller.closeCamera()
	controller.state.CameraIndex = (controller.state.CameraIndex + 1) % controller.sources
	controller.logger.Info("switching camera", logging.Args(logging.Int(logging.FieldCamera, controller.state.CameraIndex))...)
	controller.OpenCamera()
}

// TickStopwatch refreshes the stopwatch text while it runs.
func (controller *Controller) TickStopwatch() {
	if !controller.state.StopwatchRunning {
		return
	}
	controller.state.Elapsed = controller.state.ElapsedAt(controller.now())
	if controller.text != nil {
		controller.text.SetStopwatch(FormatStopwatch(controller.state.Elapsed))
	}
}

// Shutdown stops monitoring and releases the camera. Later calls do nothing.
func (controller *Controller) Shutdown() {
	if controller.closed {
		return
	}
	controller.StopMonitoring()
	controller.closeCamera()
	controller.closed = true
	controller.logger.Info("session shut down")
}

func (controller *Controller) closeCamera() {
	if controller.camera == nil {
		return
	}
	if err := controller.camera.Close(); err != nil {
		controller.logger.Warn("camera close failed", logging.Args(logging.Error(err))...)
	}
	controller.camera = nil
}

// onReminder runs on the reminder worker goroutine.
func (controller *Controller) onReminder(event reminder.Event, generation uint64, logger *slog.Logger) {
	if event.Type == reminder.EventWait {
		logger.Debug("reminder scheduled", logging.Args(
			logging.String(logging.FieldReminder, string(event.Reminder)),
			logging.Int("seconds", event.Seconds),
		)...)
		return
	}

	sound, text := model.SoundCheckEyes, model.StatusCheckEyes
	if event.Reminder == reminder.KindPosture {
		sound, text = model.SoundCheckPosture, model.StatusCheckPosture
	}
	logger.Info("reminder fired", logging.Args(logging.String(logging.FieldReminder, string(event.Reminder)))...)
	if controller.loop == nil {
		return
	}
	controller.loop.Post(func() {
		if controller.generation != generation {
			logger.Debug("dropping reminder from a stopped run", logging.Args(
				logging.String(logging.FieldReminder, string(event.Reminder)),
			)...)
			return
		}
		if controller.player != nil {
			controller.player.Play(sound)
		}
		if controller.text != nil {
			controller.text.SetStatus(text)
		}
	})
}
