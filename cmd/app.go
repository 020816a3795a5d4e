package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"

	"sessionwatch/internal/capture/gstcam"
	"sessionwatch/internal/core/model"
	"sessionwatch/internal/core/pipeline"
	"sessionwatch/internal/core/reminder"
	"sessionwatch/internal/core/runloop"
	"sessionwatch/internal/core/session"
	"sessionwatch/internal/logging"
	"sessionwatch/internal/platform"
	"sessionwatch/internal/storage"
	"sessionwatch/internal/ui/monitor"
	"sessionwatch/internal/ui/preferences"
	"sessionwatch/internal/ui/tray"
	"sessionwatch/internal/vision/emotion"
	"sessionwatch/internal/vision/face"
	"sessionwatch/resources"
)

const shutdownTimeout = 5 * time.Second

func runApp(parent context.Context, cc *commandContext) error {
	if parent == nil {
		parent = context.Background()
	}
	settings, configPath, err := cc.ensureSettings()
	if err != nil {
		return err
	}
	logger, err := cc.logger(settings)
	if err != nil {
		return err
	}

	guard, err := platform.AcquireSingleInstance(platform.DefaultLockPath(appName))
	if err != nil {
		if errors.Is(err, platform.ErrAlreadyRunning) {
			return fmt.Errorf("%s is already running", appName)
		}
		return err
	}
	defer func() {
		_ = guard.Release()
	}()

	appDir, err := platform.AppDir(appName)
	if err != nil {
		appDir = filepath.Join(os.TempDir(), appName)
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting", logging.Args(
		logging.String("config", configPath),
		logging.String(logging.FieldDevice, settings.Camera0),
	)...)

	fyneApp := app.NewWithID("com.sessionwatch.app")
	fyneApp.SetIcon(resources.MustLogo("icon.svg"))

	loop := runloop.New()
	player := platform.NewSoundPlayer(settings.AudioSink, settings.SoundFiles(filepath.Join(appDir, "sounds")), logger)
	defer player.Wait()

	var (
		controller  *session.Controller
		trayManager *tray.Manager
		window      *monitor.Window
	)

	loopDone := make(chan struct{})
	shutdown := sync.OnceFunc(func() {
		finished := make(chan struct{})
		loop.Post(func() {
			controller.Shutdown()
			close(finished)
		})
		select {
		case <-finished:
		case <-loopDone:
			controller.Shutdown()
		case <-time.After(shutdownTimeout):
			logger.Warn("session shutdown timed out")
		}
		loop.Quit()
		cancel()
		fyneApp.Quit()
	})

	publishMonitoring := func() {
		active := controller.MonitoringActive()
		window.SetMonitoring(active)
		if trayManager != nil {
			fyne.Do(func() { trayManager.SetMonitoring(active) })
		}
	}
	onLoop := func(fn func()) func() {
		return func() {
			loop.Post(func() {
				fn()
				publishMonitoring()
			})
		}
	}

	saveSettings := func(updated preferences.Settings) {
		settings = updated
		if err := storage.SaveSettingsFile(configPath, updated); err != nil {
			logging.WarnWithContext(logger, "save settings failed", "settings_save",
				logging.Error(err),
				logging.String(logging.FieldImpact, "changes last until exit"),
			)
		}
	}

	window = monitor.New(fyneApp, appName, settings.DarkMode, monitor.Actions{
		ToggleMonitoring: onLoop(func() { controller.ToggleMonitoring() }),
		Reset:            onLoop(func() { controller.ResetSession() }),
		SwitchCamera:     onLoop(func() { controller.SwitchCameraSource() }),
		ThemeChanged: func(dark bool) {
			updated := settings
			updated.DarkMode = dark
			saveSettings(updated)
		},
		Close: shutdown,
	})

	text := &textFanout{window: window}
	controller = session.New(session.Config{
		Context:  ctx,
		Loop:     loop,
		Opener:   gstcam.NewOpener(settings.Devices(), settings.CaptureWidth, settings.CaptureHeight, logger),
		Sources:  len(settings.Devices()),
		Text:     text,
		Player:   player,
		Reminder: reminder.Config{Range: model.DefaultSessionConfig().Reminder},
		Logger:   logger,
	})

	var detector pipeline.Detector
	if cascade := openDetector(settings, logger); cascade != nil {
		defer cascade.Close()
		detector = cascade
	}
	var classifier pipeline.Classifier
	if worker := startClassifier(ctx, settings, appDir, logger); worker != nil {
		defer worker.Stop()
		classifier = worker
		go watchClassifier(ctx, worker.Done(), logger)
	}

	frames := pipeline.New(pipeline.Config{
		Session:    controller,
		Detector:   detector,
		Classifier: classifier,
		Display:    window.Display(),
		Player:     player,
		Status:     text,
		Logger:     logger,
	})

	if desktopApp, ok := fyneApp.(desktop.App); ok {
		prefsWindow := preferences.New(fyneApp, settings, saveSettings)
		trayManager = tray.New(desktopApp, tray.Callbacks{
			OnShow:             window.Show,
			OnToggleMonitoring: onLoop(func() { controller.ToggleMonitoring() }),
			OnReset:            onLoop(func() { controller.ResetSession() }),
			OnSwitchCamera:     onLoop(func() { controller.SwitchCameraSource() }),
			OnPreferences: func() {
				prefsWindow.UpdateSettings(settings)
				prefsWindow.Show()
			},
			OnQuit: shutdown,
		})
		desktopApp.SetSystemTrayIcon(fyneApp.Icon())
		text.tray = trayManager
	}

	timing := model.DefaultSessionConfig()
	loop.Post(controller.OpenCamera)
	frames.Schedule(ctx, loop, timing.FramePeriod)
	loop.Every(timing.StopwatchPeriod, controller.TickStopwatch)

	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("run loop stopped", logging.Args(logging.Error(err))...)
		}
	}()

	hotplug := platform.NewHotplugMonitor(logger, func(event platform.DeviceEvent) {
		loop.Post(func() {
			text.SetStatus(fmt.Sprintf("camera %s: %s", event.Action, event.Device))
		})
	})
	if err := hotplug.Start(ctx); err != nil {
		logger.Warn("hotplug monitor failed", logging.Args(logging.Error(err))...)
	}
	defer hotplug.Stop()

	go func() {
		<-ctx.Done()
		fyne.Do(shutdown)
	}()

	window.Show()
	fyneApp.Run()
	shutdown()
	<-loopDone
	logger.Info("stopped")
	return nil
}

// textFanout mirrors status text to the tray menu.
type textFanout struct {
	window *monitor.Window
	tray   *tray.Manager
}

func (fanout *textFanout) SetStatus(text string) {
	fanout.window.SetStatus(text)
	if fanout.tray != nil {
		fyne.Do(func() { fanout.tray.SetStatus(text) })
	}
}

func (fanout *textFanout) SetStopwatch(text string) {
	fanout.window.SetStopwatch(text)
}

// detectorParams is the cascade search the frame pipeline is tuned for.
func detectorParams() face.Params {
	return face.Params{
		ScaleFactor:  pipeline.DetectScaleFactor,
		MinNeighbors: pipeline.DetectMinNeighbors,
	}
}

func openDetector(settings preferences.Settings, logger *slog.Logger) *face.Cascade {
	path, err := face.FindCascade(settings.CascadePath, face.SearchDirs)
	if err == nil {
		var cascade *face.Cascade
		cascade, err = face.Load(path, detectorParams())
		if err == nil {
			logger.Info("face detector loaded", logging.Args(logging.String("cascade", path))...)
			return cascade
		}
	}
	logging.WarnWithContext(logger, "face detector unavailable", "face_detector_missing",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "install the OpenCV haarcascades or set cascade_path"),
		logging.String(logging.FieldImpact, "frames are shown without analysis"),
	)
	return nil
}

func startClassifier(ctx context.Context, settings preferences.Settings, appDir string, logger *slog.Logger) *emotion.Worker {
	script := settings.WorkerScript
	if script == "" {
		written, err := resources.WriteWorkerScript(filepath.Join(appDir, "worker"))
		if err != nil {
			logging.WarnWithContext(logger, "emotion worker script unavailable", "emotion_worker_missing",
				logging.Error(err),
				logging.String(logging.FieldImpact, "faces are drawn without a label"),
			)
			return nil
		}
		script = written
	}

	worker, err := emotion.Start(ctx, emotion.Config{
		Python: settings.PythonPath,
		Script: script,
		Logger: logger,
	})
	if err != nil {
		logging.WarnWithContext(logger, "emotion worker failed to start", "emotion_worker_start",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install python3 with deepface and msgpack or set python_path"),
			logging.String(logging.FieldImpact, "faces are drawn without a label"),
		)
		return nil
	}
	return worker
}

// watchClassifier reports an emotion worker that dies while the app is still
// running. It returns when the worker is done or ctx ends.
func watchClassifier(ctx context.Context, done <-chan struct{}, logger *slog.Logger) {
	select {
	case <-ctx.Done():
		return
	case <-done:
	}
	if ctx.Err() != nil {
		return
	}
	logging.WarnWithContext(logger, "emotion worker stopped", "emotion_worker_stopped",
		logging.String(logging.FieldErrorHint, "check the worker log lines above and restart SessionWatch"),
		logging.String(logging.FieldImpact, "faces are drawn without a label until restart"),
	)
}
