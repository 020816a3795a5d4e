// Package pipeline runs the per-frame cycle: read the camera, detect and
// classify faces while monitoring, annotate, and render to the display.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"sessionwatch/internal/capture"
	"sessionwatch/internal/core/debounce"
	"sessionwatch/internal/core/model"
	"sessionwatch/internal/logging"
)

// Config wires a Pipeline to its collaborators.
type Config struct {
	Session    Session
	Detector   Detector
	Classifier Classifier
	Display    Display
	Player     Player
	Status     StatusSink
	// Gate debounces the "more emotion" alert. It must be owned by the
	// goroutine that runs Cycle.
	Gate   *debounce.Gate
	Logger *slog.Logger
	Now    func() time.Time
	// ClassifyTimeout bounds one classification call. Zero means no bound.
	ClassifyTimeout time.Duration
}

// Pipeline owns the frame cycle. Cycle is not safe for concurrent use.
type Pipeline struct {
	session    Session
	detector   Detector
	classifier Classifier
	display    Display
	player     Player
	status     StatusSink
	gate       *debounce.Gate
	logger     *slog.Logger
	now        func() time.Time
	timeout    time.Duration

	frames          uint64
	readFailing     bool
	classifyFailing bool
}

// New creates a Pipeline. Missing collaborators degrade to no-ops.
func New(cfg Config) *Pipeline {
	pipeline := &Pipeline{
		session:    cfg.Session,
		detector:   cfg.Detector,
		classifier: cfg.Classifier,
		display:    cfg.Display,
		player:     cfg.Player,
		status:     cfg.Status,
		gate:       cfg.Gate,
		logger:     logging.NewComponentLogger(cfg.Logger, "pipeline"),
		now:        cfg.Now,
		timeout:    cfg.ClassifyTimeout,
	}
	if pipeline.now == nil {
		pipeline.now = time.Now
	}
	if pipeline.gate == nil {
		pipeline.gate = debounce.New(model.DefaultSessionConfig().DebounceWindow)
	}
	return pipeline
}

// Schedule runs the cycle on scheduler, re-armed period after each cycle ends.
func (pipeline *Pipeline) Schedule(ctx context.Context, scheduler Scheduler, period time.Duration) {
	scheduler.Every(period, func() {
		if ctx.Err() != nil {
			return
		}
		pipeline.Cycle(ctx)
	})
}

// Frames returns the number of frames read so far.
func (pipeline *Pipeline) Frames() uint64 {
	return pipeline.frames
}

// Cycle processes at most one frame. It never returns an error: failures of
// the camera or of an analysis collaborator skip that work and are logged.
func (pipeline *Pipeline) Cycle(ctx context.Context) Result {
	var result Result
	if pipeline.session == nil {
		result.Skip = SkipNoCamera
		return result
	}
	source := pipeline.session.Camera()
	if source == nil {
		result.Skip = SkipNoCamera
		return result
	}

	frame, err := source.Read()
	if err != nil || frame == nil {
		pipeline.noteReadFailure(err)
		result.Skip = SkipReadFailed
		return result
	}
	if pipeline.readFailing {
		pipeline.readFailing = false
		pipeline.logger.Info("camera frames resumed")
	}
	pipeline.frames++

	original := CloneRGBA(frame)
	canvas := original
	if pipeline.session.MonitoringActive() {
		canvas = CloneRGBA(original)
		pipeline.analyze(ctx, original, canvas, &result)
	}

	result.Rendered = pipeline.render(canvas)
	if !result.Rendered && result.Skip == SkipNone {
		result.Skip = SkipSinkTooThin
	}
	return result
}

func (pipeline *Pipeline) analyze(ctx context.Context, original, canvas *image.RGBA, result *Result) {
	result.Analyzed = true
	faces := pipeline.detect(original)
	result.Faces = faces
	now := pipeline.now()

	labels := make([]string, len(faces))
	for i, face := range faces {
		crop := Crop(original, face)
		if crop == nil {
			continue
		}
		if pipeline.classifier == nil {
			continue
		}
		label, err := pipeline.classify(ctx, crop)
		if err != nil {
			pipeline.noteClassifyFailure(i, err)
			continue
		}
		if pipeline.classifyFailing {
			pipeline.classifyFailing = false
			pipeline.logger.Info("emotion classification resumed")
		}
		labels[i] = label
		result.Emotions = append(result.Emotions, EmotionEvent{Label: label, Box: face, At: now})
		pipeline.logger.Debug("emotion detected", logging.Args(
			logging.String(logging.FieldEmotion, label),
			logging.Int("face", i),
		)...)

		if label == LabelNeutral && pipeline.gate.ShouldFire(now) {
			pipeline.alert()
			result.Alerted = true
		}
	}

	// Labels go down first so a neighbouring label never hides a box edge.
	for i, face := range faces {
		if labels[i] != "" {
			DrawLabel(canvas, face, labels[i], LabelColor)
		}
	}
	for _, face := range faces {
		DrawBox(canvas, face, BoxColor, boxThickness)
	}
}

func (pipeline *Pipeline) detect(frame *image.RGBA) []image.Rectangle {
	if pipeline.detector == nil {
		return nil
	}
	faces, err := pipeline.detector.Detect(Grayscale(frame))
	if err != nil {
		pipeline.logger.Warn("face detection failed", logging.Args(logging.Error(err))...)
		return nil
	}
	return faces
}

func (pipeline *Pipeline) classify(ctx context.Context, crop image.Image) (label string, err error) {
	if pipeline.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pipeline.timeout)
		defer cancel()
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("classifier panic: %v", recovered)
		}
	}()
	return pipeline.classifier.Classify(ctx, crop)
}

func (pipeline *Pipeline) alert() {
	pipeline.logger.Info("neutral expression alert", logging.Args(
		logging.String(logging.FieldEventType, "more_emotion"),
	)...)
	if pipeline.player != nil {
		pipeline.player.Play(model.SoundMoreEmotion)
	}
	if pipeline.status != nil {
		pipeline.status.SetStatus(model.StatusMoreEmotion)
	}
}

func (pipeline *Pipeline) render(canvas *image.RGBA) bool {
	if pipeline.display == nil {
		return false
	}
	size := pipeline.display.Size()
	if size.X <= 1 || size.Y <= 1 {
		return false
	}
	pipeline.display.Show(Letterbox(canvas, size))
	return true
}

func (pipeline *Pipeline) noteReadFailure(err error) {
	if err == nil || errors.Is(err, capture.ErrNoFrame) {
		return
	}
	if pipeline.readFailing {
		pipeline.logger.Debug("camera read failed", logging.Args(logging.Error(err))...)
		return
	}
	pipeline.readFailing = true
	logging.WarnWithContext(pipeline.logger, "camera read failed", "camera_read",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the camera connection or switch source"),
		logging.String(logging.FieldImpact, "frames are skipped until reads succeed"),
	)
}

func (pipeline *Pipeline) noteClassifyFailure(face int, err error) {
	if pipeline.classifyFailing {
		pipeline.logger.Debug("emotion classification failed", logging.Args(
			logging.Int("face", face),
			logging.Error(err),
		)...)
		return
	}
	pipeline.classifyFailing = true
	logging.WarnWithContext(pipeline.logger, "emotion classification failed", "emotion_classify",
		logging.Int("face", face),
		logging.Error(err),
		logging.String(logging.FieldImpact, "faces are drawn without a label"),
	)
}
