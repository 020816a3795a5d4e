package pipeline

import (
	"context"
	"image"
	"time"

	"sessionwatch/internal/capture"
	"sessionwatch/internal/core/model"
)

// Detection parameters handed to the face detector.
const (
	DetectScaleFactor  = 1.1
	DetectMinNeighbors = 5
)

// LabelNeutral is the emotion label that triggers the "more emotion" alert.
const LabelNeutral = "neutral"

// Detector locates faces in a grayscale frame.
type Detector interface {
	Detect(gray *image.Gray) ([]image.Rectangle, error)
}

// Classifier returns the dominant emotion label for a face crop.
type Classifier interface {
	Classify(ctx context.Context, face image.Image) (string, error)
}

// Display is the render sink for annotated frames.
type Display interface {
	// Size reports the current pixel size of the sink.
	Size() image.Point
	Show(frame image.Image)
}

// Player plays alert sounds without blocking the caller.
type Player interface {
	Play(sound model.Sound)
}

// StatusSink receives the status banner text.
type StatusSink interface {
	SetStatus(text string)
}

// Session exposes the controller state a cycle reads.
type Session interface {
	MonitoringActive() bool
	Camera() capture.Source
}

// Scheduler re-arms the cycle after it returns.
type Scheduler interface {
	Every(period time.Duration, fn func())
}

// EmotionEvent is one classified face in one frame.
type EmotionEvent struct {
	Label string
	Box   image.Rectangle
	At    time.Time
}

// SkipReason explains why a cycle rendered nothing.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNoCamera    SkipReason = "no_camera"
	SkipReadFailed  SkipReason = "read_failed"
	SkipSinkTooThin SkipReason = "sink_too_small"
)

// Result summarises one cycle.
type Result struct {
	Skip     SkipReason
	Analyzed bool
	Faces    []image.Rectangle
	Emotions []EmotionEvent
	Alerted  bool
	Rendered bool
}
