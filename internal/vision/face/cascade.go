// Package face detects frontal faces with an OpenCV Haar cascade.
package face

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Params tunes the multi-scale search.
type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
}

// ErrInvalidParams reports search parameters the cascade cannot run with.
var ErrInvalidParams = errors.New("invalid detection parameters")

// Validate checks that the scale step grows the window and that at least one
// neighbour is required.
func (params Params) Validate() error {
	if params.ScaleFactor <= 1 {
		return fmt.Errorf("%w: scale factor %.2f must be above 1", ErrInvalidParams, params.ScaleFactor)
	}
	if params.MinNeighbors <= 0 {
		return fmt.Errorf("%w: min neighbors %d must be positive", ErrInvalidParams, params.MinNeighbors)
	}
	if params.MinSize.X < 0 || params.MinSize.Y < 0 {
		return fmt.Errorf("%w: negative min size %v", ErrInvalidParams, params.MinSize)
	}
	return nil
}

// Cascade is a loaded Haar cascade classifier.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     Params
	closed     bool
}

// Load reads the cascade XML at path.
func Load(path string, params Params) (*Cascade, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", path)
	}
	return &Cascade{classifier: classifier, params: params}, nil
}

// Detect returns face rectangles in gray, in frame coordinates.
func (cascade *Cascade) Detect(gray *image.Gray) ([]image.Rectangle, error) {
	cascade.mu.Lock()
	defer cascade.mu.Unlock()
	if cascade.closed {
		return nil, errors.New("cascade closed")
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	rects := cascade.classifier.DetectMultiScaleWithParams(
		mat,
		cascade.params.ScaleFactor,
		cascade.params.MinNeighbors,
		0,
		cascade.params.MinSize,
		image.Point{},
	)
	offset := gray.Bounds().Min
	for i := range rects {
		rects[i] = rects[i].Add(offset)
	}
	return rects, nil
}

// Close releases the classifier.
func (cascade *Cascade) Close() error {
	cascade.mu.Lock()
	defer cascade.mu.Unlock()
	if cascade.closed {
		return nil
	}
	cascade.closed = true
	return cascade.classifier.Close()
}
