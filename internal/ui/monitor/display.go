package monitor

import (
	"image"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
)

// Display shows pipeline frames. Size and Show may be called from any
// goroutine.
type Display struct {
	image   *canvas.Image
	content *fyne.Container
	scale   func() float32

	width  atomic.Int32
	height atomic.Int32
}

// NewDisplay returns an empty display. scale reports the canvas pixel scale
// and may be nil.
func NewDisplay(scale func() float32) *Display {
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest

	display := &Display{image: img, scale: scale}
	display.content = container.New(&displayLayout{display: display}, img)
	return display
}

// Object returns the canvas object to place in a window.
func (display *Display) Object() fyne.CanvasObject {
	return display.content
}

// Size returns the last laid out size in pixels.
func (display *Display) Size() image.Point {
	return image.Pt(int(display.width.Load()), int(display.height.Load()))
}

// Show replaces the displayed frame on the UI goroutine.
func (display *Display) Show(frame image.Image) {
	fyne.Do(func() {
		display.image.Image = frame
		display.image.Refresh()
	})
}

func (display *Display) record(size fyne.Size) {
	scale := float32(1)
	if display.scale != nil {
		if value := display.scale(); value > 0 {
			scale = value
		}
	}
	display.width.Store(int32(size.Width * scale))
	display.height.Store(int32(size.Height * scale))
}

// displayLayout stretches the image over its cell and records the cell size.
type displayLayout struct {
	display *Display
}

func (layout *displayLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, object := range objects {
		object.Move(fyne.NewPos(0, 0))
		object.Resize(size)
	}
	layout.display.record(size)
}

func (layout *displayLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(1, 1)
}
