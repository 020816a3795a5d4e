package pipeline

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	BoxColor   = color.RGBA{R: 236, G: 2, B: 89, A: 255}
	LabelColor = color.RGBA{R: 176, G: 77, B: 224, A: 255}
)

const (
	boxThickness = 2
	labelOffset  = 10
)

// CloneRGBA copies img into a new RGBA image anchored at the origin.
func CloneRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Grayscale converts img to an 8-bit luminance image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Crop copies the part of img inside rect, clamped to the image bounds.
// It returns nil when nothing of rect lies inside the image.
func Crop(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Canon().Intersect(img.Bounds())
	if rect.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// DrawBox outlines rect with a border of the given thickness drawn inward.
func DrawBox(dst *image.RGBA, rect image.Rectangle, c color.Color, thickness int) {
	rect = rect.Canon()
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, edge := range edges {
		edge = edge.Intersect(dst.Bounds())
		if edge.Empty() {
			continue
		}
		draw.Draw(dst, edge, src, image.Point{}, draw.Src)
	}
}

// DrawLabel writes text with its baseline just above the top-left corner of
// box. The baseline is pushed down when the box touches the top edge so the
// label stays visible.
func DrawLabel(dst *image.RGBA, box image.Rectangle, text string, c color.Color) {
	face := basicfont.Face7x13
	x := box.Min.X
	y := box.Min.Y - labelOffset
	if ascent := face.Metrics().Ascent.Ceil(); y < ascent {
		y = ascent
	}
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

// FitRect returns the largest rectangle with the aspect ratio of src that
// fits inside a box of the given size, centered in it. Sources are scaled
// up as well as down.
func FitRect(src, box image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || box.X <= 0 || box.Y <= 0 {
		return image.Rectangle{}
	}
	width, height := box.X, box.Y
	if src.X*box.Y > box.X*src.Y {
		height = (src.Y*box.X + src.X/2) / src.X
	} else {
		width = (src.X*box.Y + src.Y/2) / src.Y
	}
	width = clamp(width, 1, box.X)
	height = clamp(height, 1, box.Y)
	x := (box.X - width) / 2
	y := (box.Y - height) / 2
	return image.Rect(x, y, x+width, y+height)
}

// Letterbox scales src to fit size and pads the rest with black.
func Letterbox(src image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	content := FitRect(src.Bounds().Size(), size)
	if content.Empty() {
		return dst
	}
	draw.BiLinear.Scale(dst, content, src, src.Bounds(), draw.Src, nil)
	return dst
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
