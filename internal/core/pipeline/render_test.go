package pipeline

import (
	"image"
	"image/color"
	"testing"
)

func solid(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func isBlack(c color.RGBA) bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

var red = color.RGBA{R: 255, A: 255}

func TestFitRect(t *testing.T) {
	cases := []struct {
		name string
		src  image.Point
		box  image.Point
		want image.Rectangle
	}{
		{"narrow source pillarboxed", image.Pt(400, 600), image.Pt(800, 600), image.Rect(200, 0, 600, 600)},
		{"wide source letterboxed", image.Pt(640, 240), image.Pt(640, 480), image.Rect(0, 120, 640, 360)},
		{"same aspect scaled up", image.Pt(320, 240), image.Pt(1280, 960), image.Rect(0, 0, 1280, 960)},
		{"odd margin", image.Pt(3, 4), image.Pt(10, 4), image.Rect(3, 0, 6, 4)},
		{"empty source", image.Pt(0, 10), image.Pt(10, 10), image.Rectangle{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FitRect(tc.src, tc.box); got != tc.want {
				t.Fatalf("FitRect(%v, %v) = %v, want %v", tc.src, tc.box, got, tc.want)
			}
		})
	}
}

func TestLetterboxPillarboxesNarrowFrames(t *testing.T) {
	out := Letterbox(solid(400, 600, red), image.Pt(800, 600))
	if out.Bounds() != image.Rect(0, 0, 800, 600) {
		t.Fatalf("bounds = %v", out.Bounds())
	}

	for _, y := range []int{0, 299, 599} {
		left, right := 0, 0
		for x := 0; x < 800; x++ {
			if !isBlack(out.RGBAAt(x, y)) {
				break
			}
			left++
		}
		for x := 799; x >= 0; x-- {
			if !isBlack(out.RGBAAt(x, y)) {
				break
			}
			right++
		}
		if left != 200 || right != 200 {
			t.Fatalf("row %d: margins left=%d right=%d, want 200/200", y, left, right)
		}
	}
	for _, x := range []int{200, 400, 599} {
		if isBlack(out.RGBAAt(x, 0)) || isBlack(out.RGBAAt(x, 599)) {
			t.Fatalf("column %d should be covered top to bottom", x)
		}
	}
}

func TestLetterboxCentersWithinOnePixel(t *testing.T) {
	sizes := []image.Point{image.Pt(801, 600), image.Pt(333, 97), image.Pt(1280, 719)}
	for _, size := range sizes {
		content := FitRect(image.Pt(640, 480), size)
		left := content.Min.X
		right := size.X - content.Max.X
		top := content.Min.Y
		bottom := size.Y - content.Max.Y
		if abs(left-right) > 1 || abs(top-bottom) > 1 {
			t.Fatalf("size %v: content %v not centered", size, content)
		}
		if left > 0 && top > 0 {
			t.Fatalf("size %v: content %v padded on both axes", size, content)
		}
	}
}

func TestLetterboxScalesDown(t *testing.T) {
	out := Letterbox(solid(1920, 1080, red), image.Pt(192, 108))
	if isBlack(out.RGBAAt(0, 0)) || isBlack(out.RGBAAt(191, 107)) {
		t.Fatal("expected content to cover the full sink")
	}
}

func TestCropClampsToBounds(t *testing.T) {
	img := solid(10, 10, red)
	img.SetRGBA(9, 9, color.RGBA{B: 255, A: 255})

	crop := Crop(img, image.Rect(5, 5, 20, 20))
	if crop.Bounds() != image.Rect(0, 0, 5, 5) {
		t.Fatalf("crop bounds = %v, want 5x5", crop.Bounds())
	}
	if got := crop.RGBAAt(4, 4); got.B != 255 {
		t.Fatalf("expected corner pixel copied, got %v", got)
	}
	if Crop(img, image.Rect(20, 20, 30, 30)) != nil {
		t.Fatal("expected nil crop outside image")
	}

	crop.SetRGBA(0, 0, color.RGBA{G: 255, A: 255})
	if img.RGBAAt(5, 5) != red {
		t.Fatal("crop must not alias the source")
	}
}

func TestDrawBox(t *testing.T) {
	img := solid(20, 20, color.RGBA{A: 255})
	DrawBox(img, image.Rect(5, 5, 15, 15), BoxColor, 2)

	cases := []struct {
		x, y int
		want bool
	}{
		{5, 5, true},
		{6, 10, true},
		{14, 14, true},
		{10, 13, true},
		{7, 7, false},
		{4, 4, false},
		{15, 15, false},
	}
	for _, tc := range cases {
		got := img.RGBAAt(tc.x, tc.y) == BoxColor
		if got != tc.want {
			t.Errorf("pixel (%d,%d) boxed=%v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestDrawLabelPaintsAboveBox(t *testing.T) {
	img := solid(100, 60, color.RGBA{A: 255})
	box := image.Rect(10, 40, 60, 59)
	DrawLabel(img, box, "happy", LabelColor)

	painted := 0
	for y := 0; y < box.Min.Y; y++ {
		for x := 0; x < 100; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{A: 255}) {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Fatal("expected label pixels above the box")
	}
	for y := box.Min.Y; y < 60; y++ {
		for x := 0; x < 100; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{A: 255}) {
				t.Fatalf("label leaked into box at (%d,%d)", x, y)
			}
		}
	}
}

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(2, 2, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	gray := Grayscale(img)
	if gray.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds = %v, want origin-anchored", gray.Bounds())
	}
	if gray.GrayAt(0, 0).Y != 255 || gray.GrayAt(1, 1).Y != 0 {
		t.Fatalf("unexpected luminance %v %v", gray.GrayAt(0, 0), gray.GrayAt(1, 1))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
