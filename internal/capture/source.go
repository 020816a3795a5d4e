// Package capture defines the camera source contract shared by the frame
// pipeline and the session controller.
package capture

import (
	"errors"
	"fmt"
	"image"
)

// ErrNoFrame indicates that no frame is buffered yet. Callers skip the cycle.
var ErrNoFrame = errors.New("no frame available")

// ErrClosed indicates the source has been released.
var ErrClosed = errors.New("camera source closed")

// Source is an open camera handle.
//
// Read must return promptly: implementations hand back the most recent
// buffered frame or ErrNoFrame, never waiting for the device.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener acquires the camera at one of the known source indices.
type Opener func(index int) (Source, error)

// RGBToImage converts an 8-bit RGB buffer into an RGBA image. stride is the
// byte length of one row; zero means tightly packed.
func RGBToImage(data []byte, width, height, stride int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if stride == 0 {
		stride = width * 3
	}
	if stride < width*3 {
		return nil, fmt.Errorf("row stride %d too small for width %d", stride, width)
	}
	if need := stride*(height-1) + width*3; len(data) < need {
		return nil, fmt.Errorf("short frame: got %d bytes, want %d", len(data), need)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := data[y*stride : y*stride+width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img, nil
}
