package emotion

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize bounds one framed message in either direction.
const MaxMessageSize = 64 << 20

// Labels is the closed set of emotion labels the worker may return.
var Labels = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

var (
	// ErrNoAnalysis is returned when the worker found nothing to classify.
	ErrNoAnalysis = errors.New("worker returned no analysis")
	// ErrUnknownLabel is returned for labels outside Labels.
	ErrUnknownLabel = errors.New("unknown emotion label")
)

// Request is one face crop sent to the worker as packed 8-bit RGB.
type Request struct {
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Image  []byte `msgpack:"image"`
}

// Analysis is one face analysis as reported by the worker.
type Analysis struct {
	DominantEmotion string             `msgpack:"dominant_emotion"`
	Emotion         map[string]float64 `msgpack:"emotion"`
}

// Response answers the Request with the same Seq.
type Response struct {
	Seq     uint64     `msgpack:"seq"`
	Results []Analysis `msgpack:"results"`
	Error   string     `msgpack:"error,omitempty"`
}

// Dominant returns the dominant label of the first analysis.
func (response Response) Dominant() (string, error) {
	if response.Error != "" {
		return "", fmt.Errorf("worker: %s", response.Error)
	}
	if len(response.Results) == 0 {
		return "", ErrNoAnalysis
	}
	label := strings.ToLower(strings.TrimSpace(response.Results[0].DominantEmotion))
	if !slices.Contains(Labels, label) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, response.Results[0].DominantEmotion)
	}
	return label, nil
}

// WriteMessage msgpack-encodes v and writes it behind a 4-byte big-endian
// length prefix.
func WriteMessage(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack message: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed msgpack message into v. A clean end
// of stream before the prefix is reported as io.EOF.
func ReadMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("read length prefix: %w", err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal msgpack message: %w", err)
	}
	return nil
}

// PackRGB flattens img into 8-bit RGB triplets, row by row.
func PackRGB(img image.Image) (data []byte, width, height int) {
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	data = make([]byte, 0, width*height*3)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(bounds.Min.X, y):rgba.PixOffset(bounds.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				data = append(data, row[i], row[i+1], row[i+2])
			}
		}
		return data, width, height
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			data = append(data, c.R, c.G, c.B)
		}
	}
	return data, width, height
}
