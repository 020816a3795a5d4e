package emotion

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"
)

// startFake wires a Worker to an in-process stand-in for the python worker.
// handle returns false to leave a request unanswered.
func startFake(t *testing.T, handle func(Request) (Response, bool)) (*Worker, *io.PipeWriter) {
	t.Helper()
	requestReader, requestWriter := io.Pipe()
	responseReader, responseWriter := io.Pipe()

	worker := newWorker(requestWriter, responseReader, 200*time.Millisecond, nil)
	go func() {
		defer responseWriter.Close()
		for {
			var request Request
			if err := ReadMessage(requestReader, &request); err != nil {
				return
			}
			response, ok := handle(request)
			if !ok {
				continue
			}
			if err := WriteMessage(responseWriter, response); err != nil {
				return
			}
		}
	}()
	t.Cleanup(worker.Stop)
	return worker, responseWriter
}

func answer(labels ...string) func(Request) (Response, bool) {
	return func(request Request) (Response, bool) {
		response := Response{Seq: request.Seq}
		for _, label := range labels {
			response.Results = append(response.Results, Analysis{
				DominantEmotion: label,
				Emotion:         map[string]float64{label: 97.5},
			})
		}
		return response, true
	}
}

func face(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestClassifyReturnsDominantLabel(t *testing.T) {
	var seen Request
	worker, _ := startFake(t, func(request Request) (Response, bool) {
		seen = request
		return answer("Happy", "sad")(request)
	})

	label, err := worker.Classify(context.Background(), face(4, 3))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if label != "happy" {
		t.Fatalf("label = %q, want happy", label)
	}
	if seen.Width != 4 || seen.Height != 3 || len(seen.Image) != 4*3*3 {
		t.Fatalf("unexpected request %dx%d with %d bytes", seen.Width, seen.Height, len(seen.Image))
	}
}

func TestClassifyReportsWorkerProblems(t *testing.T) {
	cases := []struct {
		name    string
		handle  func(Request) (Response, bool)
		wantErr error
	}{
		{"no analysis", answer(), ErrNoAnalysis},
		{"unknown label", answer("bored"), ErrUnknownLabel},
		{"worker error", func(request Request) (Response, bool) {
			return Response{Seq: request.Seq, Error: "model not loaded"}, true
		}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			worker, _ := startFake(t, tc.handle)
			_, err := worker.Classify(context.Background(), face(2, 2))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestClassifyTimesOutAndDiscardsLateResponse(t *testing.T) {
	worker, _ := startFake(t, func(request Request) (Response, bool) {
		if request.Seq == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		return answer("neutral")(request)
	})

	_, err := worker.Classify(context.Background(), face(2, 2))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first call error = %v, want deadline exceeded", err)
	}

	label, err := worker.Classify(context.Background(), face(2, 2))
	if err != nil {
		t.Fatalf("second call returned error: %v", err)
	}
	if label != "neutral" {
		t.Fatalf("label = %q, want neutral", label)
	}
}

func TestClassifyAfterStop(t *testing.T) {
	worker, _ := startFake(t, answer("happy"))
	worker.Stop()
	worker.Stop()

	if _, err := worker.Classify(context.Background(), face(2, 2)); !errors.Is(err, ErrWorkerStopped) {
		t.Fatalf("error = %v, want ErrWorkerStopped", err)
	}
}

func TestWorkerExitMarksDone(t *testing.T) {
	worker, responses := startFake(t, answer("happy"))
	responses.Close()

	select {
	case <-worker.Done():
	case <-time.After(time.Second):
		t.Fatal("worker not marked done after its output closed")
	}
	if _, err := worker.Classify(context.Background(), face(2, 2)); !errors.Is(err, ErrWorkerStopped) {
		t.Fatalf("error = %v, want ErrWorkerStopped", err)
	}
}

func TestPackRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetRGBA(2, 1, color.RGBA{R: 4, G: 5, B: 6, A: 255})

	sub := img.SubImage(image.Rect(1, 1, 3, 2))
	data, width, height := PackRGB(sub)
	if width != 2 || height != 1 {
		t.Fatalf("size = %dx%d, want 2x1", width, height)
	}
	if want := []byte{1, 2, 3, 4, 5, 6}; string(data) != string(want) {
		t.Fatalf("data = %v, want %v", data, want)
	}

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 9})
	if data, _, _ := PackRGB(gray); string(data) != string([]byte{9, 9, 9}) {
		t.Fatalf("gray data = %v", data)
	}
}
