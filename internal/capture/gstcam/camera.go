// Package gstcam captures V4L2 cameras through a GStreamer pipeline:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB) → appsink
//
// The appsink keeps a single buffer and drops older ones, and the sample
// callback stores only the newest decoded frame, so Read never queues
// stale video.
package gstcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"sessionwatch/internal/capture"
	"sessionwatch/internal/logging"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
	busPoll       = 100 * time.Millisecond
)

// newSource creates the element frames are captured from.
var newSource = func(device string) (*gst.Element, error) {
	source, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("create v4l2src: %w", err)
	}
	if err := source.SetProperty("device", device); err != nil {
		return nil, fmt.Errorf("set device: %w", err)
	}
	return source, nil
}

// Config selects the device and output size.
type Config struct {
	Device string
	Width  int
	Height int
	Logger *slog.Logger
}

// Camera is a running capture pipeline. It implements capture.Source.
type Camera struct {
	device   string
	width    int
	height   int
	pipeline *gst.Pipeline
	logger   *slog.Logger

	mu      sync.Mutex
	latest  *image.RGBA
	failure error

	frames    atomic.Uint64
	firstOnce sync.Once

	cancel    context.CancelFunc
	monitor   sync.WaitGroup
	closeOnce sync.Once
}

// NewOpener returns an Opener mapping source indices onto devices.
func NewOpener(devices []string, width, height int, logger *slog.Logger) capture.Opener {
	return func(index int) (capture.Source, error) {
		if index < 0 || index >= len(devices) || devices[index] == "" {
			return nil, fmt.Errorf("no device configured for camera %d", index)
		}
		return Open(Config{Device: devices[index], Width: width, Height: height, Logger: logger})
	}
}

// Open builds the pipeline and sets it playing without waiting for a frame.
// Read reports capture.ErrNoFrame until the first frame arrives, and the
// device error once the pipeline fails.
func Open(cfg Config) (*Camera, error) {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	gst.Init(nil)

	camera := &Camera{
		device: cfg.Device,
		width:  cfg.Width,
		height: cfg.Height,
		logger: logging.NewComponentLogger(cfg.Logger, "camera").With(logging.String(logging.FieldDevice, cfg.Device)),
	}
	if err := camera.build(); err != nil {
		return nil, err
	}

	if err := camera.pipeline.SetState(gst.StatePlaying); err != nil {
		camera.teardown()
		return nil, fmt.Errorf("start camera %s: %w", cfg.Device, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	camera.cancel = cancel
	camera.monitor.Add(1)
	go camera.watchBus(ctx)

	camera.logger.Info("camera started", logging.Args(
		logging.Int("width", camera.width),
		logging.Int("height", camera.height),
	)...)
	return camera, nil
}

func (camera *Camera) build() error {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	camera.pipeline = pipeline

	source, err := newSource(camera.device)
	if err != nil {
		return err
	}
	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("create videoconvert: %w", err)
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("create videoscale: %w", err)
	}
	filter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("create capsfilter: %w", err)
	}
	caps := fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", camera.width, camera.height)
	if err := filter.SetProperty("caps", gst.NewCapsFromString(caps)); err != nil {
		return fmt.Errorf("set caps: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: camera.onSample,
	})

	if err := pipeline.AddMany(source, converter, scaler, filter, sink.Element); err != nil {
		return fmt.Errorf("add elements: %w", err)
	}
	if err := gst.ElementLinkMany(source, converter, scaler, filter, sink.Element); err != nil {
		return fmt.Errorf("link elements: %w", err)
	}
	return nil
}

// onSample runs on a GStreamer streaming thread.
func (camera *Camera) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	frame, err := capture.RGBToImage(data, camera.width, camera.height, len(data)/camera.height)
	buffer.Unmap()
	if err != nil {
		camera.logger.Debug("dropping malformed frame", logging.Args(logging.Error(err))...)
		return gst.FlowOK
	}

	camera.mu.Lock()
	camera.latest = frame
	camera.mu.Unlock()
	camera.frames.Add(1)
	camera.firstOnce.Do(func() { camera.logger.Info("camera streaming") })
	return gst.FlowOK
}

func (camera *Camera) watchBus(ctx context.Context) {
	defer camera.monitor.Done()
	bus := camera.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg := bus.TimedPop(busPoll)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			camera.fail(fmt.Errorf("%s", gerr.Error()))
			camera.logger.Warn("camera pipeline error", logging.Args(
				logging.String("error", gerr.Error()),
				logging.String("debug", gerr.DebugString()),
			)...)
			return
		case gst.MessageEOS:
			camera.fail(errors.New("end of stream"))
			camera.logger.Info("camera stream ended")
			return
		}
	}
}

func (camera *Camera) fail(err error) {
	camera.mu.Lock()
	if camera.failure == nil {
		camera.failure = err
	}
	camera.mu.Unlock()
}

// Read returns the newest frame. The returned image is never written again.
func (camera *Camera) Read() (image.Image, error) {
	camera.mu.Lock()
	defer camera.mu.Unlock()
	if camera.failure != nil {
		return nil, camera.failure
	}
	if camera.latest == nil {
		return nil, capture.ErrNoFrame
	}
	return camera.latest, nil
}

// Frames returns the number of frames received so far.
func (camera *Camera) Frames() uint64 {
	return camera.frames.Load()
}

// Close stops the pipeline. Later reads return capture.ErrClosed.
func (camera *Camera) Close() error {
	var err error
	camera.closeOnce.Do(func() {
		if camera.cancel != nil {
			camera.cancel()
		}
		camera.monitor.Wait()
		err = camera.teardown()
		camera.mu.Lock()
		camera.latest = nil
		if camera.failure == nil {
			camera.failure = capture.ErrClosed
		}
		camera.mu.Unlock()
		camera.logger.Info("camera closed", logging.Args(logging.Uint64("frames", camera.frames.Load()))...)
	})
	return err
}

func (camera *Camera) teardown() error {
	if camera.pipeline == nil {
		return nil
	}
	if err := camera.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop camera %s: %w", camera.device, err)
	}
	return nil
}
