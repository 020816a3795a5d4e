package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"sessionwatch/internal/core/model"
	"sessionwatch/internal/logging"
)

// DefaultAudioSink is the GStreamer element alert sounds are played through.
const DefaultAudioSink = "autoaudiosink"

const (
	soundBusPoll    = 100 * time.Millisecond
	maxSoundPlaying = 30 * time.Second
)

// DefaultSoundFiles maps every alert sound to <dir>/<id>.mp3.
func DefaultSoundFiles(dir string) map[model.Sound]string {
	files := make(map[model.Sound]string, 3)
	for _, sound := range []model.Sound{model.SoundCheckEyes, model.SoundCheckPosture, model.SoundMoreEmotion} {
		files[sound] = filepath.Join(dir, string(sound)+".mp3")
	}
	return files
}

// SoundPlayer plays each sound through its own GStreamer pipeline:
//
//	filesrc → decodebin → audioconvert → audioresample → sink
//
// Play never blocks on playback and is safe for concurrent use.
type SoundPlayer struct {
	sink      string
	files     map[model.Sound]string
	logger    *slog.Logger
	available bool

	running sync.WaitGroup
	played  atomic.Uint64
	failed  atomic.Uint64
}

// NewSoundPlayer checks that GStreamer provides every element the playback
// pipeline needs. When one is missing, the returned player stays silent and
// Available reports false.
func NewSoundPlayer(sink string, files map[model.Sound]string, logger *slog.Logger) *SoundPlayer {
	logger = logging.NewComponentLogger(logger, "sound")
	sink = strings.TrimSpace(sink)
	if sink == "" {
		sink = DefaultAudioSink
	}
	player := &SoundPlayer{
		sink:   sink,
		files:  make(map[model.Sound]string, len(files)),
		logger: logger,
	}
	for sound, file := range files {
		player.files[sound] = file
	}

	gst.Init(nil)
	for _, name := range []string{"filesrc", "decodebin", "audioconvert", "audioresample", sink} {
		if _, err := gst.NewElement(name); err != nil {
			logging.WarnWithContext(logger, "sound playback unavailable", "sound_player_missing",
				logging.String("element", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "install the GStreamer base and good plugins or set audio_sink in settings"),
				logging.String(logging.FieldImpact, "alerts are shown without sound"),
			)
			return player
		}
	}
	player.available = true
	return player
}

// Available reports whether the playback pipeline can be built.
func (player *SoundPlayer) Available() bool {
	return player != nil && player.available
}

// Play starts playback of sound and returns immediately.
func (player *SoundPlayer) Play(sound model.Sound) {
	if !player.Available() {
		return
	}
	file := player.files[sound]
	if file == "" {
		player.logger.Debug("no file configured for sound", logging.String(logging.FieldReminder, string(sound)))
		return
	}

	pipeline, err := player.build(file)
	if err == nil {
		if err = pipeline.SetState(gst.StatePlaying); err != nil {
			_ = pipeline.SetState(gst.StateNull)
		}
	}
	if err != nil {
		player.failed.Add(1)
		player.logger.Warn("start sound playback failed",
			logging.String(logging.FieldReminder, string(sound)),
			logging.String("file", file),
			logging.Error(err),
		)
		return
	}

	player.running.Add(1)
	go player.watch(pipeline, file)
}

// Wait blocks until every started playback has finished.
func (player *SoundPlayer) Wait() {
	if player == nil {
		return
	}
	player.running.Wait()
}

func (player *SoundPlayer) build(file string) (*gst.Pipeline, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	source, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, fmt.Errorf("create filesrc: %w", err)
	}
	if err := source.SetProperty("location", file); err != nil {
		return nil, fmt.Errorf("set location: %w", err)
	}
	decoder, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("create decodebin: %w", err)
	}
	converter, err := gst.NewElement("audioconvert")
	if err != nil {
		return nil, fmt.Errorf("create audioconvert: %w", err)
	}
	resampler, err := gst.NewElement("audioresample")
	if err != nil {
		return nil, fmt.Errorf("create audioresample: %w", err)
	}
	sink, err := gst.NewElement(player.sink)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", player.sink, err)
	}

	if err := pipeline.AddMany(source, decoder, converter, resampler, sink); err != nil {
		return nil, fmt.Errorf("add elements: %w", err)
	}
	if err := source.Link(decoder); err != nil {
		return nil, fmt.Errorf("link decoder: %w", err)
	}
	if err := gst.ElementLinkMany(converter, resampler, sink); err != nil {
		return nil, fmt.Errorf("link audio chain: %w", err)
	}
	// decodebin exposes its pads once the file type is known.
	decoder.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		player.linkAudioPad(srcPad, converter)
	})
	return pipeline, nil
}

func (player *SoundPlayer) linkAudioPad(srcPad *gst.Pad, converter *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return
	}
	if !strings.HasPrefix(caps.GetStructureAt(0).Name(), "audio/") {
		return
	}
	sinkPad := converter.GetStaticPad("sink")
	if sinkPad == nil {
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		player.logger.Debug("audio pad not linked",
			logging.String("pad", srcPad.GetName()),
			logging.Int("result", int(ret)),
		)
	}
}

// watch drains the pipeline bus until the sound ends, then releases it.
func (player *SoundPlayer) watch(pipeline *gst.Pipeline, file string) {
	defer player.running.Done()
	defer func() { _ = pipeline.SetState(gst.StateNull) }()

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(maxSoundPlaying)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(soundBusPoll)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			player.played.Add(1)
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			player.failed.Add(1)
			player.logger.Warn("sound playback failed",
				logging.String("file", file),
				logging.Error(errors.New(gerr.Error())),
				logging.String("debug", gerr.DebugString()),
			)
			return
		}
	}
	player.failed.Add(1)
	player.logger.Warn("sound playback did not finish",
		logging.String("file", file),
		logging.Duration("waited", maxSoundPlaying),
	)
}
