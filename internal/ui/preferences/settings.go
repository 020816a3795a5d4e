package preferences

import (
	"path/filepath"

	"sessionwatch/internal/core/model"
	"sessionwatch/internal/platform"
)

// Settings defines editable user preferences.
type Settings struct {
	Camera0       string
	Camera1       string
	CaptureWidth  int
	CaptureHeight int

	CascadePath  string
	PythonPath   string
	WorkerScript string

	SoundDir     string
	EyesSound    string
	PostureSound string
	EmotionSound string
	AudioSink    string

	DarkMode  bool
	LogLevel  string
	LogFormat string
}

// DefaultSettings returns default settings for SessionWatch.
func DefaultSettings() Settings {
	return Settings{
		Camera0:       "/dev/video0",
		Camera1:       "/dev/video1",
		CaptureWidth:  640,
		CaptureHeight: 480,
		PythonPath:    "python3",
		AudioSink:     platform.DefaultAudioSink,
		DarkMode:      true,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Devices returns the camera device paths indexed by source number.
func (settings Settings) Devices() []string {
	return []string{settings.Camera0, settings.Camera1}
}

// SoundFiles resolves the file for every alert sound. Explicit paths win,
// then SoundDir, then fallbackDir.
func (settings Settings) SoundFiles(fallbackDir string) map[model.Sound]string {
	dir := settings.SoundDir
	if dir == "" {
		dir = fallbackDir
	}
	files := platform.DefaultSoundFiles(dir)
	overrides := map[model.Sound]string{
		model.SoundCheckEyes:    settings.EyesSound,
		model.SoundCheckPosture: settings.PostureSound,
		model.SoundMoreEmotion:  settings.EmotionSound,
	}
	for sound, path := range overrides {
		if path != "" {
			files[sound] = filepath.Clean(path)
		}
	}
	return files
}
