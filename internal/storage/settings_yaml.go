package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sessionwatch/internal/logging"
	"sessionwatch/internal/platform"
	"sessionwatch/internal/ui/preferences"
)

const settingsFileName = "settings.yaml"

// Environment overrides applied on top of the settings file.
const (
	EnvLogLevel = "SESSIONWATCH_LOG_LEVEL"
	EnvCamera0  = "SESSIONWATCH_CAMERA0"
	EnvCamera1  = "SESSIONWATCH_CAMERA1"
)

const (
	minCaptureWidth  = 160
	maxCaptureWidth  = 3840
	minCaptureHeight = 120
	maxCaptureHeight = 2160
)

type yamlSettings struct {
	Camera0       string `yaml:"camera0"`
	Camera1       string `yaml:"camera1"`
	CaptureWidth  int    `yaml:"capture_width"`
	CaptureHeight int    `yaml:"capture_height"`
	CascadePath   string `yaml:"cascade_path"`
	PythonPath    string `yaml:"python_path"`
	WorkerScript  string `yaml:"worker_script"`
	SoundDir      string `yaml:"sound_dir"`
	EyesSound     string `yaml:"eyes_sound"`
	PostureSound  string `yaml:"posture_sound"`
	EmotionSound  string `yaml:"emotion_sound"`
	AudioSink     string `yaml:"audio_sink"`
	DarkMode      *bool  `yaml:"dark_mode"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

// ConfigPath returns the settings file location for appName.
func ConfigPath(appName string) (string, error) {
	dir, err := platform.AppDir(appName)
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, settingsFileName), nil
}

// LoadSettings reads user preferences from the default location.
func LoadSettings(appName string) (preferences.Settings, error) {
	configPath, err := ConfigPath(appName)
	if err != nil {
		return preferences.DefaultSettings(), err
	}
	return LoadSettingsFile(configPath)
}

// LoadSettingsFile reads user preferences from YAML at configPath.
// If the file does not exist, default settings are returned.
func LoadSettingsFile(configPath string) (preferences.Settings, error) {
	settings := preferences.DefaultSettings()

	rawData, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYamlSettings(&settings, fileData)
	return settings, nil
}

// SaveSettings writes user preferences to the default location.
func SaveSettings(appName string, settings preferences.Settings) error {
	configPath, err := ConfigPath(appName)
	if err != nil {
		return err
	}
	return SaveSettingsFile(configPath, settings)
}

// SaveSettingsFile writes user preferences to YAML at configPath.
func SaveSettingsFile(configPath string, settings preferences.Settings) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	serialized, err := MarshalSettings(settings)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

// MarshalSettings renders settings as YAML.
func MarshalSettings(settings preferences.Settings) ([]byte, error) {
	darkMode := settings.DarkMode
	fileData := yamlSettings{
		Camera0:       settings.Camera0,
		Camera1:       settings.Camera1,
		CaptureWidth:  settings.CaptureWidth,
		CaptureHeight: settings.CaptureHeight,
		CascadePath:   settings.CascadePath,
		PythonPath:    settings.PythonPath,
		WorkerScript:  settings.WorkerScript,
		SoundDir:      settings.SoundDir,
		EyesSound:     settings.EyesSound,
		PostureSound:  settings.PostureSound,
		EmotionSound:  settings.EmotionSound,
		AudioSink:     settings.AudioSink,
		DarkMode:      &darkMode,
		LogLevel:      settings.LogLevel,
		LogFormat:     settings.LogFormat,
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return nil, fmt.Errorf("marshal settings yaml: %w", err)
	}
	return serialized, nil
}

// ApplyEnv overrides settings from SESSIONWATCH_* variables. Invalid values
// are ignored.
func ApplyEnv(settings *preferences.Settings, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if level := strings.TrimSpace(getenv(EnvLogLevel)); level != "" {
		if _, err := logging.ParseLevel(level); err == nil {
			settings.LogLevel = strings.ToLower(level)
		}
	}
	if device := strings.TrimSpace(getenv(EnvCamera0)); device != "" {
		settings.Camera0 = device
	}
	if device := strings.TrimSpace(getenv(EnvCamera1)); device != "" {
		settings.Camera1 = device
	}
}

func applyYamlSettings(settings *preferences.Settings, fileData yamlSettings) {
	if device := strings.TrimSpace(fileData.Camera0); device != "" {
		settings.Camera0 = device
	}
	if device := strings.TrimSpace(fileData.Camera1); device != "" {
		settings.Camera1 = device
	}
	if fileData.CaptureWidth >= minCaptureWidth && fileData.CaptureWidth <= maxCaptureWidth {
		settings.CaptureWidth = fileData.CaptureWidth
	}
	if fileData.CaptureHeight >= minCaptureHeight && fileData.CaptureHeight <= maxCaptureHeight {
		settings.CaptureHeight = fileData.CaptureHeight
	}

	settings.CascadePath = strings.TrimSpace(fileData.CascadePath)
	if python := strings.TrimSpace(fileData.PythonPath); python != "" {
		settings.PythonPath = python
	}
	settings.WorkerScript = strings.TrimSpace(fileData.WorkerScript)

	settings.SoundDir = strings.TrimSpace(fileData.SoundDir)
	settings.EyesSound = strings.TrimSpace(fileData.EyesSound)
	settings.PostureSound = strings.TrimSpace(fileData.PostureSound)
	settings.EmotionSound = strings.TrimSpace(fileData.EmotionSound)
	if sink := strings.TrimSpace(fileData.AudioSink); sink != "" {
		settings.AudioSink = sink
	}

	if fileData.DarkMode != nil {
		settings.DarkMode = *fileData.DarkMode
	}
	if _, err := logging.ParseLevel(fileData.LogLevel); err == nil && fileData.LogLevel != "" {
		settings.LogLevel = strings.ToLower(strings.TrimSpace(fileData.LogLevel))
	}
	switch format := strings.ToLower(strings.TrimSpace(fileData.LogFormat)); format {
	case "console", "json":
		settings.LogFormat = format
	}
}
