package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"sessionwatch/internal/logging"
	"sessionwatch/internal/storage"
	"sessionwatch/internal/ui/preferences"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	getenv       func(string) string

	settingsOnce sync.Once
	settings     preferences.Settings
	path         string
	settingsErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		getenv:       os.Getenv,
	}
}

func (c *commandContext) configPath() (string, error) {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path, nil
		}
	}
	return storage.ConfigPath(appName)
}

// ensureSettings loads the settings file once, then applies environment and
// flag overrides in that order.
func (c *commandContext) ensureSettings() (preferences.Settings, string, error) {
	c.settingsOnce.Do(func() {
		path, err := c.configPath()
		if err != nil {
			c.settings = preferences.DefaultSettings()
			c.settingsErr = err
			return
		}
		c.path = path

		settings, err := storage.LoadSettingsFile(path)
		if err != nil {
			c.settings = settings
			c.settingsErr = err
			return
		}
		storage.ApplyEnv(&settings, c.getenv)
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				if _, err := logging.ParseLevel(level); err != nil {
					c.settings = settings
					c.settingsErr = fmt.Errorf("--log-level: %w", err)
					return
				}
				settings.LogLevel = strings.ToLower(level)
			}
		}
		c.settings = settings
	})
	return c.settings, c.path, c.settingsErr
}

func (c *commandContext) logger(settings preferences.Settings) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}
