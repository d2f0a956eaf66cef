package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are process-level options from the settings section.
type Settings struct {
	DataDir        string        `env:"RHOM_DATA_DIR"`
	DefaultTimeout time.Duration `env:"RHOM_DEFAULT_TIMEOUT"`
	LogLevel       string        `env:"RHOM_LOG_LEVEL"`
}

// LoadSettings reads the settings section and applies environment overrides.
func (c Config) LoadSettings() (Settings, error) {
	s := c.Sub("settings")
	settings := Settings{
		DataDir:        s.String("data_dir", "."),
		DefaultTimeout: s.Duration("default_timeout", 0),
		LogLevel:       s.String("log_level", "info"),
	}
	if err := ApplyEnv(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// ApplyEnv overwrites fields whose environment variables are set.
func ApplyEnv(target *Settings) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
