// Package config loads the decoder/CLI runtime configuration from a
// YAML file: tolerance settings for the NFA decoder and the logging
// setup shared by every cmd/irp subcommand.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of an irp config file.
type Config struct {
	Decode DecodeConfig `yaml:"decode"`
	Log    LogConfig    `yaml:"log"`
}

// DecodeConfig holds the NFA decoder's tolerance settings.
type DecodeConfig struct {
	AbsoluteToleranceUs  int64 `yaml:"absolute_tolerance_us"`
	RelativeTolerancePct int64 `yaml:"relative_tolerance_pct"`
}

// LogConfig controls cmd/irp's structured logging.
type LogConfig struct {
	Level          string `yaml:"level"`           // debug, info, warn, error
	TimestampFormat string `yaml:"timestamp_format"` // strftime pattern, e.g. "%Y-%m-%d %H:%M:%S"
	ReportCaller   bool   `yaml:"report_caller"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Decode: DecodeConfig{
			AbsoluteToleranceUs:  100,
			RelativeTolerancePct: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML config file, falling back to Default
// for any field the file does not set.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger builds a charmbracelet/log.Logger from LogConfig.
func (c LogConfig) NewLogger() (*log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportCaller: c.ReportCaller})
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log: bad level %q: %w", c.Level, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// FormatTimestamp renders t using the config's strftime pattern
// (falling back to "%Y-%m-%d %H:%M:%S"). No cmd/irp subcommand calls
// it; CLI output carries no timestamps.
func (c LogConfig) FormatTimestamp(t time.Time) (string, error) {
	pattern := c.TimestampFormat
	if pattern == "" {
		pattern = "%Y-%m-%d %H:%M:%S"
	}
	s, err := strftime.Format(pattern, t)
	if err != nil {
		return "", fmt.Errorf("log: bad timestamp_format: %w", err)
	}
	return s, nil
}
