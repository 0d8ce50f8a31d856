package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/server"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/remote"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/rtl"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/sim"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

const (
	// DefaultStatusInterval is the cadence of the periodic status log line.
	DefaultStatusInterval = time.Minute

	// DefaultMaxBatchSize is the number of frames written to the capture
	// store per transaction.
	DefaultMaxBatchSize = 100

	captureDir = "data"
)

// Config represents the main service configuration. Engine, server and
// manager settings keep their package defaults when left zero; sources are
// opt-in, a section present in the file registers that source.
type Config struct {
	Settings  Settings             `yaml:"settings"`
	Engine    waterfall.Config     `yaml:"engine"`
	Server    server.Config        `yaml:"server"`
	Manager   source.ManagerConfig `yaml:"manager"`
	Sources   SourcesConfig        `yaml:"sources"`
	Capture   CaptureConfig        `yaml:"capture"`
	AutoStart *AutoStartConfig     `yaml:"autoStart"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel       string              `yaml:"logLevel"`       // debug, info, warn or error
	StatusInterval source.TimeDuration `yaml:"statusInterval"` // periodic status log cadence
}

// Level parses the configured log level, defaulting to info when empty.
func (s Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// SourcesConfig enables frame producers. A nil section leaves that source
// unregistered; the first enabled source is the default for start requests
// that do not name one.
type SourcesConfig struct {
	RTL    *rtl.Config    `yaml:"rtl"`
	Sim    *sim.Config    `yaml:"sim"`
	Replay *ReplayConfig  `yaml:"replay"`
	Remote *remote.Config `yaml:"remote"`
}

// ReplayConfig points the replay source at a capture database session.
type ReplayConfig struct {
	DBPath    string  `yaml:"dbPath"`    // capture database file
	SessionID int64   `yaml:"sessionId"` // 0 selects the most recent session
	Speed     float64 `yaml:"speed"`     // playback speed multiplier
	Loop      bool    `yaml:"loop"`      // restart after the last frame
}

// CaptureConfig controls recording of the ingested stream.
type CaptureConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"` // must exist (default: data)
	MaxBatchSize  int    `yaml:"maxBatchSize"`  // frames per write transaction
}

// AutoStartConfig starts a source at boot instead of waiting for the
// control API.
type AutoStartConfig struct {
	Source string        `yaml:"source"` // registry name, empty selects the default
	Tuning source.Tuning `yaml:"tuning"`
}

// DefaultConfig returns the configuration used when no file is provided:
// the RTL-SDR dongle and the synthetic generator registered with package
// defaults, capture disabled.
func DefaultConfig() *Config {
	return (&Config{
		Sources: SourcesConfig{
			RTL: &rtl.Config{},
			Sim: &sim.Config{},
		},
	}).WithDefaults()
}

// WithDefaults fills the zero fields owned by the service. Engine, server
// and manager defaults are applied by their own constructors.
func (c *Config) WithDefaults() *Config {
	if c.Settings.StatusInterval <= 0 {
		c.Settings.StatusInterval = source.NewTimeDuration(DefaultStatusInterval)
	}
	if c.Capture.DataDirectory == "" {
		c.Capture.DataDirectory = captureDir
	}
	if c.Capture.MaxBatchSize <= 0 {
		c.Capture.MaxBatchSize = DefaultMaxBatchSize
	}
	return c
}

// Validate checks the parts of the configuration that are cheaper to
// reject at load time than at first use.
func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	if c.Sources.Replay != nil && c.Sources.Replay.DBPath == "" {
		return fmt.Errorf("replay source requires a database path")
	}

	if c.AutoStart != nil {
		if err := c.AutoStart.Tuning.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("autoStart tuning: %w", err)
		}
	}

	return nil
}

// LoadConfig reads the YAML configuration file. An empty path selects
// DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
