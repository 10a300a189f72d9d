// Package config loads the optional voxtalk YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fmueller/voxtalk/internal/platform"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Language is the transcription language code, e.g. en-US.
	Language  string          `yaml:"language"`
	Backend   string          `yaml:"backend"`
	Notify    bool            `yaml:"notify"`
	Capture   CaptureConfig   `yaml:"capture"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Speech    SpeechConfig    `yaml:"speech"`
	Google    GoogleConfig    `yaml:"google"`
	Translate TranslateConfig `yaml:"translate"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type CaptureConfig struct {
	Device               string  `yaml:"device"`
	Driver               string  `yaml:"driver"`
	SampleRate           int     `yaml:"sample_rate"`
	Channels             int     `yaml:"channels"`
	ChunkFrames          int     `yaml:"chunk_frames"`
	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`
}

type PlaybackConfig struct {
	Device      string `yaml:"device"`
	Driver      string `yaml:"driver"`
	ChunkFrames int    `yaml:"chunk_frames"`
}

type SpeechConfig struct {
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
	// OutputDir holds synthesized files; empty means the per-user data dir.
	OutputDir string `yaml:"output_dir"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	APIKey          string `yaml:"api_key"`
	ProjectID       string `yaml:"project_id"`
	Region          string `yaml:"region"`
	Model           string `yaml:"model"`
}

type TranslateConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	TargetLanguage string        `yaml:"target_language"`
	Timeout        time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File is an optional rotated JSON log file.
	File string `yaml:"file"`
}

func Default() Config {
	return Config{
		Language: "en-US",
		Backend:  "auto",
		Capture: CaptureConfig{
			SampleRate:           16000,
			Channels:             1,
			ChunkFrames:          1024,
			SilenceGate:          true,
			SilenceThresholdDBFS: -65,
		},
		Playback: PlaybackConfig{ChunkFrames: 1024},
		Speech:   SpeechConfig{Voice: "en-US-Wavenet-D", Language: "en-US"},
		Google:   GoogleConfig{Model: "long"},
		Translate: TranslateConfig{
			Endpoint:       "http://127.0.0.1:7060/translate",
			TargetLanguage: "es",
			Timeout:        30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the config at override, or at the per-user location when
// override is empty. Only an explicitly requested file has to exist.
func Resolve(override string) (Config, string, error) {
	path, err := platform.ResolveConfigPath(override)
	if err != nil {
		if override == "" {
			return Default(), "", nil
		}
		return Config{}, "", err
	}

	cfg, err := Load(path)
	if err != nil {
		if override == "" && errors.Is(err, fs.ErrNotExist) {
			return Default(), "", nil
		}
		return Config{}, path, err
	}
	return cfg, path, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend) == "" {
		return errors.New("backend cannot be empty")
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}
	if err := c.Translate.Validate(); err != nil {
		return fmt.Errorf("translate config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.ChunkFrames < 64 {
		return fmt.Errorf("chunk_frames must be at least 64, got %d", c.ChunkFrames)
	}
	if c.SilenceThresholdDBFS > 0 {
		return fmt.Errorf("silence_threshold_dbfs must not be positive, got %g", c.SilenceThresholdDBFS)
	}
	return validateDriver(c.Driver)
}

func (p *PlaybackConfig) Validate() error {
	if p.ChunkFrames < 64 {
		return fmt.Errorf("chunk_frames must be at least 64, got %d", p.ChunkFrames)
	}
	return validateDriver(p.Driver)
}

func validateDriver(driver string) error {
	switch driver {
	case "", "pulse", "alsa":
		return nil
	default:
		return fmt.Errorf("driver must be 'pulse' or 'alsa', got '%s'", driver)
	}
}

func (t *TranslateConfig) Validate() error {
	if t.Endpoint == "" {
		return errors.New("endpoint cannot be empty")
	}
	if !strings.HasPrefix(t.Endpoint, "http://") && !strings.HasPrefix(t.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got '%s'", t.Endpoint)
	}
	if t.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", t.Timeout)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'console', got '%s'", l.Format)
	}
	return nil
}
