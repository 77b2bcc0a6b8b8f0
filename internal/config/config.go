// Package config loads daemon configuration from the YAML config file and
// environment variable overrides, and constructs the shared structured logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/1ay1/neowall-sub002/internal/model"
)

const (
	defaultListenAddr    = "127.0.0.1:7621"
	defaultStatePath     = "neowall/state.db"
	defaultCycleDuration = 5 * time.Minute
	defaultTransition    = 500 * time.Millisecond
	defaultFramerate     = 30

	envListenAddr = "NEOWALL_LISTEN_ADDR"
	envStatePath  = "NEOWALL_STATE_PATH"
	envLogLevel   = "NEOWALL_LOG_LEVEL"
	envConfigPath = "NEOWALL_CONFIG"
)

// OutputConfig is the per-output wallpaper configuration. An entry with
// Name "*" applies to outputs without an explicit entry.
type OutputConfig struct {
	Name       string           `yaml:"name"`
	Path       string           `yaml:"path"`
	Scale      model.ScaleMode  `yaml:"scale"`
	Easing     model.EasingMode `yaml:"easing"`
	Duration   time.Duration    `yaml:"-"`
	Transition time.Duration    `yaml:"-"`
	Cycle      bool             `yaml:"cycle"`
}

// UnmarshalYAML decodes duration fields from "30s"/"5m" strings, which the
// yaml package does not do for time.Duration itself.
func (o *OutputConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain OutputConfig
	var raw struct {
		plain      `yaml:",inline"`
		Duration   string `yaml:"duration"`
		Transition string `yaml:"transition"`
	}
	raw.plain = plain(*o)
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*o = OutputConfig(raw.plain)

	var err error
	if raw.Duration != "" {
		if o.Duration, err = time.ParseDuration(raw.Duration); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
	}
	if raw.Transition != "" {
		if o.Transition, err = time.ParseDuration(raw.Transition); err != nil {
			return fmt.Errorf("transition: %w", err)
		}
	}
	return nil
}

// Config holds the full daemon configuration.
type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	StatePath  string         `yaml:"state_path"`
	Framerate  int            `yaml:"framerate"`
	Outputs    []OutputConfig `yaml:"outputs"`

	LogLevel slog.Level `yaml:"-"`

	// Path the configuration was loaded from; empty when no file existed.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	statePath, err := xdg.StateFile(defaultStatePath)
	if err != nil {
		statePath = filepath.Join(os.TempDir(), "neowall-state.db")
	}
	return Config{
		ListenAddr: defaultListenAddr,
		StatePath:  statePath,
		Framerate:  defaultFramerate,
		LogLevel:   slog.LevelInfo,
		Outputs: []OutputConfig{{
			Name:       "*",
			Scale:      model.ScaleFill,
			Easing:     model.EasingEaseInOut,
			Duration:   defaultCycleDuration,
			Transition: defaultTransition,
		}},
	}
}

// Path returns the config file location: $NEOWALL_CONFIG if set, otherwise
// $XDG_CONFIG_HOME/neowall/config.yaml.
func Path() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, "neowall", "config.yaml")
}

// Load reads configuration from the config file (if present) and applies
// environment variable overrides. A missing file is not an error; a malformed
// file is.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads configuration from an explicit path, then environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No config file: defaults plus env.
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envStatePath); v != "" {
		cfg.StatePath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Framerate <= 0 || c.Framerate > 240 {
		return fmt.Errorf("framerate %d out of range (1-240)", c.Framerate)
	}
	seen := make(map[string]bool, len(c.Outputs))
	for i := range c.Outputs {
		o := &c.Outputs[i]
		if o.Name == "" {
			return fmt.Errorf("outputs[%d]: name is required", i)
		}
		if seen[o.Name] {
			return fmt.Errorf("outputs[%d]: duplicate entry for %q", i, o.Name)
		}
		seen[o.Name] = true

		var err error
		if o.Scale, err = model.ParseScaleMode(string(o.Scale)); err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
		if o.Easing, err = model.ParseEasingMode(string(o.Easing)); err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
		if o.Duration < 0 {
			return fmt.Errorf("outputs[%d]: negative duration", i)
		}
		if o.Duration == 0 {
			o.Duration = defaultCycleDuration
		}
		if o.Transition <= 0 {
			o.Transition = defaultTransition
		}
	}
	return nil
}

// ForOutput returns the configuration entry for the named output, falling back
// to the "*" entry and then to built-in defaults.
func (c *Config) ForOutput(name string) OutputConfig {
	var fallback *OutputConfig
	for i := range c.Outputs {
		switch c.Outputs[i].Name {
		case name:
			return c.Outputs[i]
		case "*":
			fallback = &c.Outputs[i]
		}
	}
	if fallback != nil {
		o := *fallback
		o.Name = name
		return o
	}
	o := Default().Outputs[0]
	o.Name = name
	return o
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
