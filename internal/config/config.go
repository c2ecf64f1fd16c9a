// Package config provides configuration loading from YAML or TOML files and
// environment variables. Environment variables take precedence for dev flexibility.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/phinze/touchpoint/internal/delivery"
	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/logging"
	"gopkg.in/yaml.v3"
)

var logger = logging.Child("[config]")

// Environment variables read by Load.
const (
	EnvConfig      = "TOUCHPOINT_CONFIG"
	EnvLogLevel    = "TOUCHPOINT_LOG_LEVEL"
	EnvSynchronous = "TOUCHPOINT_SYNCHRONOUS"
)

// Config holds the full application configuration, assembled from a file + env.
type Config struct {
	Log        LogConfig        `yaml:"log" toml:"log"`
	Delivery   DeliveryConfig   `yaml:"delivery" toml:"delivery"`
	Input      InputConfig      `yaml:"input" toml:"input"`
	Devices    []DeviceConfig   `yaml:"devices,omitempty" toml:"devices,omitempty"`
	Emulator   EmulatorConfig   `yaml:"emulator" toml:"emulator"`
	StreamDeck StreamDeckConfig `yaml:"streamdeck" toml:"streamdeck"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DeliveryConfig controls how producers hand events to the consumer.
type DeliveryConfig struct {
	// Synchronous makes the Default policy block until the event is
	// processed.
	Synchronous bool `yaml:"synchronous" toml:"synchronous"`
	// FlushTimeoutMS bounds a producer's wait for the consumer. 0 waits
	// forever.
	FlushTimeoutMS int `yaml:"flush_timeout_ms" toml:"flush_timeout_ms"`
}

// InputConfig tunes pointer event synthesis.
type InputConfig struct {
	DoubleClickIntervalMS int     `yaml:"double_click_interval_ms" toml:"double_click_interval_ms"`
	DoubleClickDistance   float64 `yaml:"double_click_distance" toml:"double_click_distance"`
	TraceGrabs            bool    `yaml:"trace_grabs,omitempty" toml:"trace_grabs,omitempty"`
}

// EmulatorConfig holds the emulator window settings.
type EmulatorConfig struct {
	Title  string `yaml:"title" toml:"title"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
}

// StreamDeckConfig selects and configures the Stream Deck producer.
type StreamDeckConfig struct {
	// Serial picks a device when several are attached. Empty means the
	// first one found.
	Serial     string `yaml:"serial,omitempty" toml:"serial,omitempty"`
	Brightness byte   `yaml:"brightness" toml:"brightness"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Input: InputConfig{
			DoubleClickIntervalMS: int(dispatch.DefaultDoubleClickInterval / time.Millisecond),
			DoubleClickDistance:   dispatch.DefaultDoubleClickDistance,
		},
		Emulator: EmulatorConfig{
			Title:  "touchpoint",
			Width:  800,
			Height: 600,
		},
		StreamDeck: StreamDeckConfig{Brightness: 60},
	}
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "touchpoint")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load assembles configuration from the default config file and environment
// variables.
func Load() (*Config, error) {
	return LoadFile(DefaultConfigPath())
}

// LoadFile assembles configuration from path + environment variables.
// Environment variables always take precedence. A missing file is not an
// error; the defaults are used instead.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	// 1. Try to load the config file
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		logger.Debugf("no config file at %s; using defaults", path)
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	// 2. Environment variables override everything
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			logger.Warnf("%s: unknown keys %v", path, undecoded)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvSynchronous); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSynchronous, err)
		}
		cfg.Delivery.Synchronous = b
	}
	return nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q: want one of %v", c.Log.Level, logging.Levels))
	}
	if c.Delivery.FlushTimeoutMS < 0 {
		errs = append(errs, errors.New("delivery.flush_timeout_ms must not be negative"))
	}
	if c.Input.DoubleClickIntervalMS < 0 {
		errs = append(errs, errors.New("input.double_click_interval_ms must not be negative"))
	}
	if c.Input.DoubleClickDistance < 0 {
		errs = append(errs, errors.New("input.double_click_distance must not be negative"))
	}
	if c.StreamDeck.Brightness > 100 {
		errs = append(errs, fmt.Errorf("streamdeck.brightness %d: want 0-100", c.StreamDeck.Brightness))
	}

	seen := make(map[int64]string)
	for i, d := range c.Devices {
		if _, err := d.Device(); err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
			continue
		}
		if prev, dup := seen[d.SystemID]; dup {
			errs = append(errs, fmt.Errorf("devices[%d] %q: system_id %d already used by %q", i, d.Name, d.SystemID, prev))
		}
		seen[d.SystemID] = d.Name
	}
	return errors.Join(errs...)
}

// DeliveryOptions converts the delivery section.
func (c *Config) DeliveryOptions() delivery.Options {
	return delivery.Options{
		Synchronous:  c.Delivery.Synchronous,
		FlushTimeout: time.Duration(c.Delivery.FlushTimeoutMS) * time.Millisecond,
	}
}

// DispatchOptions converts the input section.
func (c *Config) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		DoubleClickInterval: time.Duration(c.Input.DoubleClickIntervalMS) * time.Millisecond,
		DoubleClickDistance: c.Input.DoubleClickDistance,
		TraceGrabs:          c.Input.TraceGrabs,
	}
}

// WriteConfigFile writes the config to the default config file, as TOML
// when the path ends in .toml and YAML otherwise.
func WriteConfigFile(cfg *Config) error {
	path := DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func encode(path string, cfg *Config) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}
