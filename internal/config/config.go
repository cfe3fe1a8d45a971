// Package config loads avrflash configuration.
//
// Configuration is merged in order: built-in defaults, then the global
// file (~/.config/avrflash/config.yaml), then the project file
// (<root>/avrflash.yaml). Later values win. CLI flags override
// everything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaudRate     = 115200
	DefaultBuildDir     = "build"
	DefaultPollInterval = 250 * time.Millisecond
	DefaultTimeout      = 120 * time.Second
)

// Config holds all avrflash configuration.
type Config struct {
	Port         string     `yaml:"port,omitempty"`
	Artifact     string     `yaml:"artifact,omitempty"`
	BuildDir     string     `yaml:"build_dir,omitempty"`
	BaudRate     int        `yaml:"baud_rate,omitempty"`
	StateDir     string     `yaml:"state_dir,omitempty"`
	PollInterval Duration   `yaml:"poll_interval,omitempty"`
	Timeout      Duration   `yaml:"timeout,omitempty"`
	Tools        Tools      `yaml:"tools,omitempty"`
	Programmer   Programmer `yaml:"programmer,omitempty"`
}

// Tools names the external tool binaries the orchestrator invokes.
type Tools struct {
	Compiler  string `yaml:"compiler,omitempty"`
	Converter string `yaml:"converter,omitempty"`
	Flasher   string `yaml:"flasher,omitempty"`
}

// Programmer holds device-programmer settings.
type Programmer struct {
	// Part is the MCU part number passed to the flasher.
	Part string `yaml:"part,omitempty"`
	// Order lists strategy names in fallback order. The runner tries
	// them in sequence and stops at the first success.
	Order []string `yaml:"order,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		BuildDir:     DefaultBuildDir,
		BaudRate:     DefaultBaudRate,
		PollInterval: Duration{DefaultPollInterval},
		Timeout:      Duration{DefaultTimeout},
		Tools: Tools{
			Compiler:  "make",
			Converter: "avr-objcopy",
			Flasher:   "avrdude",
		},
		Programmer: Programmer{
			Part:  "atmega328p",
			Order: []string{"arduino", "stk500v1"},
		},
	}
}

// Load reads and merges global and project configs.
func Load(projectRoot string) Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(home, ".config", "avrflash", "config.yaml"))
	}

	if projectRoot != "" {
		mergeFromFile(&cfg, filepath.Join(projectRoot, "avrflash.yaml"))
	}

	return cfg
}

// Save writes the config to the project avrflash.yaml by default, or to
// the global config if global is true.
func Save(cfg Config, projectRoot string, global bool) error {
	var path string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".config", "avrflash")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	} else {
		path = filepath.Join(projectRoot, "avrflash.yaml")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolveStateDir returns the directory holding the status file, job
// lock, logs and history, creating it if needed.
func (c Config) ResolveStateDir() (string, error) {
	dir := c.StateDir
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cache, "avrflash")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.Port != "" {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.Artifact != "" {
		cfg.Artifact = fileCfg.Artifact
	}
	if fileCfg.BuildDir != "" {
		cfg.BuildDir = fileCfg.BuildDir
	}
	if fileCfg.BaudRate != 0 {
		cfg.BaudRate = fileCfg.BaudRate
	}
	if fileCfg.StateDir != "" {
		cfg.StateDir = fileCfg.StateDir
	}
	if fileCfg.PollInterval.Duration != 0 {
		cfg.PollInterval = fileCfg.PollInterval
	}
	if fileCfg.Timeout.Duration != 0 {
		cfg.Timeout = fileCfg.Timeout
	}
	if fileCfg.Tools.Compiler != "" {
		cfg.Tools.Compiler = fileCfg.Tools.Compiler
	}
	if fileCfg.Tools.Converter != "" {
		cfg.Tools.Converter = fileCfg.Tools.Converter
	}
	if fileCfg.Tools.Flasher != "" {
		cfg.Tools.Flasher = fileCfg.Tools.Flasher
	}
	if fileCfg.Programmer.Part != "" {
		cfg.Programmer.Part = fileCfg.Programmer.Part
	}
	if len(fileCfg.Programmer.Order) > 0 {
		cfg.Programmer.Order = fileCfg.Programmer.Order
	}
}
