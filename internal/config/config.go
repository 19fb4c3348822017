// Package config loads project-level settings from vlab.yml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are the config file names Load looks for, in order.
var FileNames = []string{"vlab.yml", "vlab.yaml"}

// Duration is a time.Duration written as a Go duration string ("60s").
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds the settings of the lab server and CLI.
type Config struct {
	Model          string   `yaml:"model"`
	Temperature    float64  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	BaseURL        string   `yaml:"base_url,omitempty"`
	RequestTimeout Duration `yaml:"request_timeout"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MinBriefChars  int      `yaml:"min_brief_chars"`
	LogLevel       string   `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:          "gpt-4o-mini",
		Temperature:    0.3,
		MaxTokens:      1000,
		RequestTimeout: Duration(60 * time.Second),
		Addr:           "127.0.0.1:8000",
		AllowedOrigins: []string{"http://localhost:5173"},
		MinBriefChars:  50,
		LogLevel:       "info",
	}
}

// Load attempts to read vlab.yml or vlab.yaml from the given directory.
// Values in the file override the defaults; a missing file yields the
// defaults (not an error).
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// Write stores cfg as vlab.yml in dir. An existing file is kept unless
// overwrite is set; the returned bool reports whether the file was written.
func Write(dir string, cfg *Config, overwrite bool) (string, bool, error) {
	path := filepath.Join(dir, FileNames[0])
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, false, nil
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return path, false, fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return path, false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, true, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0,2]", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request_timeout must not be negative"))
	}
	if c.MinBriefChars < 0 {
		errs = append(errs, fmt.Errorf("min_brief_chars must not be negative, got %d", c.MinBriefChars))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Timeout returns RequestTimeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout)
}
