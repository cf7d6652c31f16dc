// CLAUDE:SUMMARY Defines capture config structs and parses YAML configuration files with defaults.
// Package config handles capture configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/devlens/event"
)

// Config is the top-level capture configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Console ConsoleConfig `yaml:"console"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Headless         bool     `yaml:"headless"`
	Stealth          bool     `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	Bin              string   `yaml:"bin"`
}

// PageConfig defines the page to open.
type PageConfig struct {
	URL             string        `yaml:"url"`
	Viewport        Viewport      `yaml:"viewport"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// Viewport is the emulated window size. Zero keeps the browser default.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ConsoleConfig controls console error capture.
type ConsoleConfig struct {
	MaxEntries int      `yaml:"max_entries"`
	Levels     []string `yaml:"levels"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type         string `yaml:"type"` // stdout | webhook
	URL          string `yaml:"url"`
	APIKey       string `yaml:"api_key"`
	AllowPrivate bool   `yaml:"allow_private"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expands ${VAR} references from the
// environment, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Page.NavigateTimeout <= 0 {
		c.Page.NavigateTimeout = 30 * time.Second
	}
	if c.Console.MaxEntries <= 0 {
		c.Console.MaxEntries = 100
	}
	if len(c.Console.Levels) == 0 {
		c.Console.Levels = []string{event.LevelError, event.LevelWarn}
	}
	for i := range c.Console.Levels {
		c.Console.Levels[i] = strings.ToLower(c.Console.Levels[i])
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "" {
			c.Sinks[i].Type = "stdout"
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, l := range c.Console.Levels {
		switch l {
		case event.LevelError, event.LevelWarn, event.LevelInfo:
		default:
			return fmt.Errorf("config: console level %q: want error, warn or info", l)
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	if c.Page.Viewport.Width < 0 || c.Page.Viewport.Height < 0 {
		return fmt.Errorf("config: negative viewport")
	}
	return nil
}
