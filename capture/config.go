package capture

import (
	"github.com/hazyhaar/devlens/capture/internal/config"
)

// Config is the top-level capture configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines the page to open.
type PageConfig = config.PageConfig

// ConsoleConfig controls console error capture.
type ConsoleConfig = config.ConsoleConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
