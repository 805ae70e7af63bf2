package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main polyver host configuration. This is the
// machine-level config (where the store lives, where plugins are discovered
// from); per-project tool pins live in .polyver.toml documents instead.
type Config struct {
	// Root directory holding tools, bin, temp, and plugins
	RootDir string `json:"root_dir" mapstructure:"root_dir"`

	// Plugin discovery
	Plugins PluginsConfig `json:"plugins" mapstructure:"plugins"`

	// Download behavior
	HTTP HTTPConfig `json:"http" mapstructure:"http"`

	// Version detection
	Detect DetectConfig `json:"detect" mapstructure:"detect"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// PluginsConfig holds plugin discovery directories
type PluginsConfig struct {
	BuiltinDir string   `json:"builtin_dir" mapstructure:"builtin_dir"`
	UserDir    string   `json:"user_dir" mapstructure:"user_dir"`
	ExtraDirs  []string `json:"extra_dirs" mapstructure:"extra_dirs"`
}

// HTTPConfig holds download settings
type HTTPConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// DetectConfig holds version detection settings
type DetectConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
		},
		Detect: DetectConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(data)
}
