package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRootDir validates the install root
func (v *Validator) ValidateRootDir(dir string) error {
	if dir == "" {
		return nil // Filled from the home directory
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("root_dir must be an absolute path, got %s", dir)
	}
	return nil
}

// ValidatePluginDir validates one plugin discovery directory
func (v *Validator) ValidatePluginDir(dir string) error {
	if dir == "" {
		return nil // Filled from the root directory
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("plugin directory must be an absolute path, got %s", dir)
	}
	return nil
}

// ValidateTimeout validates the download timeout
func (v *Validator) ValidateTimeout(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0, got %d", seconds)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateRootDir(cfg.RootDir); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidatePluginDir(cfg.Plugins.BuiltinDir); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePluginDir(cfg.Plugins.UserDir); err != nil {
		errors = append(errors, err)
	}
	for i, dir := range cfg.Plugins.ExtraDirs {
		if dir == "" {
			errors = append(errors, fmt.Errorf("plugins.extra_dirs[%d] is empty", i))
			continue
		}
		if err := v.ValidatePluginDir(dir); err != nil {
			errors = append(errors, fmt.Errorf("plugins.extra_dirs[%d]: %w", i, err))
		}
	}

	if err := v.ValidateTimeout(cfg.HTTP.TimeoutSeconds); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
