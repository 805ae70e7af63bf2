package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Discovery scans directories to find tool plugins
type Discovery struct {
	logger zerolog.Logger
}

// NewDiscovery creates a new plugin discovery instance
func NewDiscovery(logger zerolog.Logger) *Discovery {
	return &Discovery{
		logger: logger.With().Str("component", "plugin-discovery").Logger(),
	}
}

// Discover scans configured directories for plugins.
// Returns all discovered plugins with their source type.
func (d *Discovery) Discover(config DiscoveryConfig) ([]Discovered, error) {
	var discovered []Discovered

	if config.BuiltinDir != "" {
		plugins, err := d.scanDirectory(config.BuiltinDir, SourceBuiltin)
		if err != nil {
			d.logger.Warn().Err(err).Str("dir", config.BuiltinDir).Msg("Failed to scan builtin directory")
		} else {
			discovered = append(discovered, plugins...)
		}
	}

	if config.UserDir != "" {
		plugins, err := d.scanDirectory(config.UserDir, SourceUser)
		if err != nil {
			d.logger.Warn().Err(err).Str("dir", config.UserDir).Msg("Failed to scan user plugin directory")
		} else {
			discovered = append(discovered, plugins...)
		}
	}

	for _, extraDir := range config.ExtraDirs {
		if extraDir == "" {
			continue
		}
		plugins, err := d.scanDirectory(extraDir, SourceExtra)
		if err != nil {
			d.logger.Warn().Err(err).Str("dir", extraDir).Msg("Failed to scan extra directory")
		} else {
			discovered = append(discovered, plugins...)
		}
	}

	d.logger.Debug().Int("count", len(discovered)).Msg("Plugin discovery completed")
	return discovered, nil
}

// Find locates a single plugin by tool id across the configured directories.
func (d *Discovery) Find(config DiscoveryConfig, toolID string) (*Discovered, error) {
	discovered, err := d.Discover(config)
	if err != nil {
		return nil, err
	}

	// Later sources shadow earlier ones, so take the last match.
	var found *Discovered
	for idx := range discovered {
		if discovered[idx].ID == toolID {
			found = &discovered[idx]
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%w: no plugin found for tool %s", ErrNotLoaded, toolID)
	}
	return found, nil
}

// scanDirectory scans a single directory for plugins
func (d *Discovery) scanDirectory(dir string, source Source) ([]Discovered, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug().Str("dir", dir).Msg("Directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var discovered []Discovered

	// Each subdirectory holding a plugin.json is one tool plugin.
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginDir := filepath.Join(dir, entry.Name())
		metadataPath := filepath.Join(pluginDir, "plugin.json")

		if _, err := os.Stat(metadataPath); err != nil {
			if os.IsNotExist(err) {
				d.logger.Debug().
					Str("dir", pluginDir).
					Msg("Directory does not contain plugin.json, skipping")
				continue
			}
			d.logger.Warn().
				Err(err).
				Str("dir", pluginDir).
				Msg("Failed to check for plugin.json")
			continue
		}

		discovered = append(discovered, Discovered{
			ID:           entry.Name(),
			Path:         pluginDir,
			Source:       source,
			MetadataPath: metadataPath,
		})
	}

	return discovered, nil
}
