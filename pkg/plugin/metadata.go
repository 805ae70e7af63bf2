package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// toolIDRegex validates tool ID format (lowercase alphanumeric with hyphens)
	toolIDRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

	// pluginVersionRegex validates the plugin's own semver version
	pluginVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Metadata represents the plugin.json file next to a plugin binary.
type Metadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Main        string   `json:"main"`
	Locator     string   `json:"locator,omitempty"`
	Exports     []string `json:"exports,omitempty"`
}

// MetadataLoader loads and validates plugin metadata files
type MetadataLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewMetadataLoader creates a new metadata loader
func NewMetadataLoader(logger zerolog.Logger) *MetadataLoader {
	return &MetadataLoader{
		logger:       logger.With().Str("component", "plugin-metadata").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(MetadataSchema),
	}
}

// Load reads and validates a plugin.json file
func (m *MetadataLoader) Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse plugin metadata JSON: %w", err)
	}

	if err := m.validateSchema(data); err != nil {
		return nil, fmt.Errorf("plugin metadata schema validation failed: %w", err)
	}

	if err := m.validate(&meta); err != nil {
		return nil, fmt.Errorf("plugin metadata validation failed: %w", err)
	}

	m.logger.Debug().
		Str("id", meta.ID).
		Str("version", meta.Version).
		Msg("Loaded plugin metadata")

	return &meta, nil
}

// validateSchema validates the metadata against the JSON schema
func (m *MetadataLoader) validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(m.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, err := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += err.String()
		}
		return fmt.Errorf("schema validation errors: %s", errMsg)
	}

	return nil
}

// validate performs additional validation beyond the JSON schema
func (m *MetadataLoader) validate(meta *Metadata) error {
	if !toolIDRegex.MatchString(meta.ID) {
		return fmt.Errorf("invalid tool ID format: %s (must be lowercase alphanumeric with hyphens)", meta.ID)
	}

	if !pluginVersionRegex.MatchString(meta.Version) {
		return fmt.Errorf("invalid plugin version format: %s (must be semver: X.Y.Z)", meta.Version)
	}

	if meta.Main == "" {
		return fmt.Errorf("main entry point cannot be empty")
	}

	return nil
}

// ParseMetadata parses metadata from JSON bytes (for testing)
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse plugin metadata JSON: %w", err)
	}
	return &meta, nil
}
