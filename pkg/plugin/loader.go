package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	goplugin "github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"

	"github.com/polyver/polyver/pkg/vpath"
)

// Loader launches plugin subprocesses and binds them to tools
type Loader struct {
	logger   zerolog.Logger
	metadata *MetadataLoader
	registry *Registry
}

// NewLoader creates a new plugin loader
func NewLoader(logger zerolog.Logger, metadata *MetadataLoader, registry *Registry) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "plugin-loader").Logger(),
		metadata: metadata,
		registry: registry,
	}
}

// Load starts the plugin process for a discovered tool and binds it to the
// tool's mount table. The translator and the resulting instance are owned
// exclusively by the calling tool; they are never shared.
func (l *Loader) Load(discovered Discovered, paths *vpath.Translator, toolDir string) (*Loaded, error) {
	meta, err := l.metadata.Load(discovered.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin metadata: %w", err)
	}

	pluginPath := filepath.Join(discovered.Path, meta.Main)
	if _, err := os.Stat(pluginPath); err != nil {
		return nil, fmt.Errorf("plugin executable not found: %s", pluginPath)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(pluginPath),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	transport, ok := raw.(Transport)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("unexpected plugin type")
	}

	instance, err := NewInstance(meta.ID, transport, paths, toolDir, l.logger)
	if err != nil {
		client.Kill()
		return nil, err
	}

	loaded := &Loaded{
		ID:       meta.ID,
		Metadata: *meta,
		Instance: instance,
		kill:     client.Kill,
	}

	if err := l.registry.Register(loaded); err != nil {
		client.Kill()
		return nil, err
	}

	l.logger.Debug().
		Str("id", meta.ID).
		Str("version", meta.Version).
		Msg("Plugin loaded")

	return loaded, nil
}

// Unload terminates a plugin process and removes it from the registry
func (l *Loader) Unload(toolID string) error {
	record, exists := l.registry.Get(toolID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotLoaded, toolID)
	}

	record.Plugin.Close()

	if err := l.registry.Remove(toolID); err != nil {
		return fmt.Errorf("failed to remove plugin from registry: %w", err)
	}

	l.logger.Debug().Str("id", toolID).Msg("Plugin unloaded")
	return nil
}

// Shutdown unloads every loaded plugin
func (l *Loader) Shutdown() {
	for _, record := range l.registry.GetAll() {
		if err := l.Unload(record.Plugin.ID); err != nil {
			l.logger.Warn().Err(err).Str("id", record.Plugin.ID).Msg("Failed to unload plugin")
		}
	}
}
