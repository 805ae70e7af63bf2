package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMetadata(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMetadataLoader_Load(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	loader := NewMetadataLoader(logger)

	t.Run("loads a valid metadata file", func(t *testing.T) {
		path := writeMetadata(t, `{
			"id": "node",
			"name": "Node.js",
			"version": "1.2.0",
			"main": "node-plugin",
			"exports": ["register_tool", "load_versions", "native_install"]
		}`)

		meta, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "node", meta.ID)
		assert.Equal(t, "Node.js", meta.Name)
		assert.Contains(t, meta.Exports, "native_install")
	})

	t.Run("rejects a missing required field", func(t *testing.T) {
		path := writeMetadata(t, `{"id": "node", "name": "Node.js", "version": "1.2.0"}`)

		_, err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("rejects an invalid tool id", func(t *testing.T) {
		path := writeMetadata(t, `{"id": "Node JS", "name": "n", "version": "1.0.0", "main": "m"}`)

		_, err := loader.Load(path)
		assert.Error(t, err)
	})

	t.Run("rejects a non-semver plugin version", func(t *testing.T) {
		path := writeMetadata(t, `{"id": "node", "name": "n", "version": "1.0", "main": "m"}`)

		_, err := loader.Load(path)
		assert.Error(t, err)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		path := writeMetadata(t, `{not json`)

		_, err := loader.Load(path)
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Loaded{ID: "node"}))

		record, ok := r.Get("node")
		require.True(t, ok)
		assert.Equal(t, "node", record.Plugin.ID)
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Loaded{ID: "node"}))

		err := r.Register(&Loaded{ID: "node"})
		assert.ErrorIs(t, err, ErrAlreadyLoaded)
	})

	t.Run("remove unknown plugin fails", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Remove("ghost"), ErrNotLoaded)
	})
}
