package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePluginDir(t *testing.T, root, id string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(`{}`), 0644))
}

func TestDiscovery_Discover(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	d := NewDiscovery(logger)

	t.Run("finds plugins across sources", func(t *testing.T) {
		builtin := t.TempDir()
		user := t.TempDir()
		makePluginDir(t, builtin, "node")
		makePluginDir(t, user, "go")

		discovered, err := d.Discover(DiscoveryConfig{BuiltinDir: builtin, UserDir: user})
		require.NoError(t, err)
		require.Len(t, discovered, 2)
		assert.Equal(t, SourceBuiltin, discovered[0].Source)
		assert.Equal(t, SourceUser, discovered[1].Source)
	})

	t.Run("skips directories without plugin.json", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

		discovered, err := d.Discover(DiscoveryConfig{BuiltinDir: root})
		require.NoError(t, err)
		assert.Empty(t, discovered)
	})

	t.Run("missing directory is not an error", func(t *testing.T) {
		discovered, err := d.Discover(DiscoveryConfig{BuiltinDir: filepath.Join(t.TempDir(), "nope")})
		require.NoError(t, err)
		assert.Empty(t, discovered)
	})
}

func TestDiscovery_Find(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	d := NewDiscovery(logger)

	t.Run("later sources shadow earlier ones", func(t *testing.T) {
		builtin := t.TempDir()
		user := t.TempDir()
		makePluginDir(t, builtin, "node")
		makePluginDir(t, user, "node")

		found, err := d.Find(DiscoveryConfig{BuiltinDir: builtin, UserDir: user}, "node")
		require.NoError(t, err)
		assert.Equal(t, SourceUser, found.Source)
	})

	t.Run("unknown tool fails", func(t *testing.T) {
		_, err := d.Find(DiscoveryConfig{BuiltinDir: t.TempDir()}, "ghost")
		assert.ErrorIs(t, err, ErrNotLoaded)
	})
}
