package tool

import (
	"path/filepath"

	"github.com/polyver/polyver/pkg/plugin"
)

// Env describes the polyver root layout every tool operates in.
type Env struct {
	// RootDir is the polyver home, e.g. ~/.polyver.
	RootDir string
	// ToolsDir holds one inventory directory per tool id.
	ToolsDir string
	// BinDir holds symlinks to pinned executables.
	BinDir string
	// TempDir holds install staging directories.
	TempDir string
	// Plugins configures plugin discovery.
	Plugins plugin.DiscoveryConfig
}

// DefaultEnv lays out the standard directories under root.
func DefaultEnv(root string) Env {
	return Env{
		RootDir:  root,
		ToolsDir: filepath.Join(root, "tools"),
		BinDir:   filepath.Join(root, "bin"),
		TempDir:  filepath.Join(root, "temp"),
		Plugins: plugin.DiscoveryConfig{
			BuiltinDir: filepath.Join(root, "plugins", "builtin"),
			UserDir:    filepath.Join(root, "plugins", "user"),
		},
	}
}

// InventoryDir is where a tool's versions and manifest live.
func (e Env) InventoryDir(toolID string) string {
	return filepath.Join(e.ToolsDir, toolID)
}
