package plugin

import (
	"time"
)

// Source indicates where a plugin was discovered
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceUser    Source = "user"
	SourceExtra   Source = "extra"
)

// Discovered represents a plugin found during discovery
type Discovered struct {
	ID           string
	Path         string
	Source       Source
	MetadataPath string
}

// Loaded represents a fully loaded plugin bound to one tool
type Loaded struct {
	ID       string
	Metadata Metadata
	Instance *Instance

	// kill terminates the plugin subprocess
	kill func()
}

// Close terminates the plugin subprocess, if one is running.
func (l *Loaded) Close() {
	if l.kill != nil {
		l.kill()
	}
}

// Record tracks a loaded plugin in the registry
type Record struct {
	Plugin   *Loaded
	LoadedAt time.Time
}

// DiscoveryConfig configures plugin discovery
type DiscoveryConfig struct {
	BuiltinDir string
	UserDir    string
	ExtraDirs  []string
}
