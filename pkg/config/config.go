// Package config persists pinned versions and alias overrides per tool,
// layered across a global document (in the polyver root) and a local one
// (in the working directory). Documents are TOML; only the logical schema
// matters here, the syntax is the library's concern.
package config

import (
	"github.com/polyver/polyver/pkg/version"
)

// DocumentName is the pin document file name at either scope.
const DocumentName = ".polyver.toml"

// Scope selects which document an operation targets.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// ToolEntry is the per-tool slice of a pin document.
type ToolEntry struct {
	// Version is the pinned default version spec, possibly unresolved.
	Version *version.Spec `toml:"version,omitempty"`
	// Aliases are user alias overrides, merged over plugin defaults.
	Aliases map[string]*version.Spec `toml:"aliases,omitempty"`
}

// Document maps tool ids to their pin/alias data for one scope.
type Document map[string]*ToolEntry

// Entry returns the tool's entry, creating it when absent. Useful inside
// Update mutations.
func (d Document) Entry(toolID string) *ToolEntry {
	entry, ok := d[toolID]
	if !ok {
		entry = &ToolEntry{}
		d[toolID] = entry
	}
	return entry
}

// View is the merged, read-only result of loading both scopes.
// Local entries shadow global ones; a missing local entry falls through.
type View struct {
	global Document
	local  Document
}

// Pin returns the effective pinned spec for a tool, or nil when unpinned
// at both scopes.
func (v *View) Pin(toolID string) *version.Spec {
	if entry, ok := v.local[toolID]; ok && entry.Version != nil {
		return entry.Version
	}
	if entry, ok := v.global[toolID]; ok && entry.Version != nil {
		return entry.Version
	}
	return nil
}

// Aliases returns the effective alias overrides for a tool: global entries
// first, then local entries layered on top.
func (v *View) Aliases(toolID string) map[string]*version.Spec {
	merged := make(map[string]*version.Spec)
	if entry, ok := v.global[toolID]; ok {
		for name, spec := range entry.Aliases {
			merged[name] = spec
		}
	}
	if entry, ok := v.local[toolID]; ok {
		for name, spec := range entry.Aliases {
			merged[name] = spec
		}
	}
	return merged
}
