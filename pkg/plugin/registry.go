package plugin

import (
	"fmt"
	"sync"
	"time"
)

// Registry tracks the plugins loaded in this process so they can be torn
// down at exit. Instances themselves stay owned by their tools.
type Registry struct {
	plugins map[string]*Record
	mu      sync.RWMutex
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Record),
	}
}

// Register registers a loaded plugin
func (r *Registry) Register(plugin *Loaded) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[plugin.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, plugin.ID)
	}

	r.plugins[plugin.ID] = &Record{
		Plugin:   plugin,
		LoadedAt: time.Now(),
	}

	return nil
}

// Get retrieves a plugin record by tool id
func (r *Registry) Get(toolID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, exists := r.plugins[toolID]
	return record, exists
}

// GetAll returns all registered plugin records
func (r *Registry) GetAll() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.plugins))
	for _, record := range r.plugins {
		records = append(records, record)
	}

	return records
}

// Remove removes a plugin from the registry
func (r *Registry) Remove(toolID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[toolID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotLoaded, toolID)
	}

	delete(r.plugins, toolID)
	return nil
}
