package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// ErrUnknownScope is returned for a scope other than global or local.
var ErrUnknownScope = errors.New("unknown config scope")

// Store owns the load/write I/O for both pin documents. Mutations go through
// Update, which rewrites the whole document for one scope atomically; there
// are no partial field updates against the file.
type Store struct {
	globalPath string
	localPath  string
	logger     zerolog.Logger
}

// NewStore creates a store over the global and local document paths.
func NewStore(globalPath, localPath string, logger zerolog.Logger) *Store {
	return &Store{
		globalPath: globalPath,
		localPath:  localPath,
		logger:     logger.With().Str("component", "config-store").Logger(),
	}
}

// PathFor returns the document path backing a scope.
func (s *Store) PathFor(scope Scope) (string, error) {
	switch scope {
	case ScopeGlobal:
		return s.globalPath, nil
	case ScopeLocal:
		return s.localPath, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
}

// LoadScope reads one scope's document. A missing file yields an empty
// document.
func (s *Store) LoadScope(scope Scope) (Document, error) {
	path, err := s.PathFor(scope)
	if err != nil {
		return nil, err
	}

	doc := make(Document)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return doc, nil
}

// Load reads both scopes into a merged view.
func (s *Store) Load() (*View, error) {
	global, err := s.LoadScope(ScopeGlobal)
	if err != nil {
		return nil, err
	}
	local, err := s.LoadScope(ScopeLocal)
	if err != nil {
		return nil, err
	}
	return &View{global: global, local: local}, nil
}

// Update loads the full document for one scope, applies the pure mutation to
// the in-memory mapping, writes the document back atomically, and returns the
// path written. Writing one scope never touches the other.
func (s *Store) Update(scope Scope, mutate func(Document)) (string, error) {
	path, err := s.PathFor(scope)
	if err != nil {
		return "", err
	}

	doc, err := s.LoadScope(scope)
	if err != nil {
		return "", err
	}

	mutate(doc)

	data, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write config %s: %w", path, err)
	}

	s.logger.Debug().Str("scope", string(scope)).Str("config", path).Msg("Updated config document")
	return path, nil
}
