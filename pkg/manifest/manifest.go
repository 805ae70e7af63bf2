// Package manifest persists the per-tool record of installed versions and
// their metadata. The document is rewritten whole on every mutation through
// a unique temp file and rename, so a concurrent reader never observes a
// partial write. "Last used" timestamps live in per-version marker files
// next to the installed version, not in the document itself, so running a
// tool does not rewrite the manifest.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polyver/polyver/pkg/version"
)

// FileName is the manifest document name inside a tool's inventory directory.
const FileName = "manifest.json"

// usedAtFile is the last-used marker inside an installed version directory.
const usedAtFile = ".last-used"

// VersionMeta holds per-version install metadata.
type VersionMeta struct {
	// InstalledAt is milliseconds since the Unix epoch.
	InstalledAt int64 `json:"installed_at"`
}

// document is the on-disk shape of the manifest.
type document struct {
	InstalledVersions []string               `json:"installed_versions"`
	Versions          map[string]VersionMeta `json:"versions"`
}

// Manifest is the loaded, mutable manifest for one tool.
type Manifest struct {
	path   string
	logger zerolog.Logger

	installed map[string]*semver.Version
	meta      map[string]VersionMeta
}

// Load reads the manifest document at path. A missing file yields an empty
// manifest; the document is only created once something is recorded.
func Load(path string, logger zerolog.Logger) (*Manifest, error) {
	m := &Manifest{
		path:      path,
		logger:    logger.With().Str("component", "manifest").Logger(),
		installed: make(map[string]*semver.Version),
		meta:      make(map[string]VersionMeta),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	for _, text := range doc.InstalledVersions {
		v, err := semver.NewVersion(text)
		if err != nil {
			return nil, fmt.Errorf("invalid version %s in manifest %s: %w", text, path, err)
		}
		m.installed[v.String()] = v
	}
	for text, meta := range doc.Versions {
		m.meta[text] = meta
	}

	return m, nil
}

// Path returns the manifest document path.
func (m *Manifest) Path() string {
	return m.path
}

// HasVersion reports whether a concrete version is recorded as installed.
func (m *Manifest) HasVersion(v *semver.Version) bool {
	_, ok := m.installed[v.String()]
	return ok
}

// Installed returns the installed versions in ascending version order,
// regardless of on-disk storage order.
func (m *Manifest) Installed() []*semver.Version {
	out := make([]*semver.Version, 0, len(m.installed))
	for _, v := range m.installed {
		out = append(out, v)
	}
	return version.Sorted(out)
}

// InstalledAt returns the install timestamp for a version, if recorded.
func (m *Manifest) InstalledAt(v *semver.Version) (time.Time, bool) {
	meta, ok := m.meta[v.String()]
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(meta.InstalledAt), true
}

// RecordInstalled adds a version to the installed set and persists the
// document. A version that is already present fails with ErrAlreadyInstalled
// and leaves the manifest unchanged; idempotent callers must check
// HasVersion first.
func (m *Manifest) RecordInstalled(v *semver.Version, installedAt time.Time) error {
	key := v.String()
	if _, ok := m.installed[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, key)
	}

	m.installed[key] = v
	m.meta[key] = VersionMeta{InstalledAt: installedAt.UnixMilli()}

	if err := m.save(); err != nil {
		delete(m.installed, key)
		delete(m.meta, key)
		return err
	}

	m.logger.Debug().Str("version", key).Msg("Recorded installed version")
	return nil
}

// RemoveInstalled removes a version from the installed set and persists the
// document. An absent version fails with ErrNotInstalled.
func (m *Manifest) RemoveInstalled(v *semver.Version) error {
	key := v.String()
	if _, ok := m.installed[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, key)
	}

	prev := m.installed[key]
	prevMeta, hadMeta := m.meta[key]
	delete(m.installed, key)
	delete(m.meta, key)

	if err := m.save(); err != nil {
		m.installed[key] = prev
		if hadMeta {
			m.meta[key] = prevMeta
		}
		return err
	}

	m.logger.Debug().Str("version", key).Msg("Removed installed version")
	return nil
}

// LoadUsedAt reads the last-used marker inside a version directory. A
// missing marker means the version has never been run and yields nil, not
// an error and not a zero time.
func (m *Manifest) LoadUsedAt(versionDir string) (*time.Time, error) {
	data, err := os.ReadFile(filepath.Join(versionDir, usedAtFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last-used marker in %s: %w", versionDir, err)
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid last-used marker in %s: %w", versionDir, err)
	}

	at := time.UnixMilli(millis)
	return &at, nil
}

// TrackUsedAt writes the last-used marker inside a version directory.
func (m *Manifest) TrackUsedAt(versionDir string, usedAt time.Time) error {
	marker := filepath.Join(versionDir, usedAtFile)
	data := []byte(strconv.FormatInt(usedAt.UnixMilli(), 10))

	if err := writeFileAtomic(marker, data, 0644); err != nil {
		return fmt.Errorf("failed to write last-used marker in %s: %w", versionDir, err)
	}
	return nil
}

// save persists the full document atomically.
func (m *Manifest) save() error {
	doc := document{
		InstalledVersions: make([]string, 0, len(m.installed)),
		Versions:          make(map[string]VersionMeta, len(m.meta)),
	}
	for _, v := range m.Installed() {
		doc.InstalledVersions = append(doc.InstalledVersions, v.String())
	}
	for key, meta := range m.meta {
		doc.Versions[key] = meta
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	if err := writeFileAtomic(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", m.path, err)
	}
	return nil
}

// writeFileAtomic writes through a uniquely named temp file and renames it
// into place. The unique name keeps concurrent writers from clobbering each
// other's temp files.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
