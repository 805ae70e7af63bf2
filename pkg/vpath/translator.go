// Package vpath translates between real host paths and the virtual paths a
// sandboxed plugin is allowed to see. Every path-bearing value must pass
// through a Translator before it crosses the plugin boundary.
package vpath

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// VirtualPath is a sandbox-visible path rooted at a mount name,
// e.g. "/workspace/tools/node/20.1.0". It always uses forward slashes.
type VirtualPath string

// String returns the virtual path as plain text.
func (v VirtualPath) String() string {
	return string(v)
}

// IsEmpty reports whether the virtual path has no components.
func (v VirtualPath) IsEmpty() bool {
	return strings.Trim(string(v), "/") == ""
}

// Mount exposes one real directory under a stable virtual name.
type Mount struct {
	// Name is the virtual root, e.g. "/workspace". Always absolute.
	Name string
	// Dir is the real host directory backing the mount.
	Dir string
}

// Translator holds the fixed mount table for one plugin instance. The table
// is established at plugin load time and never mutated afterwards, which
// keeps both translation directions pure and deterministic.
type Translator struct {
	mounts []Mount
}

// NewTranslator builds a translator from a fixed set of mounts.
// Mount names and directories are normalized to absolute clean paths.
func NewTranslator(mounts ...Mount) (*Translator, error) {
	t := &Translator{mounts: make([]Mount, 0, len(mounts))}
	seen := make(map[string]bool, len(mounts))

	for _, m := range mounts {
		if m.Name == "" || m.Dir == "" {
			return nil, ErrEmptyMount
		}

		name := path.Clean("/" + strings.Trim(filepath.ToSlash(m.Name), "/"))
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMount, name)
		}
		seen[name] = true

		dir, err := filepath.Abs(m.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize mount dir %s: %w", m.Dir, err)
		}

		t.mounts = append(t.mounts, Mount{Name: name, Dir: filepath.Clean(dir)})
	}

	// Longest real prefix first so nested mounts win over their parents.
	sort.Slice(t.mounts, func(i, j int) bool {
		return len(t.mounts[i].Dir) > len(t.mounts[j].Dir)
	})

	return t, nil
}

// Mounts returns a copy of the mount table.
func (t *Translator) Mounts() []Mount {
	out := make([]Mount, len(t.mounts))
	copy(out, t.mounts)
	return out
}

// ToVirtual translates a real host path into its virtual form. A path outside
// every mount fails with ErrPathNotMapped so a real path can never leak into
// the sandbox.
func (t *Translator) ToVirtual(real string) (VirtualPath, error) {
	abs, err := filepath.Abs(real)
	if err != nil {
		return "", fmt.Errorf("failed to normalize path %s: %w", real, err)
	}
	abs = filepath.Clean(abs)

	for _, m := range t.mounts {
		rel, ok := childPath(m.Dir, abs)
		if !ok {
			continue
		}
		if rel == "" {
			return VirtualPath(m.Name), nil
		}
		return VirtualPath(path.Join(m.Name, rel)), nil
	}

	return "", fmt.Errorf("%w: %s", ErrPathNotMapped, real)
}

// FromVirtual translates a virtual path back into the real host path. A
// virtual path under an unknown mount fails with ErrPathNotMapped.
func (t *Translator) FromVirtual(virtual VirtualPath) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(string(virtual), "/"))

	for _, m := range t.mounts {
		if clean == m.Name {
			return m.Dir, nil
		}
		if strings.HasPrefix(clean, m.Name+"/") {
			rel := strings.TrimPrefix(clean, m.Name+"/")
			return filepath.Join(m.Dir, filepath.FromSlash(rel)), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrPathNotMapped, virtual)
}

// childPath returns rel such that join(base, rel) == target, using forward
// slashes, when target is base itself or nested under it.
func childPath(base, target string) (string, bool) {
	if target == base {
		return "", true
	}

	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}

	return filepath.ToSlash(strings.TrimPrefix(target, prefix)), true
}
