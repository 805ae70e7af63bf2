// Package detect discovers the version a directory tree wants for a tool by
// scanning the version files its plugin declares, walking from a starting
// directory up to the filesystem root. The nearest file wins.
package detect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polyver/polyver/pkg/plugin"
	"github.com/polyver/polyver/pkg/version"
)

// Scanner is the slice of the plugin contract detection needs. Implemented by
// *plugin.Instance.
type Scanner interface {
	Has(name string) bool
	DetectVersionFiles() (*plugin.DetectVersionOutput, error)
	ParseVersionFile(input plugin.ParseVersionFileInput) (*plugin.ParseVersionFileOutput, error)
}

// Detection is one successful hit: the spec and the file it came from.
type Detection struct {
	Spec *version.Spec
	File string
}

// Detector scans directories for a single tool's version files.
type Detector struct {
	toolID  string
	scanner Scanner
	logger  zerolog.Logger
}

// NewDetector builds a detector for one tool.
func NewDetector(toolID string, scanner Scanner, logger zerolog.Logger) *Detector {
	return &Detector{
		toolID:  toolID,
		scanner: scanner,
		logger:  logger.With().Str("component", "detect").Str("tool", toolID).Logger(),
	}
}

// Candidates returns the version file names the plugin recognizes, with its
// ignore patterns already applied. Empty when the plugin does not support
// detection.
func (d *Detector) Candidates() ([]string, error) {
	if !d.scanner.Has(plugin.FuncDetectVersionFiles) {
		return nil, nil
	}

	out, err := d.scanner.DetectVersionFiles()
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(out.Files))
	for _, file := range out.Files {
		if ignored(file, out.Ignore) {
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

// DetectFrom walks from dir up to the filesystem root and returns the first
// detection. Fails with ErrNotDetected when no directory on the way up holds
// a version file with a parseable spec.
func (d *Detector) DetectFrom(dir string) (*Detection, error) {
	files, err := d.Candidates()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s declares no version files", ErrNotDetected, d.toolID)
	}

	current, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve starting directory: %w", err)
	}

	for {
		found, err := d.detectIn(current, files)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, fmt.Errorf("%w: %s (searched from %s)", ErrNotDetected, d.toolID, dir)
		}
		current = parent
	}
}

// detectIn checks one directory. Returns nil, nil when nothing matched there.
func (d *Detector) detectIn(dir string, files []string) (*Detection, error) {
	for _, name := range files {
		path := filepath.Join(dir, name)

		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read version file %s: %w", path, err)
		}

		spec, err := d.extract(name, string(content))
		if err != nil {
			return nil, err
		}
		if spec == nil {
			continue
		}

		d.logger.Debug().Str("file", path).Str("version", spec.Render()).Msg("Detected a version")
		return &Detection{Spec: spec, File: path}, nil
	}

	return nil, nil
}

// extract turns file content into a spec, delegating to the plugin's parser
// when it exports one. A plugin may report "no version here" by returning an
// empty string, e.g. a package.json without an engines field.
func (d *Detector) extract(name, content string) (*version.Spec, error) {
	text := strings.TrimSpace(content)

	if d.scanner.Has(plugin.FuncParseVersionFile) {
		out, err := d.scanner.ParseVersionFile(plugin.ParseVersionFileInput{
			File:    name,
			Content: content,
		})
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(out.Version)
	}

	if text == "" {
		return nil, nil
	}

	spec, err := version.Parse(text)
	if err != nil {
		d.logger.Warn().Str("file", name).Str("text", text).Msg("Skipping unparseable version file")
		return nil, nil
	}
	return spec, nil
}

func ignored(file string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, file); err == nil && ok {
			return true
		}
	}
	return false
}
