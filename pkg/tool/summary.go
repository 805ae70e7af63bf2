package tool

import (
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/polyver/polyver/pkg/version"
)

// VersionSummary annotates one installed version for listing output.
type VersionSummary struct {
	Version     *semver.Version
	InstalledAt *time.Time
	// UsedAt is nil until the version has been run at least once.
	UsedAt *time.Time
	// Default marks the version the effective pin renders to.
	Default bool
}

// Summaries describes every installed version, ascending by version order.
// The last-used timestamp comes from the per-version marker file, so listing
// never rewrites the manifest.
func (t *Tool) Summaries() ([]VersionSummary, error) {
	pin := t.Pin()

	installed := t.Manifest.Installed()
	summaries := make([]VersionSummary, 0, len(installed))

	for _, v := range installed {
		summary := VersionSummary{Version: v}

		if at, ok := t.Manifest.InstalledAt(v); ok {
			summary.InstalledAt = &at
		}

		usedAt, err := t.Manifest.LoadUsedAt(t.VersionDir(v))
		if err != nil {
			return nil, err
		}
		summary.UsedAt = usedAt

		if pin != nil && pin.Equal(version.FromVersion(v)) {
			summary.Default = true
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}
