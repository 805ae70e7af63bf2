package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Resolution holds every source a spec may resolve against: the alias map
// (plugin defaults merged with user config), the installed inventory, and an
// optional plugin-reported remote list. Resolving is a pure query; nothing
// here mutates the manifest.
type Resolution struct {
	Aliases   map[string]*Spec
	Installed []*semver.Version
	Remote    []*semver.Version
}

// Resolve turns an unresolved spec into a concrete version.
//
// Aliases are dereferenced first: a spec whose rendered form matches an alias
// key exactly is substituted with the alias target and resolution restarts.
// Chains are followed to the end; a chain that revisits a key fails with
// ErrAliasCycle. Ranges select the highest installed version that satisfies
// them, falling back to the highest satisfying remote version. The
// latest/canary sentinels pick the highest candidate from whichever source
// has one. Ties always break toward the strictly highest version ordering.
func (r *Resolution) Resolve(spec *Spec) (*semver.Version, error) {
	seen := make(map[string]bool)

	for {
		key := spec.Render()
		target, ok := r.Aliases[key]
		if !ok {
			break
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrAliasCycle, key)
		}
		seen[key] = true
		spec = target
	}

	switch spec.Kind() {
	case KindVersion:
		return spec.Version(), nil

	case KindRange:
		if v := highestMatch(r.Installed, spec.check); v != nil {
			return v, nil
		}
		if v := highestMatch(r.Remote, spec.check); v != nil {
			return v, nil
		}

	case KindLatest:
		if v := highestMatch(r.Installed, isStable); v != nil {
			return v, nil
		}
		if v := highestMatch(r.Remote, isStable); v != nil {
			return v, nil
		}

	case KindCanary:
		if v := highestMatch(r.Installed, isPrerelease); v != nil {
			return v, nil
		}
		if v := highestMatch(r.Remote, isPrerelease); v != nil {
			return v, nil
		}

	case KindAlias:
		return nil, fmt.Errorf("%w: unknown alias %s", ErrVersionNotFound, spec.Render())
	}

	return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, spec.Render())
}

func isStable(v *semver.Version) bool {
	return v.Prerelease() == ""
}

func isPrerelease(v *semver.Version) bool {
	return v.Prerelease() != ""
}

// highestMatch returns the strictly highest candidate accepted by match,
// or nil when none qualifies.
func highestMatch(candidates []*semver.Version, match func(*semver.Version) bool) *semver.Version {
	var best *semver.Version
	for _, v := range candidates {
		if v == nil || !match(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// Sorted returns versions in ascending order without mutating the input.
func Sorted(versions []*semver.Version) []*semver.Version {
	out := make([]*semver.Version, len(versions))
	copy(out, versions)
	sort.Sort(semver.Collection(out))
	return out
}
