// Package version models version requests and resolves them against an
// inventory of concrete versions.
//
// A request is either unresolved (an alias, a semantic range, or the
// "latest"/"canary" sentinel) or resolved (a concrete semver.Version).
// The two never coerce implicitly: turning an unresolved Spec into a
// concrete version always goes through a Resolution, while FromVersion
// converts a concrete version back to a Spec losslessly.
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind discriminates the unresolved spec variants.
type Kind string

const (
	KindVersion Kind = "version" // full major.minor.patch, no resolution needed
	KindRange   Kind = "range"   // partial version or semantic range
	KindAlias   Kind = "alias"   // named shorthand, dereferenced via an alias map
	KindLatest  Kind = "latest"  // highest available version
	KindCanary  Kind = "canary"  // highest available pre-release build
)

// aliasRegex matches alias names: identifiers that cannot be read as a
// version or range, e.g. "lts", "stable", "lts-hydrogen".
var aliasRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

// Spec is an unresolved version request.
type Spec struct {
	kind    Kind
	raw     string
	version *semver.Version
	rang    *semver.Constraints
}

// Parse reads a spec from text, discriminating the variant by shape.
func Parse(text string) (*Spec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidSpec)
	}

	switch strings.ToLower(text) {
	case "latest", "*":
		return &Spec{kind: KindLatest, raw: "latest"}, nil
	case "canary":
		return &Spec{kind: KindCanary, raw: "canary"}, nil
	}

	// "v18.0.0" and "18.0.0" are the same request.
	if len(text) > 1 && text[0] == 'v' && text[1] >= '0' && text[1] <= '9' {
		text = text[1:]
	}

	// A fully qualified version is already concrete in shape.
	if v, err := semver.StrictNewVersion(text); err == nil {
		return &Spec{kind: KindVersion, raw: v.String(), version: v}, nil
	}

	// Partial versions ("18", "1.2") and explicit ranges ("^18.2", ">=1 <2").
	if c, err := semver.NewConstraint(text); err == nil && !aliasRegex.MatchString(text) {
		return &Spec{kind: KindRange, raw: text, rang: c}, nil
	}

	if aliasRegex.MatchString(text) {
		return &Spec{kind: KindAlias, raw: text}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidSpec, text)
}

// FromVersion converts a concrete version into a Spec. This direction is
// always lossless: the spec renders back to the exact version text.
func FromVersion(v *semver.Version) *Spec {
	return &Spec{kind: KindVersion, raw: v.String(), version: v}
}

// Kind returns the spec variant.
func (s *Spec) Kind() Kind {
	return s.kind
}

// Render returns the canonical text form of the spec.
func (s *Spec) Render() string {
	return s.raw
}

// String implements fmt.Stringer.
func (s *Spec) String() string {
	return s.raw
}

// Version returns the concrete version for a KindVersion spec, nil otherwise.
func (s *Spec) Version() *semver.Version {
	return s.version
}

// Equal reports whether two specs render to the same canonical text.
func (s *Spec) Equal(other *Spec) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.raw == other.raw
}

// check reports whether a concrete version satisfies the spec. Only
// meaningful for KindVersion and KindRange.
func (s *Spec) check(v *semver.Version) bool {
	switch s.kind {
	case KindVersion:
		return s.version.Equal(v)
	case KindRange:
		return s.rang.Check(v)
	default:
		return false
	}
}

// MarshalText renders the spec for persisted documents (pins and aliases).
func (s Spec) MarshalText() ([]byte, error) {
	return []byte(s.raw), nil
}

// UnmarshalText parses the spec from a persisted document.
func (s *Spec) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
