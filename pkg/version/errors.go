package version

import "errors"

var (
	// ErrInvalidSpec is returned when a spec cannot be parsed from text
	ErrInvalidSpec = errors.New("invalid version spec")

	// ErrVersionNotFound is returned when no candidate satisfies a spec
	ErrVersionNotFound = errors.New("no version satisfies the requested spec")

	// ErrAliasCycle is returned when alias substitution loops back on itself
	ErrAliasCycle = errors.New("alias chain forms a cycle")
)
