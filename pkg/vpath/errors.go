package vpath

import "errors"

var (
	// ErrPathNotMapped is returned when a path falls outside every mount
	ErrPathNotMapped = errors.New("path is not covered by any mount")

	// ErrEmptyMount is returned when a mount is registered with an empty name or directory
	ErrEmptyMount = errors.New("mount name and directory must not be empty")

	// ErrDuplicateMount is returned when a mount name is registered twice
	ErrDuplicateMount = errors.New("mount name already registered")
)
