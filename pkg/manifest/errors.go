package manifest

import "errors"

var (
	// ErrAlreadyInstalled is returned when recording a version that is already present
	ErrAlreadyInstalled = errors.New("version is already installed")

	// ErrNotInstalled is returned when removing a version that is absent
	ErrNotInstalled = errors.New("version is not installed")
)
