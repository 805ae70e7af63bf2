package detect

import "errors"

var (
	// ErrNotDetected is returned when no version file in or above the
	// starting directory yields a usable spec.
	ErrNotDetected = errors.New("no version detected")

	// ErrWatcherClosed is returned by operations on a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
)
