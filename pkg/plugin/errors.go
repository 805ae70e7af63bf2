package plugin

import "errors"

var (
	// ErrFunctionNotFound is returned when the loaded plugin does not export
	// the requested function. Indicates host/plugin contract skew.
	ErrFunctionNotFound = errors.New("function not exported by plugin")

	// ErrEncoding is returned when the input value cannot be serialized.
	// Indicates a contract-version mismatch between host and plugin.
	ErrEncoding = errors.New("failed to encode plugin input")

	// ErrDecoding is returned when the plugin's output cannot be deserialized
	ErrDecoding = errors.New("failed to decode plugin output")

	// ErrExecutionFailed is returned when the sandboxed function traps or
	// reports a failure. The wrapped message carries the plugin's diagnostic.
	ErrExecutionFailed = errors.New("plugin execution failed")

	// ErrNotLoaded is returned when an operation targets a plugin id that
	// is not in the registry
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrAlreadyLoaded is returned when a plugin id is registered twice
	ErrAlreadyLoaded = errors.New("plugin is already loaded")
)
