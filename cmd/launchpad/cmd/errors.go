package cmd

import "errors"

var (
	// ErrManifestIncomplete is returned when a manifest names implementations
	// that have no registered factory.
	ErrManifestIncomplete = errors.New("manifest declares unregistered implementations")
)
