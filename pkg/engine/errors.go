package engine

import "errors"

var (
	// ErrConfigInvalid marks an invalid or missing configuration option,
	// reported at construction and fatal to it.
	ErrConfigInvalid = errors.New("engine: invalid configuration")

	// ErrTargetNotFound is returned by read operations against a target the
	// local index has never seen (not the transient sync-lag case, which is
	// logged and swallowed instead).
	ErrTargetNotFound = errors.New("engine: target not found")
)
