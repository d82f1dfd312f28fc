package model

import "errors"

// Error categories surfaced by the core. Callers match them with errors.Is;
// the wrapped message carries the symbol, operation and root cause.
var (
	// ErrValidation marks malformed input (symbol, limit, period, bar fields).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a well-formed request with no data after fallback.
	ErrNotFound = errors.New("not found")

	// ErrDependency marks an unreachable or timed-out store or downstream.
	ErrDependency = errors.New("dependency error")

	// ErrDuplicateBar is returned when (symbol, timestamp) already exists.
	ErrDuplicateBar = errors.New("duplicate bar")
)
