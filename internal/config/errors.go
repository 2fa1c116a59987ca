package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Package-level sentinel errors let callers use errors.Is while keeping
// human-readable messages.
var (
	// ErrInvalidMode is returned when the output mode is not one of
	// app, release, or both.
	ErrInvalidMode = errors.New("invalid mode: must be app, release, or both")

	// ErrOwnerRepoPair is returned when only one of --owner and --repo is
	// given. Overriding the repository set requires exactly one full target.
	ErrOwnerRepoPair = errors.New("owner and repo must be given together")

	// ErrInvalidTimeout is returned when the catalog timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid catalog timeout: must be positive")

	// ErrEmptyOutputDir is returned when the output directory is empty.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")
)
