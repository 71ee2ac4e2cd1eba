package main

import (
	"errors"
	"os"

	topdf "github.com/alnah/go-topdf"
	"github.com/alnah/go-topdf/internal/config"
)

// Exit codes for topdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess    = 0 // Every file converted
	ExitGeneral    = 1 // General/unexpected error
	ExitUsage      = 2 // Invalid flags, config, or validation
	ExitIO         = 3 // File not found, permission denied, nothing to convert
	ExitConversion = 5 // At least one file failed to convert
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Per-file failures (exit 5)
	if errors.Is(err, ErrConversionFailed) {
		return ExitConversion
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, topdf.ErrInvalidPageSize) ||
		errors.Is(err, topdf.ErrInvalidOrientation) ||
		errors.Is(err, topdf.ErrInvalidMargin) ||
		errors.Is(err, topdf.ErrInvalidCollisionPolicy) {
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, topdf.ErrIO) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrNoFiles) {
		return ExitIO
	}

	return ExitGeneral
}
