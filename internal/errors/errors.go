// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Caller contract violations - never retried
	ErrInvalidPartition = errors.New("invalid partition")
	ErrMixedBatch       = errors.New("mixed ticker/exchange in batch")
	ErrBadSchema        = errors.New("record schema violation")

	// Upload errors
	ErrTransientUpload = errors.New("transient upload failure")
	ErrPermanentUpload = errors.New("permanent upload failure")

	// Ledger errors
	ErrLedgerUnavailable = errors.New("progress ledger unavailable")
	ErrEntryNotFound     = errors.New("ledger entry not found")

	// Storage errors
	ErrFileNotFound = errors.New("monthly file not found")
	ErrWriterClosed = errors.New("writer is closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsValidation returns true if err indicates a caller contract violation.
// These errors are raised synchronously and must not be retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPartition) ||
		errors.Is(err, ErrMixedBatch) ||
		errors.Is(err, ErrBadSchema)
}

// IsRetriable returns true if the error is potentially retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTransientUpload)
}

// IsPermanent returns true if the error must short-circuit retries.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentUpload)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
