// Package common defines shared sentinel errors used across homekeeper
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Remote service unreachable, signed out, or restricted. Not retried.
	ErrUnavailable = errors.New("remote store unavailable")

	// Transient remote conditions; the orchestrator retries these once.
	ErrQuotaExceeded  = errors.New("remote quota exceeded")
	ErrAccountChanged = errors.New("remote account changed")
	ErrRecordConflict = errors.New("record conflict")

	// No completed backup exists to restore. Expected condition, not a failure.
	ErrBackupNotFound = errors.New("no backup found")

	// A fetched record is missing a required field.
	ErrMalformedRecord = errors.New("malformed record")

	// A blob handle could not be resolved back to bytes.
	ErrBlobUnavailable = errors.New("blob unavailable")

	// A collection-typed merge was attempted against non-collection values.
	ErrIncompatibleTypes = errors.New("incompatible field types")

	// Subsystem misconfigured; surfaced before any I/O is attempted.
	ErrNotConfigured = errors.New("sync engine not configured")

	// A second backup/restore was requested while one is already running.
	ErrOperationInProgress = errors.New("operation already in progress")

	// Too many per-entity failures in one run (above the abort threshold).
	ErrTooManyFailures = errors.New("too many failed entities")
)
