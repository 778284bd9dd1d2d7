// Package ledger defines the durable progress record for monthly
// collection and upload state.
//
// The ledger is the single source of truth for per-partition upload status.
// Components never edit state fields behind its back: writes go through
// RecordWrite and UpsertState only. Each operation is a single logical unit;
// no caller needs a multi-entry transaction.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/monthly"
)

// Status represents the upload state of one monthly file.
type Status int

const (
	// StatusNotUploaded marks a file that exists locally but was never
	// successfully mirrored, or whose content changed since the last mirror.
	StatusNotUploaded Status = iota

	// StatusUploaded marks a file whose current content is mirrored.
	StatusUploaded

	// StatusFailed marks a file whose last upload run exhausted its attempts.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNotUploaded:
		return "not_uploaded"
	case StatusUploaded:
		return "uploaded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseStatus parses a status string.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "not_uploaded":
		return StatusNotUploaded, nil
	case "uploaded":
		return StatusUploaded, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusNotUploaded, fmt.Errorf("unknown upload status %q", s)
	}
}

// Fingerprint is a lightweight content-change signal: file size plus record
// count. It is compared against the fingerprint recorded at the last
// successful upload to decide whether a month is due for re-upload.
type Fingerprint struct {
	SizeBytes   int64
	RecordCount int
}

// Matches reports whether two fingerprints describe the same content signal.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.SizeBytes == other.SizeBytes && f.RecordCount == other.RecordCount
}

// UploadState is the per-partition upload record.
type UploadState struct {
	Status Status

	// Uploaded is the fingerprint recorded at the last successful upload.
	Uploaded Fingerprint

	// Attempts counts consecutive failed upload runs. Cleared on success.
	Attempts int

	// LastError holds the last upload failure, empty after success.
	LastError string

	// UpdatedAt is when this state last changed.
	UpdatedAt time.Time
}

// Entry is one ledger row: collection progress plus upload state for a
// single monthly partition.
type Entry struct {
	Key market.MonthKey

	// LastCollectedMs is the newest record timestamp persisted locally.
	LastCollectedMs int64

	// Current is the local file's fingerprint as of the last write.
	Current Fingerprint

	// LocalPath and RemoteKey are the canonical locations.
	LocalPath string
	RemoteKey string

	Upload UploadState
}

// Ledger is the durable progress store shared by the writer and the upload
// driver. Implementations provide their own concurrency control; a simple
// per-row read/modify/write suffices for every operation here.
type Ledger interface {
	// PendingOrFailed returns the partitions whose upload status is
	// not_uploaded or failed, or whose current fingerprint differs from the
	// one recorded at the last successful upload. With activeOnly set, only
	// partitions of currently monitored assets are returned.
	PendingOrFailed(ctx context.Context, activeOnly bool) ([]market.MonthKey, error)

	// State returns the upload state for one partition.
	// Returns errors.ErrEntryNotFound for unknown partitions.
	State(ctx context.Context, key market.MonthKey) (UploadState, error)

	// UpsertState replaces the upload state for one partition.
	UpsertState(ctx context.Context, key market.MonthKey, state UploadState) error

	// RecordWrite records the outcome of a monthly write: collection
	// progress, current fingerprint, and paths. A changed file moves an
	// uploaded partition back to not_uploaded.
	RecordWrite(ctx context.Context, key market.MonthKey, result monthly.WriteResult, remoteKey string) error

	// Entry returns the full ledger row for one partition.
	// Returns errors.ErrEntryNotFound for unknown partitions.
	Entry(ctx context.Context, key market.MonthKey) (Entry, error)
}
