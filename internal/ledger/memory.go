package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/monthly"
)

// Memory is an in-memory Ledger. It backs tests and single-run tooling
// where durable progress is not needed.
type Memory struct {
	mu      sync.RWMutex
	entries map[market.MonthKey]*Entry
	active  map[[2]string]bool // (ticker, exchange) -> monitored
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[market.MonthKey]*Entry),
		active:  make(map[[2]string]bool),
	}
}

// SetActive marks an asset as monitored or not.
func (m *Memory) SetActive(ticker, exchange string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[[2]string{ticker, exchange}] = active
}

// PendingOrFailed implements Ledger.
func (m *Memory) PendingOrFailed(ctx context.Context, activeOnly bool) ([]market.MonthKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []market.MonthKey
	for key, e := range m.entries {
		if activeOnly && !m.active[[2]string{key.Ticker, key.Exchange}] {
			continue
		}
		if needsUpload(e) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// needsUpload applies the re-upload-on-change policy.
func needsUpload(e *Entry) bool {
	switch e.Upload.Status {
	case StatusNotUploaded, StatusFailed:
		return true
	case StatusUploaded:
		return !e.Current.Matches(e.Upload.Uploaded)
	default:
		return false
	}
}

// State implements Ledger.
func (m *Memory) State(ctx context.Context, key market.MonthKey) (UploadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return UploadState{}, errors.Wrapf(errors.ErrEntryNotFound, "%s", key)
	}
	return e.Upload, nil
}

// UpsertState implements Ledger.
func (m *Memory) UpsertState(ctx context.Context, key market.MonthKey, state UploadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &Entry{Key: key}
		m.entries[key] = e
	}
	state.UpdatedAt = time.Now().UTC()
	e.Upload = state
	return nil
}

// RecordWrite implements Ledger.
func (m *Memory) RecordWrite(ctx context.Context, key market.MonthKey, result monthly.WriteResult, remoteKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &Entry{Key: key}
		m.entries[key] = e
	}

	e.LastCollectedMs = result.LastTimestampMs
	e.Current = Fingerprint{SizeBytes: result.FileSize, RecordCount: result.TotalRecords}
	e.LocalPath = result.Path
	e.RemoteKey = remoteKey

	if result.FileChanged && e.Upload.Status == StatusUploaded {
		e.Upload.Status = StatusNotUploaded
	}
	e.Upload.UpdatedAt = time.Now().UTC()
	return nil
}

// Entry implements Ledger.
func (m *Memory) Entry(ctx context.Context, key market.MonthKey) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, errors.Wrapf(errors.ErrEntryNotFound, "%s", key)
	}
	return *e, nil
}
