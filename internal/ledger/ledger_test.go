package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/monthly"
)

func testKey(month time.Month) market.MonthKey {
	return market.MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: month}
}

func writeResult(key market.MonthKey, total int, size int64, changed bool) monthly.WriteResult {
	return monthly.WriteResult{
		Key:             key,
		TotalRecords:    total,
		RecordsAdded:    total,
		FileChanged:     changed,
		Path:            "/data/" + key.String(),
		FileSize:        size,
		LastTimestampMs: time.Date(key.Year, key.Month, 28, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusNotUploaded, StatusUploaded, StatusFailed} {
		parsed, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s.String(), err)
		}
		if parsed != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), parsed, s)
		}
	}

	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("ParseStatus should reject unknown strings")
	}
}

func TestFingerprintMatches(t *testing.T) {
	a := Fingerprint{SizeBytes: 100, RecordCount: 10}
	if !a.Matches(Fingerprint{SizeBytes: 100, RecordCount: 10}) {
		t.Error("identical fingerprints should match")
	}
	if a.Matches(Fingerprint{SizeBytes: 101, RecordCount: 10}) {
		t.Error("size change should break the match")
	}
	if a.Matches(Fingerprint{SizeBytes: 100, RecordCount: 11}) {
		t.Error("record count change should break the match")
	}
}

func TestMemoryEntryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Entry(ctx, testKey(time.January)); !errors.Is(err, errors.ErrEntryNotFound) {
		t.Errorf("Entry err = %v, want ErrEntryNotFound", err)
	}
	if _, err := m.State(ctx, testKey(time.January)); !errors.Is(err, errors.ErrEntryNotFound) {
		t.Errorf("State err = %v, want ErrEntryNotFound", err)
	}
}

func TestMemoryRecordWrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey(time.January)

	res := writeResult(key, 10, 2048, true)
	if err := m.RecordWrite(ctx, key, res, "BTCUSD/tiingo/2024/01/f.parquet"); err != nil {
		t.Fatalf("RecordWrite: %v", err)
	}

	e, err := m.Entry(ctx, key)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e.Current.SizeBytes != 2048 || e.Current.RecordCount != 10 {
		t.Errorf("fingerprint = %+v", e.Current)
	}
	if e.LastCollectedMs != res.LastTimestampMs {
		t.Errorf("LastCollectedMs = %d, want %d", e.LastCollectedMs, res.LastTimestampMs)
	}
	if e.RemoteKey != "BTCUSD/tiingo/2024/01/f.parquet" {
		t.Errorf("RemoteKey = %q", e.RemoteKey)
	}
	if e.Upload.Status != StatusNotUploaded {
		t.Errorf("fresh entry status = %v, want not_uploaded", e.Upload.Status)
	}
}

func TestMemoryChangedFileResetsUploaded(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey(time.January)

	if err := m.RecordWrite(ctx, key, writeResult(key, 10, 2048, true), "k"); err != nil {
		t.Fatal(err)
	}
	if err := m.UpsertState(ctx, key, UploadState{
		Status:   StatusUploaded,
		Uploaded: Fingerprint{SizeBytes: 2048, RecordCount: 10},
	}); err != nil {
		t.Fatal(err)
	}

	// An unchanged rewrite keeps uploaded status.
	if err := m.RecordWrite(ctx, key, writeResult(key, 10, 2048, false), "k"); err != nil {
		t.Fatal(err)
	}
	st, _ := m.State(ctx, key)
	if st.Status != StatusUploaded {
		t.Errorf("unchanged write flipped status to %v", st.Status)
	}

	// A changed rewrite flips back to not_uploaded.
	if err := m.RecordWrite(ctx, key, writeResult(key, 12, 2560, true), "k"); err != nil {
		t.Fatal(err)
	}
	st, _ = m.State(ctx, key)
	if st.Status != StatusNotUploaded {
		t.Errorf("changed write left status %v, want not_uploaded", st.Status)
	}
}

func TestMemoryPendingOrFailed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	jan := testKey(time.January)
	feb := testKey(time.February)
	mar := testKey(time.March)

	for _, k := range []market.MonthKey{jan, feb, mar} {
		if err := m.RecordWrite(ctx, k, writeResult(k, 10, 1000, true), "k/"+k.String()); err != nil {
			t.Fatal(err)
		}
	}

	// jan uploaded with a matching fingerprint: not due.
	if err := m.UpsertState(ctx, jan, UploadState{
		Status:   StatusUploaded,
		Uploaded: Fingerprint{SizeBytes: 1000, RecordCount: 10},
	}); err != nil {
		t.Fatal(err)
	}
	// feb failed: due.
	if err := m.UpsertState(ctx, feb, UploadState{Status: StatusFailed, Attempts: 3, LastError: "boom"}); err != nil {
		t.Fatal(err)
	}
	// mar stays not_uploaded: due.

	keys, err := m.PendingOrFailed(ctx, false)
	if err != nil {
		t.Fatalf("PendingOrFailed: %v", err)
	}
	due := make(map[market.MonthKey]bool, len(keys))
	for _, k := range keys {
		due[k] = true
	}
	if due[jan] {
		t.Error("uploaded+matching partition should not be due")
	}
	if !due[feb] || !due[mar] {
		t.Errorf("due set = %v, want feb and mar", keys)
	}

	// jan's file grows: fingerprint mismatch makes it due again even while
	// its status still reads uploaded.
	if err := m.RecordWrite(ctx, jan, writeResult(jan, 15, 1500, false), "k"); err != nil {
		t.Fatal(err)
	}
	keys, err = m.PendingOrFailed(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, k := range keys {
		if k == jan {
			found = true
		}
	}
	if !found {
		t.Error("fingerprint mismatch should make an uploaded partition due")
	}
}

func TestMemoryActiveOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	active := testKey(time.January)
	inactive := market.MonthKey{Ticker: "DOGEUSD", Exchange: "tiingo", Year: 2024, Month: time.January}

	for _, k := range []market.MonthKey{active, inactive} {
		if err := m.RecordWrite(ctx, k, writeResult(k, 5, 500, true), "k"); err != nil {
			t.Fatal(err)
		}
	}
	m.SetActive("BTCUSD", "tiingo", true)

	keys, err := m.PendingOrFailed(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != active {
		t.Errorf("activeOnly keys = %v, want [%v]", keys, active)
	}

	keys, err = m.PendingOrFailed(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("unfiltered keys = %v, want both partitions", keys)
	}
}

func TestMemoryUpsertState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey(time.January)

	st := UploadState{Status: StatusFailed, Attempts: 2, LastError: "connection reset"}
	if err := m.UpsertState(ctx, key, st); err != nil {
		t.Fatalf("UpsertState: %v", err)
	}

	got, err := m.State(ctx, key)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got.Status != StatusFailed || got.Attempts != 2 || got.LastError != "connection reset" {
		t.Errorf("state = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
}
