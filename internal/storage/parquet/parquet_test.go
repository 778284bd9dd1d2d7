package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/market"
)

func TestRecordWriterBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.parquet")

	w, err := NewRecordWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}

	records := []market.Record{
		{
			Ticker:      "BTCUSD",
			Exchange:    "tiingo",
			TimestampMs: time.Now().UnixMilli(),
			Open:        45000.5,
			High:        45100.0,
			Low:         44950.0,
			Close:       45050.0,
			Volume:      12.5,
		},
		{
			Ticker:      "BTCUSD",
			Exchange:    "tiingo",
			TimestampMs: time.Now().UnixMilli() + 60000,
			Open:        45050.0,
			High:        45080.0,
			Low:         45020.0,
			Close:       45060.0,
			Volume:      8.25,
		},
	}

	if err := w.Write(records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Verify file exists
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("file should not be empty")
	}
}

func TestRecordWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.parquet")

	now := time.Now().UnixMilli()
	records := []market.Record{
		{
			Ticker:      "BTCUSD",
			Exchange:    "tiingo",
			TimestampMs: now,
			Open:        45000.5,
			High:        45100.0,
			Low:         44950.0,
			Close:       45050.0,
			Volume:      12.5,
		},
		{
			Ticker:      "ETHUSD",
			Exchange:    "coinbase",
			TimestampMs: now + 1000,
			Open:        2500.0,
			High:        2510.0,
			Low:         2490.5,
			Close:       2505.25,
			Volume:      105.0,
		},
	}

	// Write
	w, err := NewRecordWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	if err := w.Write(records); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Read
	r, err := NewRecordReader(path)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	if got[0].Ticker != "BTCUSD" {
		t.Errorf("expected ticker=BTCUSD, got %s", got[0].Ticker)
	}
	if got[0].TimestampMs != now {
		t.Errorf("expected timestamp %d, got %d", now, got[0].TimestampMs)
	}
	if got[0].Close != 45050.0 {
		t.Errorf("expected close=45050.0, got %f", got[0].Close)
	}
	if got[1].Volume != 105.0 {
		t.Errorf("expected volume=105.0, got %f", got[1].Volume)
	}
}

func TestRecordRoundTripPrecision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "precision.parquet")

	rec := market.Record{
		Ticker:      "BTCUSD",
		Exchange:    "tiingo",
		TimestampMs: 1704067200123,
		Open:        45000.123456789,
		High:        45000.987654321,
		Low:         44999.000000001,
		Close:       45000.5,
		Volume:      0.000000123,
	}

	w, err := NewRecordWriter(path, Options{Compression: CompressionSnappy})
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	if err := w.Write([]market.Record{rec}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewRecordReader(path)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0] != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], rec)
	}
}

func TestRecordReaderPartialRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.parquet")

	w, err := NewRecordWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	records := make([]market.Record, 5)
	for i := range records {
		records[i] = market.Record{
			Ticker: "BTCUSD", Exchange: "tiingo",
			TimestampMs: int64(i + 1), Close: float64(i),
		}
	}
	if err := w.Write(records); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewRecordReader(path)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 5 {
		t.Fatalf("NumRows = %d, want 5", r.NumRows())
	}

	got, err := r.Read(3)
	if err != nil {
		t.Fatalf("Read(3): %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("first read returned %d records, want 3", len(got))
	}
	if got[0].TimestampMs != 1 || got[2].TimestampMs != 3 {
		t.Errorf("first read out of order: %+v", got)
	}
}

func TestGetFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.parquet")

	w, err := NewRecordWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	records := []market.Record{
		{Ticker: "BTCUSD", Exchange: "tiingo", TimestampMs: 1, Close: 1.0},
		{Ticker: "BTCUSD", Exchange: "tiingo", TimestampMs: 2, Close: 2.0},
		{Ticker: "BTCUSD", Exchange: "tiingo", TimestampMs: 3, Close: 3.0},
	}
	if err := w.Write(records); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.NumRows != 3 {
		t.Errorf("expected 3 rows, got %d", info.NumRows)
	}
	if info.Size <= 0 {
		t.Errorf("expected positive size, got %d", info.Size)
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		in   string
		want CompressionType
	}{
		{"snappy", CompressionSnappy},
		{"zstd", CompressionZstd},
		{"lz4", CompressionLZ4},
		{"gzip", CompressionGzip},
		{"none", CompressionNone},
		{"", CompressionNone},
		{"bogus", CompressionZstd},
	}

	for _, tt := range tests {
		if got := ParseCompressionType(tt.in); got != tt.want {
			t.Errorf("ParseCompressionType(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWriterClosedRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "closed.parquet")

	w, err := NewRecordWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err = w.Write([]market.Record{{Ticker: "BTCUSD", Exchange: "tiingo", TimestampMs: 1}})
	if !errors.Is(err, errors.ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
}
