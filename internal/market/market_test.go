package market

import (
	"math"
	"testing"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
)

func validRecord() Record {
	return Record{
		Ticker:      "BTCUSD",
		Exchange:    "tiingo",
		TimestampMs: time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Open:        42000.5,
		High:        42100.0,
		Low:         41900.25,
		Close:       42050.75,
		Volume:      123.456,
	}
}

func TestRecordValidate(t *testing.T) {
	r := validRecord()
	if err := r.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"empty ticker", func(r *Record) { r.Ticker = "" }},
		{"empty exchange", func(r *Record) { r.Exchange = "" }},
		{"zero timestamp", func(r *Record) { r.TimestampMs = 0 }},
		{"negative timestamp", func(r *Record) { r.TimestampMs = -1 }},
		{"NaN open", func(r *Record) { r.Open = math.NaN() }},
		{"NaN volume", func(r *Record) { r.Volume = math.NaN() }},
		{"positive infinity high", func(r *Record) { r.High = math.Inf(1) }},
		{"negative infinity low", func(r *Record) { r.Low = math.Inf(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, errors.ErrBadSchema) {
				t.Errorf("error should wrap ErrBadSchema, got %v", err)
			}
		})
	}
}

func TestMonthKeyFor(t *testing.T) {
	r := validRecord()
	key := MonthKeyFor(&r)

	want := MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.January}
	if key != want {
		t.Errorf("MonthKeyFor = %+v, want %+v", key, want)
	}
}

func TestMonthKeyForUsesUTC(t *testing.T) {
	// 2023-12-31T23:30:00Z is still December in UTC regardless of the
	// host timezone.
	r := validRecord()
	r.TimestampMs = time.Date(2023, time.December, 31, 23, 30, 0, 0, time.UTC).UnixMilli()

	key := MonthKeyFor(&r)
	if key.Year != 2023 || key.Month != time.December {
		t.Errorf("got %d-%02d, want 2023-12", key.Year, int(key.Month))
	}
}

func TestMonthKeyString(t *testing.T) {
	key := MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.January}
	if got := key.String(); got != "BTCUSD/tiingo/2024-01" {
		t.Errorf("String() = %q", got)
	}

	// Single-digit months are zero-padded.
	key.Month = time.September
	if got := key.String(); got != "BTCUSD/tiingo/2024-09" {
		t.Errorf("String() = %q", got)
	}
}

func TestMonthKeyValidate(t *testing.T) {
	nextYear := time.Now().UTC().Year() + 1

	tests := []struct {
		name    string
		key     MonthKey
		wantErr bool
	}{
		{"valid", MonthKey{"BTCUSD", "tiingo", 2024, time.January}, false},
		{"next year allowed", MonthKey{"BTCUSD", "tiingo", nextYear, time.January}, false},
		{"empty ticker", MonthKey{"", "tiingo", 2024, time.January}, true},
		{"empty exchange", MonthKey{"BTCUSD", "", 2024, time.January}, true},
		{"year before epoch", MonthKey{"BTCUSD", "tiingo", 1969, time.January}, true},
		{"year too far out", MonthKey{"BTCUSD", "tiingo", nextYear + 1, time.January}, true},
		{"month zero", MonthKey{"BTCUSD", "tiingo", 2024, 0}, true},
		{"month thirteen", MonthKey{"BTCUSD", "tiingo", 2024, 13}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrInvalidPartition) {
				t.Errorf("error should wrap ErrInvalidPartition, got %v", err)
			}
		})
	}
}

func TestTimestampTime(t *testing.T) {
	r := validRecord()
	ts := r.TimestampTime()
	if ts.Location() != time.UTC {
		t.Errorf("TimestampTime location = %v, want UTC", ts.Location())
	}
	if ts.UnixMilli() != r.TimestampMs {
		t.Errorf("round trip lost precision: %d != %d", ts.UnixMilli(), r.TimestampMs)
	}
}
