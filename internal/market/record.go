package market

import (
	"math"
	"time"
)

// Record represents a single OHLCV observation for an asset.
// This is the primary data unit flowing through the storage system.
// Records are immutable once produced by the collector.
type Record struct {
	// Identity
	Ticker   string // Asset symbol (e.g., "BTCUSD")
	Exchange string // Source exchange (e.g., "tiingo", "coinbase")

	// Timestamp
	TimestampMs int64 // Unix timestamp in milliseconds, UTC

	// Price fields
	Open  float64
	High  float64
	Low   float64
	Close float64

	// Volume traded in the bar interval
	Volume float64
}

// TimestampTime returns the timestamp as a time.Time in UTC.
func (r *Record) TimestampTime() time.Time {
	return time.UnixMilli(r.TimestampMs).UTC()
}

// Validate checks that the record satisfies the fixed schema:
// non-empty identity, a real timestamp, and finite numeric fields.
func (r *Record) Validate() error {
	if r.Ticker == "" {
		return errBadSchemaField("ticker", "empty")
	}
	if r.Exchange == "" {
		return errBadSchemaField("exchange", "empty")
	}
	if r.TimestampMs <= 0 {
		return errBadSchemaField("timestamp", "missing or unparseable")
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", r.Open},
		{"high", r.High},
		{"low", r.Low},
		{"close", r.Close},
		{"volume", r.Volume},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return errBadSchemaField(f.name, "not a finite number")
		}
	}

	return nil
}
