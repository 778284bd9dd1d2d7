package market

import (
	"fmt"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
)

// MonthKey identifies one monthly partition of stored data.
// It is the unit of file ownership, upload tracking, and write serialization.
type MonthKey struct {
	Ticker   string
	Exchange string
	Year     int
	Month    time.Month
}

// MonthKeyFor derives the partition key for a record from its UTC timestamp.
func MonthKeyFor(r *Record) MonthKey {
	t := r.TimestampTime()
	return MonthKey{
		Ticker:   r.Ticker,
		Exchange: r.Exchange,
		Year:     t.Year(),
		Month:    t.Month(),
	}
}

// String returns a stable human-readable form, e.g. "BTCUSD/tiingo/2024-01".
func (k MonthKey) String() string {
	return fmt.Sprintf("%s/%s/%04d-%02d", k.Ticker, k.Exchange, k.Year, int(k.Month))
}

// Validate checks the partition bounds. Year may run one past the current
// year so a collection crossing New Year's Eve is not rejected.
func (k MonthKey) Validate() error {
	if k.Ticker == "" {
		return errors.Wrapf(errors.ErrInvalidPartition, "empty ticker")
	}
	if k.Exchange == "" {
		return errors.Wrapf(errors.ErrInvalidPartition, "empty exchange")
	}
	if k.Year < 1970 || k.Year > time.Now().UTC().Year()+1 {
		return errors.Wrapf(errors.ErrInvalidPartition, "year %d out of range", k.Year)
	}
	if k.Month < time.January || k.Month > time.December {
		return errors.Wrapf(errors.ErrInvalidPartition, "month %d out of range", int(k.Month))
	}
	return nil
}

func errBadSchemaField(field, reason string) error {
	return errors.Wrapf(errors.ErrBadSchema, "field %s: %s", field, reason)
}
