package monthly

import (
	"sort"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/market"
)

// GroupByMonth partitions a batch of records into per-(year, month) groups
// keyed by the record's UTC timestamp. Every record in one call must share
// the same ticker and exchange so the partition key is unambiguous; mixed
// batches fail with ErrMixedBatch.
//
// Groups come back internally unsorted. Sorting is the writer's job.
// An empty input yields an empty map, not an error.
func GroupByMonth(records []market.Record) (map[market.MonthKey][]market.Record, error) {
	groups := make(map[market.MonthKey][]market.Record, 1)
	if len(records) == 0 {
		return groups, nil
	}

	ticker := records[0].Ticker
	exchange := records[0].Exchange

	for i := range records {
		r := &records[i]

		if r.Ticker != ticker || r.Exchange != exchange {
			return nil, errors.Wrapf(errors.ErrMixedBatch,
				"record %d is %s/%s, batch is %s/%s",
				i, r.Ticker, r.Exchange, ticker, exchange)
		}
		if r.TimestampMs <= 0 {
			return nil, errors.Wrapf(errors.ErrBadSchema,
				"record %d has no parseable timestamp", i)
		}

		key := market.MonthKeyFor(r)
		groups[key] = append(groups[key], *r)
	}

	return groups, nil
}

// SortedKeys returns the group keys in ascending (year, month) order.
func SortedKeys(groups map[market.MonthKey][]market.Record) []market.MonthKey {
	keys := make([]market.MonthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})

	return keys
}
