package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/quantfold/tickvault/internal/market"
)

// tickerResponse is one element of the API's top-level array.
type tickerResponse struct {
	Ticker        string     `json:"ticker"`
	BaseCurrency  string     `json:"baseCurrency"`
	QuoteCurrency string     `json:"quoteCurrency"`
	PriceData     []priceBar `json:"priceData"`
}

// priceBar is a single bar in the API response.
type priceBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// dateLayout is the date-only format accepted by the API.
const dateLayout = "2006-01-02"

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// FetchRange fetches bars for one ticker over [startDate, endDate].
// Dates are "YYYY-MM-DD"; endDate may be empty for an open-ended window.
// The records come back tagged with the given exchange.
func (c *Client) FetchRange(ctx context.Context, ticker, exchange, startDate, endDate string) ([]market.Record, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if startDate != "" && !ValidDate(startDate) {
		return nil, fmt.Errorf("invalid date format: %s, use YYYY-MM-DD", startDate)
	}
	if endDate != "" && !ValidDate(endDate) {
		return nil, fmt.Errorf("invalid date format: %s, use YYYY-MM-DD", endDate)
	}
	if startDate != "" && endDate != "" && startDate > endDate {
		return nil, fmt.Errorf("start date %s is after end date %s", startDate, endDate)
	}

	query := url.Values{}
	query.Set("tickers", strings.ToLower(ticker))
	query.Set("resampleFreq", c.resampleFreq)
	if startDate != "" {
		query.Set("startDate", startDate)
	}
	if endDate != "" {
		query.Set("endDate", endDate)
	}

	var resp []tickerResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 || len(resp[0].PriceData) == 0 {
		return nil, fmt.Errorf("no price data for %s between %s and %s", ticker, startDate, endDate)
	}

	records := make([]market.Record, 0, len(resp[0].PriceData))
	for _, bar := range resp[0].PriceData {
		ts, err := parseBarTime(bar.Date)
		if err != nil {
			return nil, fmt.Errorf("bar timestamp %q: %w", bar.Date, err)
		}

		records = append(records, market.Record{
			Ticker:      strings.ToUpper(ticker),
			Exchange:    exchange,
			TimestampMs: ts.UnixMilli(),
			Open:        bar.Open,
			High:        bar.High,
			Low:         bar.Low,
			Close:       bar.Close,
			Volume:      bar.Volume,
		})
	}

	c.logger.Debug("fetched price data",
		"ticker", ticker,
		"bars", len(records),
	)

	return records, nil
}

// parseBarTime parses the API's bar timestamp. Bars arrive as RFC 3339
// with or without fractional seconds.
func parseBarTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05.000Z", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
