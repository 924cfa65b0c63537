// Package marketdata acquires, stores and aligns daily price history for the
// simulation engine.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoData is returned when a symbol has no usable prices for a period.
	ErrNoData = errors.New("no price data")
	// ErrInvalidPeriod is returned for period strings other than those in Periods.
	ErrInvalidPeriod = errors.New("invalid period")
)

// DefaultUniverse is the ticker set offered when a caller names none.
var DefaultUniverse = []string{"AAPL", "MSFT", "NVDA", "JPM", "V", "AMZN", "KO", "PFE", "XOM", "TSLA"}

// DefaultPeriod is the default look-back window for model estimation.
const DefaultPeriod = "2y"

// Periods lists the supported look-back windows, in Yahoo Finance notation.
var Periods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Bar is one day of price data. AdjClose is split and dividend adjusted.
type Bar struct {
	Date     time.Time `json:"date" msgpack:"date"`
	Open     float64   `json:"open" msgpack:"open"`
	High     float64   `json:"high" msgpack:"high"`
	Low      float64   `json:"low" msgpack:"low"`
	Close    float64   `json:"close" msgpack:"close"`
	AdjClose float64   `json:"adj_close" msgpack:"adj_close"`
	Volume   int64     `json:"volume" msgpack:"volume"`
}

// PriceProvider downloads daily history from an external market data source.
type PriceProvider interface {
	FetchHistory(ctx context.Context, symbol, period string) ([]Bar, error)
}

// PriceCache stores assembled price matrices between requests.
// *cache.Store implements it.
type PriceCache interface {
	GetMsgpack(key string, dest interface{}) error
	SetMsgpack(key string, value interface{}, ttl time.Duration) error
}

// PeriodStart returns the first date covered by period, counted back from now.
// "max" returns the zero time.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch strings.ToLower(period) {
	case "1mo":
		return day.AddDate(0, -1, 0), nil
	case "3mo":
		return day.AddDate(0, -3, 0), nil
	case "6mo":
		return day.AddDate(0, -6, 0), nil
	case "1y":
		return day.AddDate(-1, 0, 0), nil
	case "2y":
		return day.AddDate(-2, 0, 0), nil
	case "5y":
		return day.AddDate(-5, 0, 0), nil
	case "10y":
		return day.AddDate(-10, 0, 0), nil
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	case "max":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidPeriod, period, strings.Join(Periods, ", "))
	}
}

// truncateDay normalizes a timestamp to UTC midnight of its calendar day.
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
