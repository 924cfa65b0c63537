package marketdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// YahooClient implements PriceProvider using go-yfinance.
type YahooClient struct {
	maxRetries int
	baseDelay  time.Duration
	log        zerolog.Logger
}

// NewYahooClient creates a Yahoo Finance client that retries failed downloads
// with exponential backoff.
func NewYahooClient(log zerolog.Logger) *YahooClient {
	return &YahooClient{
		maxRetries: 3,
		baseDelay:  time.Second,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// FetchHistory downloads auto-adjusted daily bars for symbol over period.
func (c *YahooClient) FetchHistory(ctx context.Context, symbol, period string) ([]Bar, error) {
	if _, err := PeriodStart(period, time.Now()); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.baseDelay * time.Duration(1<<uint(attempt-1))
			c.log.Warn().Err(lastErr).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		bars, err := c.fetchOnce(symbol, period)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

func (c *YahooClient) fetchOnce(symbol, period string) ([]Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	}

	raw, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, bar := range raw {
		bars = append(bars, Bar{
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjClose,
			Volume:   int64(bar.Volume),
		})
	}

	bars = cleanBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s (%s)", ErrNoData, symbol, period)
	}
	return bars, nil
}

// cleanBars normalizes dates to UTC days, sorts ascending, drops rows without
// a positive finite close and keeps the last bar of any duplicated day.
// With auto-adjust on, Yahoo may leave AdjClose empty; Close is already
// adjusted then and is used instead.
func cleanBars(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !(b.AdjClose > 0) || math.IsInf(b.AdjClose, 0) {
			b.AdjClose = b.Close
		}
		if !(b.AdjClose > 0) || math.IsInf(b.AdjClose, 0) {
			continue
		}
		b.Date = truncateDay(b.Date)
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, b := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}
