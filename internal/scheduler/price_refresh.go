package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRefreshTimeout bounds one watchlist refresh.
const DefaultRefreshTimeout = 10 * time.Minute

// PriceRefreshJob downloads fresh history for the watchlist so interactive
// simulations rarely wait on the market data provider.
type PriceRefreshJob struct {
	refresher PriceRefresher
	symbols   []string
	period    string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewPriceRefreshJob creates a new PriceRefreshJob
func NewPriceRefreshJob(refresher PriceRefresher, symbols []string, period string, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		refresher: refresher,
		symbols:   symbols,
		period:    period,
		timeout:   DefaultRefreshTimeout,
		log:       log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run executes the price refresh job
func (j *PriceRefreshJob) Run() error {
	if len(j.symbols) == 0 {
		j.log.Debug().Msg("Watchlist is empty, nothing to refresh")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	if err := j.refresher.RefreshSymbols(ctx, j.symbols, j.period); err != nil {
		return err
	}

	j.log.Info().
		Int("symbols", len(j.symbols)).
		Str("period", j.period).
		Dur("duration", time.Since(start)).
		Msg("Watchlist prices refreshed")
	return nil
}
