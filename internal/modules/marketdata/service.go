package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/modules/simulation"
	"github.com/aristath/alphapulse/internal/utils"
)

// DefaultStaleAfter is how old a symbol's last download may be before it is refreshed.
const DefaultStaleAfter = 12 * time.Hour

// Service assembles price matrices for the engine: cache first, then the
// history database, downloading from the provider only when stored history is
// missing or stale.
type Service struct {
	provider   PriceProvider
	repo       *HistoryRepository
	cache      PriceCache
	cacheTTL   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a market data service. cache may be nil to disable caching.
func NewService(provider PriceProvider, repo *HistoryRepository, cache PriceCache, cacheTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		provider:   provider,
		repo:       repo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		log:        log.With().Str("service", "marketdata").Logger(),
	}
}

// cachedMatrix is the msgpack form of a price matrix.
type cachedMatrix struct {
	Dates  []time.Time `msgpack:"dates"`
	Assets []string    `msgpack:"assets"`
	Prices [][]float64 `msgpack:"prices"`
}

// MatrixCacheKey identifies a price matrix by its ordered symbols and period.
func MatrixCacheKey(symbols []string, period string) string {
	return "prices:" + strings.Join(symbols, ",") + ":" + strings.ToLower(period)
}

// LoadPriceMatrix returns aligned adjusted closes for symbols over period,
// validated and ready for simulation.Engine.Run.
func (s *Service) LoadPriceMatrix(ctx context.Context, symbols []string, period string) (simulation.PriceMatrix, error) {
	if len(symbols) == 0 {
		return simulation.PriceMatrix{}, fmt.Errorf("%w: no symbols requested", simulation.ErrInsufficientData)
	}
	if _, err := PeriodStart(period, s.now()); err != nil {
		return simulation.PriceMatrix{}, err
	}

	key := MatrixCacheKey(symbols, period)
	if s.cache != nil {
		var cached cachedMatrix
		if err := s.cache.GetMsgpack(key, &cached); err == nil {
			s.log.Debug().Str("key", key).Msg("Price matrix cache hit")
			pm := simulation.PriceMatrix{Dates: cached.Dates, Assets: cached.Assets, Prices: cached.Prices}
			for i := range pm.Dates {
				pm.Dates[i] = pm.Dates[i].UTC()
			}
			return pm, nil
		}
	}

	defer utils.OperationTimer("load_price_matrix", s.log)()

	series := make(map[string][]Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := s.History(ctx, sym, period)
		if err != nil {
			return simulation.PriceMatrix{}, err
		}
		series[sym] = bars
	}

	pm, err := AlignPrices(symbols, series)
	if err != nil {
		return simulation.PriceMatrix{}, err
	}
	if err := pm.Validate(); err != nil {
		return simulation.PriceMatrix{}, fmt.Errorf("aligned prices for %s: %w", strings.Join(symbols, ","), err)
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetMsgpack(key, cachedMatrix{Dates: pm.Dates, Assets: pm.Assets, Prices: pm.Prices}, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache price matrix")
		}
	}
	return pm, nil
}

// History returns stored bars for symbol over period, downloading first when
// the stored history is missing, stale or does not reach back far enough.
func (s *Service) History(ctx context.Context, symbol, period string) ([]Bar, error) {
	start, err := PeriodStart(period, s.now())
	if err != nil {
		return nil, err
	}

	state, err := s.repo.GetSyncState(symbol)
	if err != nil {
		return nil, err
	}
	if s.needsSync(state, start) {
		if err := s.sync(ctx, symbol, period); err != nil {
			if state == nil {
				return nil, err
			}
			// Fall back to stored history.
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Refresh failed, using stored history")
		}
	}

	bars, err := s.repo.GetBars(symbol, start)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s (%s)", ErrNoData, symbol, period)
	}
	return bars, nil
}

func (s *Service) needsSync(state *SyncState, start time.Time) bool {
	if state == nil || state.RowCount == 0 {
		return true
	}
	age := s.now().Sub(state.LastSynced)
	if age > s.staleAfter {
		return true
	}
	// Stored history starts well after the requested window (a week of slack
	// for weekends and holidays). Young listings never reach back that far, so
	// retry at most hourly.
	return age > time.Hour && !start.IsZero() && state.FirstDate.After(start.AddDate(0, 0, 7))
}

func (s *Service) sync(ctx context.Context, symbol, period string) error {
	bars, err := s.provider.FetchHistory(ctx, symbol, period)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", symbol, err)
	}
	bars = cleanBars(bars)
	if len(bars) == 0 {
		return fmt.Errorf("%w for %s (%s)", ErrNoData, symbol, period)
	}
	if err := s.repo.SaveBars(symbol, bars, s.now()); err != nil {
		return err
	}
	s.log.Info().Str("symbol", symbol).Int("bars", len(bars)).Str("period", period).Msg("Synced price history")
	return nil
}

// RefreshSymbols downloads period history for every symbol, continuing past
// individual failures. The returned error joins all failures.
func (s *Service) RefreshSymbols(ctx context.Context, symbols []string, period string) error {
	if _, err := PeriodStart(period, s.now()); err != nil {
		return err
	}

	var errs []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.sync(ctx, sym, period); err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to refresh symbol")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
