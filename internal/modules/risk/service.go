package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/cache"
	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/simulation"
	"github.com/aristath/alphapulse/internal/utils"
)

// DefaultReportTTL is how long run reports stay retrievable by ID.
const DefaultReportTTL = 24 * time.Hour

// MarketData loads price history. *marketdata.Service implements it.
type MarketData interface {
	LoadPriceMatrix(ctx context.Context, symbols []string, period string) (simulation.PriceMatrix, error)
	History(ctx context.Context, symbol, period string) ([]marketdata.Bar, error)
}

// ReportStore keeps run reports for retrieval by ID. *cache.Store implements it.
type ReportStore interface {
	SetJSON(key string, value interface{}, ttl time.Duration) error
	GetJSON(key string, dest interface{}) error
}

// Archiver copies finished reports to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// ServiceConfig holds the defaults applied to every request.
type ServiceConfig struct {
	Simulation simulation.Config
	Period     string        // market data look-back, marketdata.DefaultPeriod when empty
	ReportTTL  time.Duration // DefaultReportTTL when <= 0
}

// Service runs simulations and serves their reports.
type Service struct {
	market   MarketData
	store    ReportStore
	archiver Archiver
	guard    *MemoryGuard
	cfg      ServiceConfig
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewService creates a risk service. store and guard may be nil.
func NewService(market MarketData, store ReportStore, guard *MemoryGuard, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.Period == "" {
		cfg.Period = marketdata.DefaultPeriod
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = DefaultReportTTL
	}
	return &Service{
		market: market,
		store:  store,
		guard:  guard,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    log.With().Str("service", "risk").Logger(),
	}
}

// SetArchiver enables report archiving. Archive failures are logged, never returned.
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// RunSimulation loads market data, simulates the portfolio and stores the report.
func (s *Service) RunSimulation(ctx context.Context, req SimulationRequest) (*Report, error) {
	defer utils.OperationTimer("risk_simulation", s.log)()

	cfg, err := s.runConfig(req)
	if err != nil {
		return nil, err
	}

	pm, period, fromSymbols, err := s.priceMatrix(ctx, req)
	if err != nil {
		return nil, err
	}

	alloc, err := allocation(req.Weights, pm.Assets, fromSymbols)
	if err != nil {
		return nil, err
	}
	weights, err := alloc.Weights(pm.Assets, cfg.AllowShort)
	if err != nil {
		return nil, err
	}

	if err := cfg.CheckSize(len(pm.Assets)); err != nil {
		return nil, err
	}
	if s.guard != nil {
		if err := s.guard.Check(cfg.Iterations, len(pm.Assets), cfg.HorizonDays+1); err != nil {
			return nil, err
		}
	}

	engine, err := simulation.NewEngine(cfg, s.log)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := engine.Run(pm, alloc)
	if err != nil {
		return nil, fmt.Errorf("simulation failed: %w", err)
	}
	if res.PSDCorrected {
		s.log.Warn().
			Strs("assets", pm.Assets).
			Msg("Correlation matrix was not positive semi-definite, clipped negative eigenvalues")
	}

	report := buildReport(s.newID(), start, cfg, &pm, period, weights, res)
	report.DurationMs = s.now().Sub(start).Milliseconds()

	s.log.Info().
		Str("run_id", report.ID).
		Strs("assets", pm.Assets).
		Int("iterations", cfg.Iterations).
		Int("horizon_days", cfg.HorizonDays).
		Float64("var", report.Metrics.VaR).
		Str("outcome", report.Outcome).
		Msg("Simulation completed")

	s.save(ctx, report)
	return report, nil
}

// runConfig applies request overrides to the service defaults.
func (s *Service) runConfig(req SimulationRequest) (simulation.Config, error) {
	cfg := s.cfg.Simulation
	if req.Iterations != nil {
		cfg.Iterations = *req.Iterations
	}
	if req.HorizonDays != nil {
		cfg.HorizonDays = *req.HorizonDays
	}
	if req.Confidence != nil {
		cfg.ConfidenceLevel = *req.Confidence
	}
	if req.InitialInvestment != nil {
		cfg.InitialInvestment = *req.InitialInvestment
	}
	if req.SamplePaths != nil {
		cfg.SamplePaths = *req.SamplePaths
	}
	if req.Seed != nil {
		seed := *req.Seed
		cfg.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return simulation.Config{}, err
	}
	return cfg, nil
}

// priceMatrix resolves the market data of a request. fromSymbols reports
// whether the matrix was downloaded (and its symbols normalized).
func (s *Service) priceMatrix(ctx context.Context, req SimulationRequest) (pm simulation.PriceMatrix, period string, fromSymbols bool, err error) {
	if req.Prices != nil {
		if len(req.Symbols) > 0 {
			return pm, "", false, fmt.Errorf("%w: symbols and prices are mutually exclusive", ErrInvalidRequest)
		}
		pm, err = req.Prices.toMatrix()
		return pm, "", false, err
	}

	symbols := normalizeSymbols(req.Symbols)
	period = req.Period
	if period == "" {
		period = s.cfg.Period
	}
	pm, err = s.market.LoadPriceMatrix(ctx, symbols, period)
	if err != nil {
		return pm, "", true, err
	}
	return pm, strings.ToLower(period), true, nil
}

func (in *PriceInput) toMatrix() (simulation.PriceMatrix, error) {
	pm := simulation.PriceMatrix{
		Assets: in.Assets,
		Prices: in.Prices,
		Dates:  make([]time.Time, len(in.Dates)),
	}
	for i, d := range in.Dates {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return simulation.PriceMatrix{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", simulation.ErrInvalidPrice, d)
		}
		pm.Dates[i] = t
	}
	return pm, nil
}

// normalizeSymbols upper-cases and dedupes symbols, falling back to the
// default universe when none remain.
func normalizeSymbols(symbols []string) []string {
	out := utils.ParseSymbols(strings.Join(symbols, ","))
	if len(out) == 0 {
		return append([]string(nil), marketdata.DefaultUniverse...)
	}
	return out
}

// allocation returns the requested weights, or equal weights when none are given.
// Weight keys of downloaded symbols are normalized like the symbols themselves,
// and two keys that normalize to the same symbol are rejected.
func allocation(weights map[string]float64, assets []string, fromSymbols bool) (simulation.AllocationVector, error) {
	if len(weights) == 0 {
		return simulation.EqualWeights(assets), nil
	}
	alloc := make(simulation.AllocationVector, len(weights))
	for k, w := range weights {
		if fromSymbols {
			k = strings.ToUpper(strings.TrimSpace(k))
		}
		if _, dup := alloc[k]; dup {
			return nil, fmt.Errorf("%w: weight for %s listed more than once", ErrInvalidRequest, k)
		}
		alloc[k] = w
	}
	return alloc, nil
}

func runKey(id string) string {
	return "risk:run:" + id
}

func archiveKey(r *Report) string {
	return "runs/" + r.CreatedAt.Format("2006/01/02") + "/" + r.ID + ".json"
}

func (s *Service) save(ctx context.Context, report *Report) {
	if s.store != nil {
		if err := s.store.SetJSON(runKey(report.ID), report, s.cfg.ReportTTL); err != nil {
			s.log.Error().Err(err).Str("run_id", report.ID).Msg("Failed to store simulation report")
		}
	}
	if s.archiver == nil {
		return
	}

	body, err := json.Marshal(report)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", report.ID).Msg("Failed to encode report for archive")
		return
	}
	if err := s.archiver.Archive(ctx, archiveKey(report), body); err != nil {
		s.log.Warn().Err(err).Str("run_id", report.ID).Msg("Failed to archive simulation report")
	}
}

// GetRun returns a stored report by ID.
func (s *Service) GetRun(id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: run id %q", ErrInvalidRequest, id)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	var report Report
	if err := s.store.GetJSON(runKey(id), &report); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &report, nil
}

// Correlation estimates the market model of symbols over period.
func (s *Service) Correlation(ctx context.Context, symbols []string, period string) (*CorrelationReport, error) {
	symbols = normalizeSymbols(symbols)
	if period == "" {
		period = s.cfg.Period
	}

	pm, err := s.market.LoadPriceMatrix(ctx, symbols, period)
	if err != nil {
		return nil, err
	}
	returns, err := simulation.ComputeLogReturns(pm)
	if err != nil {
		return nil, err
	}
	model, err := simulation.EstimateModel(returns, pm.LastPrices(), s.cfg.Simulation.PeriodsPerYear)
	if err != nil {
		return nil, err
	}
	if model.PSDCorrected {
		s.log.Warn().Strs("assets", symbols).Msg("Correlation matrix was not positive semi-definite, clipped negative eigenvalues")
	}

	return &CorrelationReport{
		Period:       strings.ToLower(period),
		From:         pm.Dates[0],
		To:           pm.Dates[len(pm.Dates)-1],
		Observations: model.Observations,
		Assets:       assetReports(model, nil),
		Correlation:  roundMatrix(model.CorrelationRows()),
		PSDCorrected: model.PSDCorrected,
	}, nil
}

// Prices returns the stored history of one symbol.
func (s *Service) Prices(ctx context.Context, symbol, period string) (*PriceHistory, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if period == "" {
		period = s.cfg.Period
	}

	bars, err := s.market.History(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	out := &PriceHistory{
		Symbol: symbol,
		Period: strings.ToLower(period),
		Count:  len(bars),
		Prices: make([]PricePoint, len(bars)),
	}
	for i, b := range bars {
		out.Prices[i] = PricePoint{Date: b.Date, Close: b.Close, AdjClose: b.AdjClose, Volume: b.Volume}
	}
	return out, nil
}
