package simulation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/utils"
)

// Result is everything one engine run produces for the reporting layer.
type Result struct {
	Metrics      *RiskMetrics
	Correlation  [][]float64
	Model        *MarketModel
	Ensemble     *SimulationEnsemble
	SamplePaths  []SamplePath
	Bands        []PercentileBand
	Seed         uint64
	PSDCorrected bool
}

// Engine wires the six stages together for a fixed Config.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "simulation_engine").Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run estimates a market model from historical prices and simulates it.
func (e *Engine) Run(prices PriceMatrix, alloc AllocationVector) (*Result, error) {
	returns, err := ComputeLogReturns(prices)
	if err != nil {
		return nil, err
	}
	// Fail on a bad allocation before doing any estimation work.
	if _, err := alloc.Weights(prices.Assets, e.cfg.AllowShort); err != nil {
		return nil, err
	}

	model, err := EstimateModel(returns, prices.LastPrices(), e.cfg.PeriodsPerYear)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate market model: %w", err)
	}
	return e.RunModel(model, alloc)
}

// RunModel simulates an already estimated (or supplied) market model.
func (e *Engine) RunModel(model *MarketModel, alloc AllocationVector) (*Result, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no market model", ErrInsufficientData)
	}
	weights, err := alloc.Weights(model.Assets, e.cfg.AllowShort)
	if err != nil {
		return nil, err
	}
	if err := checkTensorSize(e.cfg.Iterations, len(model.Assets), e.cfg.HorizonDays+1, e.cfg.maxCells()); err != nil {
		return nil, err
	}

	seed := e.seed()
	timer := utils.NewTimer("monte_carlo_run", e.log)

	sampler, err := NewCorrelatedSampler(model.Correlation, seed)
	if err != nil {
		return nil, err
	}

	tensor, err := Simulate(model, sampler, SimulationParams{
		Iterations:     e.cfg.Iterations,
		HorizonDays:    e.cfg.HorizonDays,
		Workers:        e.cfg.workers(),
		MaxTensorCells: e.cfg.maxCells(),
	})
	if err != nil {
		return nil, err
	}

	ensemble, err := AggregateWeights(tensor, weights, e.cfg.InitialInvestment)
	if err != nil {
		return nil, err
	}

	metrics, err := Analyze(ensemble, e.cfg.ConfidenceLevel, AnalysisOptions{
		Percentiles:    e.cfg.Percentiles,
		PeriodsPerYear: e.cfg.PeriodsPerYear,
	})
	if err != nil {
		return nil, err
	}

	bandLevels := e.cfg.Percentiles
	if len(bandLevels) == 0 {
		bandLevels = DefaultPercentiles
	}
	bands, err := PercentileBands(ensemble, bandLevels)
	if err != nil {
		return nil, err
	}

	timer.StopWithContext(map[string]interface{}{
		"assets":        len(model.Assets),
		"iterations":    e.cfg.Iterations,
		"horizon_days":  e.cfg.HorizonDays,
		"eigen_factor":  sampler.UsedEigenFallback(),
		"psd_corrected": model.PSDCorrected,
	})

	return &Result{
		Metrics:      metrics,
		Correlation:  model.CorrelationRows(),
		Model:        model,
		Ensemble:     ensemble,
		SamplePaths:  SamplePaths(ensemble, e.cfg.SamplePaths),
		Bands:        bands,
		Seed:         seed,
		PSDCorrected: model.PSDCorrected,
	}, nil
}

func (e *Engine) seed() uint64 {
	if e.cfg.Seed != nil {
		return *e.cfg.Seed
	}
	return uint64(time.Now().UnixNano())
}
