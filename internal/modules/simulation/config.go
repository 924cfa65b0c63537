package simulation

import (
	"fmt"
	"math"
	"runtime"
)

// Defaults: ten thousand one-year paths at 95% confidence.
const (
	DefaultIterations        = 10000
	DefaultHorizonDays       = 252
	DefaultConfidence        = 0.95
	DefaultInitialInvestment = 10000.0
	DefaultPeriodsPerYear    = 252
	DefaultSamplePaths       = 100
	DefaultMaxTensorCells    = 100_000_000
)

// DefaultPercentiles are the terminal-value quantiles reported with every run.
var DefaultPercentiles = []float64{0.05, 0.25, 0.50, 0.75, 0.95}

// Config holds the engine parameters for one run.
type Config struct {
	Iterations        int
	HorizonDays       int
	ConfidenceLevel   float64
	InitialInvestment float64
	PeriodsPerYear    int
	Seed              *uint64 // nil selects a time-derived seed, reported in the Result
	Workers           int     // <= 0 means runtime.NumCPU()
	SamplePaths       int
	Percentiles       []float64
	AllowShort        bool
	MaxTensorCells    int
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:        DefaultIterations,
		HorizonDays:       DefaultHorizonDays,
		ConfidenceLevel:   DefaultConfidence,
		InitialInvestment: DefaultInitialInvestment,
		PeriodsPerYear:    DefaultPeriodsPerYear,
		SamplePaths:       DefaultSamplePaths,
		Percentiles:       append([]float64(nil), DefaultPercentiles...),
		MaxTensorCells:    DefaultMaxTensorCells,
	}
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfig, c.HorizonDays)
	}
	if err := validateConfidence(c.ConfidenceLevel); err != nil {
		return err
	}
	if !(c.InitialInvestment > 0) || math.IsInf(c.InitialInvestment, 0) {
		return fmt.Errorf("%w: initial investment must be positive, got %v", ErrInvalidConfig, c.InitialInvestment)
	}
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: periods per year must be positive, got %d", ErrInvalidConfig, c.PeriodsPerYear)
	}
	if c.SamplePaths < 0 {
		return fmt.Errorf("%w: sample paths must not be negative, got %d", ErrInvalidConfig, c.SamplePaths)
	}
	if c.MaxTensorCells < 0 {
		return fmt.Errorf("%w: max tensor cells must not be negative, got %d", ErrInvalidConfig, c.MaxTensorCells)
	}
	for _, p := range c.Percentiles {
		if !(p > 0 && p < 1) {
			return fmt.Errorf("%w: percentile %v outside (0, 1)", ErrInvalidConfig, p)
		}
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// CheckSize returns ErrSimulationTooLarge when a run over assets would
// exceed MaxTensorCells.
func (c Config) CheckSize(assets int) error {
	return checkTensorSize(c.Iterations, assets, c.HorizonDays+1, c.maxCells())
}

func (c Config) maxCells() int {
	if c.MaxTensorCells > 0 {
		return c.MaxTensorCells
	}
	return DefaultMaxTensorCells
}

func validateConfidence(c float64) error {
	if !(c > 0 && c < 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidConfidence, c)
	}
	return nil
}
