package simulation

import (
	"fmt"
	"math"
)

// SimulationParams controls the size and parallelism of a path simulation.
type SimulationParams struct {
	Iterations     int
	HorizonDays    int
	Workers        int // <= 0 means a single worker
	MaxTensorCells int // <= 0 means DefaultMaxTensorCells
}

// Simulate advances every asset along correlated geometric Brownian motion:
//
//	S[t+1] = S[t] · exp((μ − σ²/2)·dt + σ·√dt·Z)
//
// with dt = 1/PeriodsPerYear and Z drawn from the sampler. The sampler must be
// built from the model's correlation matrix so that Z is standardized.
func Simulate(model *MarketModel, sampler *CorrelatedSampler, params SimulationParams) (*PriceTensor, error) {
	if model == nil || len(model.Assets) == 0 {
		return nil, fmt.Errorf("%w: no market model", ErrInsufficientData)
	}
	if sampler == nil || sampler.Dim() != len(model.Assets) {
		return nil, fmt.Errorf("%w: sampler dimension does not match %d assets", ErrFactorization, len(model.Assets))
	}
	if params.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, params.Iterations)
	}
	if params.HorizonDays <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfig, params.HorizonDays)
	}
	if model.PeriodsPerYear <= 0 {
		return nil, fmt.Errorf("%w: periods per year must be positive, got %d", ErrInvalidConfig, model.PeriodsPerYear)
	}
	if err := checkTensorSize(params.Iterations, len(model.Assets), params.HorizonDays+1, params.MaxTensorCells); err != nil {
		return nil, err
	}

	numAssets := len(model.Assets)
	steps := params.HorizonDays + 1
	dt := 1 / float64(model.PeriodsPerYear)

	driftTerm := make([]float64, numAssets)
	diffusion := make([]float64, numAssets)
	for a := range numAssets {
		sigma := model.Volatility[a]
		driftTerm[a] = (model.Drift[a] - 0.5*sigma*sigma) * dt
		diffusion[a] = sigma * math.Sqrt(dt)
	}

	tensor := newPriceTensor(model.Assets, params.Iterations, steps)
	pool := newBatchPool(params.Workers)
	pool.run(params.Iterations, batchSize, func(start, end int) {
		shocks := make([]float64, numAssets)
		for i := start; i < end; i++ {
			stream := sampler.Stream(i)
			base := i * numAssets * steps
			for a := range numAssets {
				tensor.data[base+a*steps] = model.InitialPrices[a]
			}
			for t := 1; t < steps; t++ {
				stream.Next(shocks)
				for a := range numAssets {
					off := base + a*steps + t
					tensor.data[off] = tensor.data[off-1] * math.Exp(driftTerm[a]+diffusion[a]*shocks[a])
				}
			}
		}
	})

	return tensor, nil
}

func checkTensorSize(iterations, assets, steps, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxTensorCells
	}
	perIteration := assets * steps
	if perIteration <= 0 {
		return nil
	}
	if perIteration > limit || iterations > limit/perIteration {
		return fmt.Errorf("%w: %d iterations × %d assets × %d steps exceeds %d cells",
			ErrSimulationTooLarge, iterations, assets, steps, limit)
	}
	return nil
}
