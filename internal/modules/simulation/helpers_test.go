package simulation

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// syntheticPrices builds a deterministic price history for the given assets.
func syntheticPrices(assets []string, rows int, seed uint64) PriceMatrix {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pm := PriceMatrix{
		Dates:  make([]time.Time, rows),
		Assets: assets,
		Prices: make([][]float64, rows),
	}
	current := make([]float64, len(assets))
	for a := range current {
		current[a] = 50 + 25*float64(a)
	}
	for t := range rows {
		pm.Dates[t] = testStart.AddDate(0, 0, t)
		if t > 0 {
			market := rng.NormFloat64() * 0.01
			for a := range current {
				current[a] *= math.Exp(0.0003 + market + rng.NormFloat64()*0.01)
			}
		}
		row := make([]float64, len(current))
		copy(row, current)
		pm.Prices[t] = row
	}
	return pm
}

func twoAssetModel(t *testing.T, annualVols []float64, rho float64) *MarketModel {
	t.Helper()
	periodVol := make([]float64, len(annualVols))
	for i, v := range annualVols {
		periodVol[i] = v / math.Sqrt(DefaultPeriodsPerYear)
	}
	model, err := NewMarketModel(ModelParams{
		Assets:         []string{"A", "B"},
		InitialPrices:  []float64{100, 50},
		MeanReturns:    []float64{0, 0},
		Volatilities:   periodVol,
		Correlation:    [][]float64{{1, rho}, {rho, 1}},
		PeriodsPerYear: DefaultPeriodsPerYear,
	})
	require.NoError(t, err)
	return model
}

func testEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	seed := uint64(42)
	cfg.Seed = &seed
	cfg.Iterations = 2000
	cfg.HorizonDays = 21
	cfg.SamplePaths = 10
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}
