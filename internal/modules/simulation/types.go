// Package simulation is the Monte Carlo risk engine.
//
// Data flows strictly forward through six stages:
//
//	PriceMatrix -> ComputeLogReturns -> EstimateModel -> CorrelatedSampler
//	            -> Simulate -> Aggregate -> Analyze
//
// Every stage returns a new value and never mutates its inputs, so a single
// MarketModel or sampler can be shared by any number of goroutines.
package simulation

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PriceMatrix holds closing prices, one row per trading date and one column per asset.
type PriceMatrix struct {
	Dates  []time.Time
	Assets []string
	Prices [][]float64 // Prices[row][asset]
}

// Validate checks the matrix invariants: at least two rows, strictly increasing
// dates, no missing asset columns, unique assets and finite positive prices.
func (pm PriceMatrix) Validate() error {
	if len(pm.Assets) == 0 {
		return fmt.Errorf("%w: price matrix has no assets", ErrInsufficientData)
	}
	if len(pm.Prices) < 2 {
		return fmt.Errorf("%w: need at least 2 price rows, got %d", ErrInsufficientData, len(pm.Prices))
	}
	if len(pm.Dates) != len(pm.Prices) {
		return fmt.Errorf("%w: %d dates for %d price rows", ErrInvalidPrice, len(pm.Dates), len(pm.Prices))
	}

	seen := make(map[string]struct{}, len(pm.Assets))
	for _, asset := range pm.Assets {
		if asset == "" {
			return fmt.Errorf("%w: empty asset identifier", ErrInvalidPrice)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("%w: duplicate asset %s", ErrInvalidPrice, asset)
		}
		seen[asset] = struct{}{}
	}

	for row, prices := range pm.Prices {
		if len(prices) != len(pm.Assets) {
			return fmt.Errorf("%w: row %d has %d prices for %d assets", ErrInvalidPrice, row, len(prices), len(pm.Assets))
		}
		if row > 0 && !pm.Dates[row].After(pm.Dates[row-1]) {
			return fmt.Errorf("%w: dates not strictly increasing at row %d (%s)",
				ErrInvalidPrice, row, pm.Dates[row].Format(time.DateOnly))
		}
		for col, price := range prices {
			if !(price > 0) || math.IsInf(price, 0) {
				return fmt.Errorf("%w: %s on %s is %v",
					ErrInvalidPrice, pm.Assets[col], pm.Dates[row].Format(time.DateOnly), price)
			}
		}
	}
	return nil
}

// LastPrices returns a copy of the most recent row, the starting point of every
// simulated path.
func (pm PriceMatrix) LastPrices() []float64 {
	if len(pm.Prices) == 0 {
		return nil
	}
	return slices.Clone(pm.Prices[len(pm.Prices)-1])
}

// ReturnMatrix holds periodic log returns. Dates[i] is the later date of the
// price pair that produced row i.
type ReturnMatrix struct {
	Dates   []time.Time
	Assets  []string
	Returns [][]float64 // Returns[row][asset]
}

// Column returns a copy of one asset's return series.
func (rm ReturnMatrix) Column(asset int) []float64 {
	col := make([]float64, len(rm.Returns))
	for i, row := range rm.Returns {
		col[i] = row[asset]
	}
	return col
}

// MarketModel is the estimated (or supplied) joint return model that drives the
// simulation. All rates are annualized.
type MarketModel struct {
	Assets         []string
	InitialPrices  []float64
	Drift          []float64     // annualized mean log return
	Volatility     []float64     // annualized standard deviation of log returns
	Covariance     *mat.SymDense // annualized, PSD
	Correlation    *mat.SymDense // unit diagonal, PSD
	PeriodsPerYear int
	Observations   int  // number of return rows behind the estimate, 0 when supplied
	PSDCorrected   bool // eigenvalue clipping was applied
}

// CorrelationRows returns the correlation matrix as nested slices for
// serialization and heatmap rendering.
func (m *MarketModel) CorrelationRows() [][]float64 {
	return symRows(m.Correlation)
}

// CovarianceRows returns the annualized covariance matrix as nested slices.
func (m *MarketModel) CovarianceRows() [][]float64 {
	return symRows(m.Covariance)
}

func symRows(s *mat.SymDense) [][]float64 {
	if s == nil {
		return nil
	}
	n := s.SymmetricDim()
	rows := make([][]float64, n)
	for i := range n {
		rows[i] = make([]float64, n)
		for j := range n {
			rows[i][j] = s.At(i, j)
		}
	}
	return rows
}

// PriceTensor stores simulated prices for every iteration, asset and step in one
// flat slice laid out as [iteration][asset][step]. Step 0 is the initial price.
type PriceTensor struct {
	assets     []string
	iterations int
	steps      int
	data       []float64
}

func newPriceTensor(assets []string, iterations, steps int) *PriceTensor {
	return &PriceTensor{
		assets:     slices.Clone(assets),
		iterations: iterations,
		steps:      steps,
		data:       make([]float64, iterations*len(assets)*steps),
	}
}

// Assets returns the simulated asset identifiers in column order.
func (pt *PriceTensor) Assets() []string { return slices.Clone(pt.assets) }

// Iterations returns the number of simulated paths per asset.
func (pt *PriceTensor) Iterations() int { return pt.iterations }

// Steps returns the number of points per path (horizon + 1).
func (pt *PriceTensor) Steps() int { return pt.steps }

// At returns the simulated price of asset a at step t of iteration i.
func (pt *PriceTensor) At(i, a, t int) float64 {
	return pt.data[pt.offset(i, a)+t]
}

// Series returns a read-only view of one asset's path within one iteration.
func (pt *PriceTensor) Series(i, a int) []float64 {
	off := pt.offset(i, a)
	return pt.data[off : off+pt.steps : off+pt.steps]
}

func (pt *PriceTensor) offset(i, a int) int {
	return (i*len(pt.assets) + a) * pt.steps
}

// SimulationEnsemble holds one simulated portfolio value path per iteration.
type SimulationEnsemble struct {
	iterations   int
	steps        int
	initialValue float64
	values       []float64 // [iteration][step]
}

// Iterations returns the number of paths.
func (e *SimulationEnsemble) Iterations() int { return e.iterations }

// Steps returns the number of points per path (horizon + 1).
func (e *SimulationEnsemble) Steps() int { return e.steps }

// Horizon returns the number of simulated steps after the starting value.
func (e *SimulationEnsemble) Horizon() int { return e.steps - 1 }

// InitialValue returns the portfolio value every path starts from.
func (e *SimulationEnsemble) InitialValue() float64 { return e.initialValue }

// Path returns a read-only view of iteration i's portfolio values.
func (e *SimulationEnsemble) Path(i int) []float64 {
	off := i * e.steps
	return e.values[off : off+e.steps : off+e.steps]
}

// Terminal returns a copy of every path's final value, in iteration order.
func (e *SimulationEnsemble) Terminal() []float64 {
	return e.AtStep(e.steps - 1)
}

// AtStep returns a copy of every path's value at step t, in iteration order.
func (e *SimulationEnsemble) AtStep(t int) []float64 {
	out := make([]float64, e.iterations)
	for i := range e.iterations {
		out[i] = e.values[i*e.steps+t]
	}
	return out
}

// Equal reports whether two ensembles hold bit-identical values.
func (e *SimulationEnsemble) Equal(other *SimulationEnsemble) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.iterations == other.iterations &&
		e.steps == other.steps &&
		e.initialValue == other.initialValue &&
		slices.Equal(e.values, other.values)
}

// PercentileValue pairs a quantile level in (0, 1) with its value.
type PercentileValue struct {
	P     float64
	Value float64
}

// RiskMetrics is the reduction of a simulation ensemble to risk statistics.
type RiskMetrics struct {
	Confidence           float64
	HorizonDays          int
	Iterations           int
	InitialValue         float64
	VaR                  float64 // initial - percentile(terminal, 1-confidence); negative when even the tail gains
	TailValue            float64 // percentile(terminal, 1-confidence)
	ExpectedShortfall    float64 // initial - mean(terminal values at or below TailValue)
	ParametricVaR        float64 // delta-normal VaR from terminal log-return moments
	AnnualizedVolatility float64
	MeanTerminal         float64
	MedianTerminal       float64
	Percentiles          []PercentileValue
	ProbabilityOfLoss    float64
	MaxDrawdownP95       float64 // 95th percentile of per-path maximum drawdown
}
