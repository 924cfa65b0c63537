package simulation

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/alphapulse/pkg/formulas"
)

// drawdownQuantile is the per-path maximum drawdown percentile reported in RiskMetrics.
const drawdownQuantile = 0.95

// AnalysisOptions tunes Analyze.
type AnalysisOptions struct {
	Percentiles    []float64 // terminal-value quantiles, DefaultPercentiles when empty
	PeriodsPerYear int       // annualization basis, DefaultPeriodsPerYear when <= 0
}

// Analyze reduces an ensemble to risk statistics at the given confidence level.
func Analyze(ens *SimulationEnsemble, confidence float64, opts AnalysisOptions) (*RiskMetrics, error) {
	if err := validateConfidence(confidence); err != nil {
		return nil, err
	}
	if ens == nil || ens.iterations == 0 || ens.steps < 2 {
		return nil, fmt.Errorf("%w: empty simulation ensemble", ErrInsufficientData)
	}

	percentiles := opts.Percentiles
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	for _, p := range percentiles {
		if !(p > 0 && p < 1) {
			return nil, fmt.Errorf("%w: percentile %v outside (0, 1)", ErrInvalidConfig, p)
		}
	}
	periods := opts.PeriodsPerYear
	if periods <= 0 {
		periods = DefaultPeriodsPerYear
	}

	initial := ens.initialValue
	terminal := ens.Terminal()
	sorted := slices.Clone(terminal)
	sort.Float64s(sorted)

	tailValue := formulas.Percentile(sorted, 1-confidence)

	var losses int
	for _, v := range terminal {
		if v < initial {
			losses++
		}
	}

	drawdowns := make([]float64, ens.iterations)
	for i := range ens.iterations {
		drawdowns[i] = formulas.MaxDrawdown(ens.Path(i))
	}

	returns := terminalReturns(terminal, initial)
	meanReturn := formulas.Mean(returns)
	sdReturn := formulas.StdDev(returns)
	horizon := float64(ens.Horizon())

	metrics := &RiskMetrics{
		Confidence:           confidence,
		HorizonDays:          ens.Horizon(),
		Iterations:           ens.iterations,
		InitialValue:         initial,
		VaR:                  initial - tailValue,
		TailValue:            tailValue,
		ExpectedShortfall:    initial - formulas.TailMean(sorted, tailValue),
		ParametricVaR:        parametricVaR(initial, meanReturn, sdReturn, confidence),
		AnnualizedVolatility: sdReturn * math.Sqrt(float64(periods)/horizon),
		MeanTerminal:         formulas.Mean(terminal),
		MedianTerminal:       formulas.Percentile(sorted, 0.5),
		ProbabilityOfLoss:    float64(losses) / float64(ens.iterations),
		MaxDrawdownP95:       formulas.PercentileOf(drawdowns, drawdownQuantile),
	}
	for _, p := range percentiles {
		metrics.Percentiles = append(metrics.Percentiles, PercentileValue{P: p, Value: formulas.Percentile(sorted, p)})
	}
	return metrics, nil
}

// terminalReturns gives ln(V_T/V_0) per path. Short-enabled portfolios can end
// at or below zero, where the log is undefined; those ensembles fall back to
// simple returns.
func terminalReturns(terminal []float64, initial float64) []float64 {
	out := make([]float64, len(terminal))
	for _, v := range terminal {
		if v <= 0 {
			for i, v := range terminal {
				out[i] = v/initial - 1
			}
			return out
		}
	}
	for i, v := range terminal {
		out[i] = math.Log(v / initial)
	}
	return out
}

// parametricVaR is the lognormal closed form for the same horizon:
// initial · (1 − exp(m + s·z)) with z the (1 − confidence) normal quantile.
func parametricVaR(initial, mean, sd, confidence float64) float64 {
	z := distuv.UnitNormal.Quantile(1 - confidence)
	return initial * (1 - math.Exp(mean+sd*z))
}

// PercentileBand is one quantile of portfolio value traced across every step.
type PercentileBand struct {
	P      float64
	Values []float64 // Values[t] for t in 0..horizon
}

// PercentileBands computes fan-chart bands: for every step, the requested
// quantiles of portfolio value across all iterations.
func PercentileBands(ens *SimulationEnsemble, percentiles []float64) ([]PercentileBand, error) {
	if ens == nil || ens.iterations == 0 {
		return nil, fmt.Errorf("%w: empty simulation ensemble", ErrInsufficientData)
	}
	bands := make([]PercentileBand, len(percentiles))
	for k, p := range percentiles {
		if !(p > 0 && p < 1) {
			return nil, fmt.Errorf("%w: percentile %v outside (0, 1)", ErrInvalidConfig, p)
		}
		bands[k] = PercentileBand{P: p, Values: make([]float64, ens.steps)}
	}

	for t := range ens.steps {
		column := ens.AtStep(t)
		sort.Float64s(column)
		for k := range bands {
			bands[k].Values[t] = formulas.Percentile(column, bands[k].P)
		}
	}
	return bands, nil
}
