package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/alphapulse/internal/modules/simulation"
	"github.com/aristath/alphapulse/pkg/formulas"
)

// Report precision: money to cents, ratios and model parameters to 6 places.
const (
	moneyPlaces = 2
	ratioPlaces = 6
)

// worstCasePercentile is the terminal quantile reported as the worst case.
const worstCasePercentile = 0.05

func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(moneyPlaces).InexactFloat64()
}

func ratio(v float64) float64 {
	return decimal.NewFromFloat(v).Round(ratioPlaces).InexactFloat64()
}

func moneySlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = money(v)
	}
	return out
}

// outcome classifies a VaR figure.
func outcome(v float64) string {
	if v > 0 {
		return OutcomeRiskWarning
	}
	return OutcomeSafeHarbor
}

// varPct expresses VaR as a percentage of the initial value with decimal
// arithmetic so reports do not show binary float noise.
func varPct(v, initial float64) float64 {
	if initial == 0 {
		return 0
	}
	return decimal.NewFromFloat(v).
		Div(decimal.NewFromFloat(initial)).
		Mul(decimal.NewFromInt(100)).
		Round(moneyPlaces).
		InexactFloat64()
}

// buildReport converts an engine result into its stored form.
func buildReport(id string, createdAt time.Time, cfg simulation.Config, pm *simulation.PriceMatrix, period string, weights []float64, res *simulation.Result) *Report {
	m := res.Metrics

	report := &Report{
		ID:           id,
		CreatedAt:    createdAt.UTC(),
		Seed:         res.Seed,
		Period:       period,
		Observations: res.Model.Observations,
		Config: RunConfig{
			Iterations:        cfg.Iterations,
			HorizonDays:       cfg.HorizonDays,
			Confidence:        cfg.ConfidenceLevel,
			InitialInvestment: money(cfg.InitialInvestment),
			PeriodsPerYear:    cfg.PeriodsPerYear,
		},
		Outcome: outcome(m.VaR),
		Metrics: MetricsReport{
			VaR:                  money(m.VaR),
			VaRPct:               varPct(m.VaR, m.InitialValue),
			TailValue:            money(m.TailValue),
			ExpectedShortfall:    money(m.ExpectedShortfall),
			ParametricVaR:        money(m.ParametricVaR),
			WorstCase:            money(formulas.PercentileOf(res.Ensemble.Terminal(), worstCasePercentile)),
			AnnualizedVolatility: ratio(m.AnnualizedVolatility),
			MeanTerminal:         money(m.MeanTerminal),
			MedianTerminal:       money(m.MedianTerminal),
			ProbabilityOfLoss:    ratio(m.ProbabilityOfLoss),
			MaxDrawdownP95:       ratio(m.MaxDrawdownP95),
			Percentiles:          make([]PercentilePoint, len(m.Percentiles)),
		},
		Assets:       assetReports(res.Model, weights),
		Correlation:  roundMatrix(res.Correlation),
		PSDCorrected: res.PSDCorrected,
		Bands:        make([]BandReport, len(res.Bands)),
		SamplePaths:  make([]PathReport, len(res.SamplePaths)),
	}

	if pm != nil && len(pm.Dates) > 0 {
		from, to := pm.Dates[0], pm.Dates[len(pm.Dates)-1]
		report.From, report.To = &from, &to
	}

	for i, p := range m.Percentiles {
		report.Metrics.Percentiles[i] = PercentilePoint{P: p.P, Value: money(p.Value)}
	}
	for i, b := range res.Bands {
		report.Bands[i] = BandReport{P: b.P, Values: moneySlice(b.Values)}
	}
	for i, sp := range res.SamplePaths {
		report.SamplePaths[i] = PathReport{
			Iteration:  sp.Iteration,
			Percentile: ratio(sp.Percentile),
			Terminal:   money(sp.Terminal),
			Values:     moneySlice(sp.Values),
		}
	}
	return report
}

// assetReports lists per-asset model parameters. weights may be nil.
func assetReports(model *simulation.MarketModel, weights []float64) []AssetReport {
	out := make([]AssetReport, len(model.Assets))
	for i, sym := range model.Assets {
		out[i] = AssetReport{
			Symbol:       sym,
			InitialPrice: money(model.InitialPrices[i]),
			Drift:        ratio(model.Drift[i]),
			Volatility:   ratio(model.Volatility[i]),
		}
		if weights != nil {
			out[i].Weight = ratio(weights[i])
		}
	}
	return out
}

func roundMatrix(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = ratio(v)
		}
	}
	return out
}
