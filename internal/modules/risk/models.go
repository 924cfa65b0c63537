// Package risk runs portfolio simulations on downloaded or supplied prices and
// turns engine results into stored, JSON-ready reports.
package risk

import (
	"errors"
	"time"
)

var (
	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("simulation run not found")
	// ErrInvalidRequest is returned for malformed simulation requests.
	ErrInvalidRequest = errors.New("invalid simulation request")
	// ErrInsufficientMemory is returned when a run would not fit in the memory budget.
	ErrInsufficientMemory = errors.New("insufficient memory for simulation")
)

// Outcome labels for the sign of VaR.
const (
	OutcomeRiskWarning = "risk_warning" // VaR > 0: the tail loses money
	OutcomeSafeHarbor  = "safe_harbor"  // VaR <= 0: even the tail gains
)

// SimulationRequest describes one simulation. Either Symbols (downloaded over
// Period) or Prices (supplied inline) selects the market data; both empty
// means the default universe. Nil overrides fall back to the service defaults.
type SimulationRequest struct {
	Symbols           []string           `json:"symbols,omitempty"`
	Prices            *PriceInput        `json:"prices,omitempty"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	Period            string             `json:"period,omitempty"`
	Iterations        *int               `json:"iterations,omitempty"`
	HorizonDays       *int               `json:"horizon_days,omitempty"`
	Confidence        *float64           `json:"confidence,omitempty"`
	InitialInvestment *float64           `json:"initial_investment,omitempty"`
	Seed              *uint64            `json:"seed,omitempty"`
	SamplePaths       *int               `json:"sample_paths,omitempty"`
}

// PriceInput is an inline price history. Dates are YYYY-MM-DD and
// Prices[row][asset] follows Assets.
type PriceInput struct {
	Dates  []string    `json:"dates"`
	Assets []string    `json:"assets"`
	Prices [][]float64 `json:"prices"`
}

// RunConfig echoes the effective engine settings of a run.
type RunConfig struct {
	Iterations        int     `json:"iterations"`
	HorizonDays       int     `json:"horizon_days"`
	Confidence        float64 `json:"confidence"`
	InitialInvestment float64 `json:"initial_investment"`
	PeriodsPerYear    int     `json:"periods_per_year"`
}

// PercentilePoint is a terminal portfolio value at quantile P.
type PercentilePoint struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// MetricsReport holds the money-rounded risk metrics of a run.
type MetricsReport struct {
	VaR                  float64           `json:"var"`
	VaRPct               float64           `json:"var_pct"`
	TailValue            float64           `json:"tail_value"`
	ExpectedShortfall    float64           `json:"expected_shortfall"`
	ParametricVaR        float64           `json:"parametric_var"`
	WorstCase            float64           `json:"worst_case"` // 5th percentile terminal value
	AnnualizedVolatility float64           `json:"annualized_volatility"`
	MeanTerminal         float64           `json:"mean_terminal"`
	MedianTerminal       float64           `json:"median_terminal"`
	ProbabilityOfLoss    float64           `json:"probability_of_loss"`
	MaxDrawdownP95       float64           `json:"max_drawdown_p95"`
	Percentiles          []PercentilePoint `json:"percentiles"`
}

// AssetReport is the estimated model of one asset.
type AssetReport struct {
	Symbol       string  `json:"symbol"`
	Weight       float64 `json:"weight"`
	InitialPrice float64 `json:"initial_price"`
	Drift        float64 `json:"drift"`
	Volatility   float64 `json:"volatility"`
}

// BandReport is the portfolio value at quantile P for every step.
type BandReport struct {
	P      float64   `json:"p"`
	Values []float64 `json:"values"`
}

// PathReport is one representative simulated portfolio path.
type PathReport struct {
	Iteration  int       `json:"iteration"`
	Percentile float64   `json:"percentile"`
	Terminal   float64   `json:"terminal"`
	Values     []float64 `json:"values"`
}

// Report is the stored result of one simulation run.
type Report struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Seed         uint64        `json:"seed,string"`
	Period       string        `json:"period,omitempty"`
	From         *time.Time    `json:"from,omitempty"`
	To           *time.Time    `json:"to,omitempty"`
	Observations int           `json:"observations"`
	Config       RunConfig     `json:"config"`
	Outcome      string        `json:"outcome"`
	Metrics      MetricsReport `json:"metrics"`
	Assets       []AssetReport `json:"assets"`
	Correlation  [][]float64   `json:"correlation"`
	PSDCorrected bool          `json:"psd_corrected"`
	Bands        []BandReport  `json:"bands"`
	SamplePaths  []PathReport  `json:"sample_paths"`
	DurationMs   int64         `json:"duration_ms"`
}

// CorrelationReport summarizes an estimated market model without simulating it.
type CorrelationReport struct {
	Period       string        `json:"period"`
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	Observations int           `json:"observations"`
	Assets       []AssetReport `json:"assets"`
	Correlation  [][]float64   `json:"correlation"`
	PSDCorrected bool          `json:"psd_corrected"`
}

// PricePoint is one stored adjusted close.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// PriceHistory is the stored history of one symbol over a period.
type PriceHistory struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Count  int          `json:"count"`
	Prices []PricePoint `json:"prices"`
}
