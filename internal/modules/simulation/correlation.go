package simulation

import (
	"fmt"
	"math"
	"slices"

	"github.com/aristath/alphapulse/pkg/formulas"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// psdTolerance is the relative size of a negative eigenvalue still treated as
// rounding noise rather than a real PSD violation.
const psdTolerance = 1e-12

// EstimateModel derives annualized drift, volatility, covariance and correlation
// from periodic log returns. initialPrices are the starting prices for the
// simulated paths, usually PriceMatrix.LastPrices().
func EstimateModel(returns ReturnMatrix, initialPrices []float64, periodsPerYear int) (*MarketModel, error) {
	n := len(returns.Assets)
	rows := len(returns.Returns)
	if n == 0 {
		return nil, fmt.Errorf("%w: return matrix has no assets", ErrInsufficientData)
	}
	if rows < 2 {
		return nil, fmt.Errorf("%w: need at least 2 return observations for a sample covariance, got %d",
			ErrInsufficientData, rows)
	}
	if periodsPerYear <= 0 {
		return nil, fmt.Errorf("%w: periods per year must be positive, got %d", ErrInvalidConfig, periodsPerYear)
	}
	if err := validateInitialPrices(returns.Assets, initialPrices); err != nil {
		return nil, err
	}

	data := mat.NewDense(rows, n, nil)
	for t, row := range returns.Returns {
		if len(row) != n {
			return nil, fmt.Errorf("%w: return row %d has %d values for %d assets", ErrInvalidPrice, t, len(row), n)
		}
		for a, r := range row {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, fmt.Errorf("%w: non-finite return for %s at row %d", ErrInvalidPrice, returns.Assets[a], t)
			}
		}
		data.SetRow(t, row)
	}

	periods := float64(periodsPerYear)
	drift := make([]float64, n)
	vol := make([]float64, n)
	for a := range n {
		mean, sd := stat.MeanStdDev(returns.Column(a), nil)
		drift[a] = mean * periods
		vol[a] = formulas.AnnualizeVolatility(sd, periods)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(periods, cov)

	return assembleModel(returns.Assets, initialPrices, drift, vol, cov, periodsPerYear, rows)
}

// ModelParams describes a market model from externally supplied per-period
// statistics instead of a price history.
type ModelParams struct {
	Assets         []string
	InitialPrices  []float64
	MeanReturns    []float64   // per-period mean log return
	Volatilities   []float64   // per-period standard deviation of log returns
	Correlation    [][]float64 // symmetric, unit diagonal
	PeriodsPerYear int
}

// NewMarketModel annualizes the given per-period statistics and builds the
// covariance as diag(σ)·R·diag(σ).
func NewMarketModel(p ModelParams) (*MarketModel, error) {
	n := len(p.Assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: model has no assets", ErrInsufficientData)
	}
	if p.PeriodsPerYear <= 0 {
		return nil, fmt.Errorf("%w: periods per year must be positive, got %d", ErrInvalidConfig, p.PeriodsPerYear)
	}
	if len(p.MeanReturns) != n || len(p.Volatilities) != n || len(p.Correlation) != n {
		return nil, fmt.Errorf("%w: model parameters do not cover %d assets", ErrInsufficientData, n)
	}
	if err := validateInitialPrices(p.Assets, p.InitialPrices); err != nil {
		return nil, err
	}

	for i, row := range p.Correlation {
		if len(row) != n {
			return nil, fmt.Errorf("%w: correlation row %d has %d entries", ErrFactorization, i, len(row))
		}
		if row[i] != 1 {
			return nil, fmt.Errorf("%w: correlation diagonal at %d is %v", ErrFactorization, i, row[i])
		}
		for j, rho := range row {
			if !(rho >= -1 && rho <= 1) {
				return nil, fmt.Errorf("%w: correlation[%d][%d] = %v outside [-1, 1]", ErrFactorization, i, j, rho)
			}
			if rho != p.Correlation[j][i] {
				return nil, fmt.Errorf("%w: correlation not symmetric at (%d, %d)", ErrFactorization, i, j)
			}
		}
	}

	periods := float64(p.PeriodsPerYear)
	drift := make([]float64, n)
	vol := make([]float64, n)
	for a := range n {
		if !(p.Volatilities[a] >= 0) || math.IsInf(p.Volatilities[a], 0) || math.IsNaN(p.MeanReturns[a]) {
			return nil, fmt.Errorf("%w: invalid statistics for %s", ErrInvalidConfig, p.Assets[a])
		}
		drift[a] = p.MeanReturns[a] * periods
		vol[a] = formulas.AnnualizeVolatility(p.Volatilities[a], periods)
	}

	cov := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, vol[i]*vol[j]*p.Correlation[i][j])
		}
	}

	return assembleModel(p.Assets, p.InitialPrices, drift, vol, cov, p.PeriodsPerYear, 0)
}

func assembleModel(
	assets []string,
	initialPrices, drift, vol []float64,
	cov *mat.SymDense,
	periodsPerYear, observations int,
) (*MarketModel, error) {
	psd, corrected, err := nearestPSD(cov)
	if err != nil {
		return nil, err
	}
	if corrected {
		// Keep σ consistent with the clipped diagonal.
		for a := range vol {
			vol[a] = math.Sqrt(psd.At(a, a))
		}
	}

	corr := correlationFromCovariance(psd)
	// Clamping can leave tiny negative eigenvalues in the correlation matrix too.
	corr, corrCorrected, err := nearestPSD(corr)
	if err != nil {
		return nil, err
	}
	if corrCorrected {
		corr = correlationFromCovariance(corr)
	}

	return &MarketModel{
		Assets:         slices.Clone(assets),
		InitialPrices:  slices.Clone(initialPrices),
		Drift:          drift,
		Volatility:     vol,
		Covariance:     psd,
		Correlation:    corr,
		PeriodsPerYear: periodsPerYear,
		Observations:   observations,
		PSDCorrected:   corrected || corrCorrected,
	}, nil
}

func validateInitialPrices(assets []string, prices []float64) error {
	if len(prices) != len(assets) {
		return fmt.Errorf("%w: %d initial prices for %d assets", ErrInvalidPrice, len(prices), len(assets))
	}
	for a, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: initial price for %s is %v", ErrInvalidPrice, assets[a], p)
		}
	}
	return nil
}

// nearestPSD returns a copy of s with negative eigenvalues clipped to zero and
// reports whether clipping was needed.
func nearestPSD(s *mat.SymDense) (*mat.SymDense, bool, error) {
	n := s.SymmetricDim()
	if n == 0 {
		return nil, false, fmt.Errorf("%w: empty matrix", ErrFactorization)
	}
	for i := range n {
		for j := i; j < n; j++ {
			if v := s.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false, fmt.Errorf("%w: non-finite entry at (%d, %d)", ErrFactorization, i, j)
			}
		}
	}

	values, vectors, err := eigenDecompose(s)
	if err != nil {
		return nil, false, err
	}

	if values[0] >= -psdTolerance*spectralScale(values) {
		out := mat.NewSymDense(n, nil)
		out.CopySym(s)
		return out, false, nil
	}

	clipped := make([]float64, n)
	for k, v := range values {
		clipped[k] = math.Max(v, 0)
	}
	out := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			var sum float64
			for k := range n {
				sum += vectors.At(i, k) * clipped[k] * vectors.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out, true, nil
}

// eigenDecompose returns eigenvalues in ascending order and the matching
// eigenvectors as columns.
func eigenDecompose(s *mat.SymDense) ([]float64, *mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, nil, fmt.Errorf("%w: eigen decomposition did not converge", ErrFactorization)
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	return eig.Values(nil), &vectors, nil
}

func spectralScale(values []float64) float64 {
	var scale float64
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	return scale
}

// correlationFromCovariance normalizes a covariance matrix to unit diagonal.
// Zero-variance assets get zero correlation with everything else.
func correlationFromCovariance(cov *mat.SymDense) *mat.SymDense {
	n := cov.SymmetricDim()
	sd := make([]float64, n)
	for i := range n {
		sd[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
	}

	corr := mat.NewSymDense(n, nil)
	for i := range n {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			var rho float64
			if sd[i] > 0 && sd[j] > 0 {
				rho = cov.At(i, j) / (sd[i] * sd[j])
				rho = math.Max(-1, math.Min(1, rho))
			}
			corr.SetSym(i, j, rho)
		}
	}
	return corr
}
