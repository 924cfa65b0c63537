package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func assertFactorReproduces(t *testing.T, s *CorrelatedSampler, want *mat.SymDense) {
	t.Helper()
	l := s.Factor()
	var llt mat.Dense
	llt.Mul(l, l.T())
	n := want.SymmetricDim()
	for i := range n {
		for j := range n {
			assert.InDelta(t, want.At(i, j), llt.At(i, j), 1e-12, "L·Lᵗ at (%d, %d)", i, j)
		}
	}
}

func TestNewCorrelatedSampler_Cholesky(t *testing.T) {
	corr := mat.NewSymDense(3, []float64{
		1, 0.3, -0.2,
		0.3, 1, 0.5,
		-0.2, 0.5, 1,
	})

	s, err := NewCorrelatedSampler(corr, 42)
	require.NoError(t, err)

	assert.False(t, s.UsedEigenFallback())
	assert.Equal(t, 3, s.Dim())
	assert.Equal(t, uint64(42), s.Seed())
	assertFactorReproduces(t, s, corr)
}

func TestNewCorrelatedSampler_EigenFallbackForPerfectCorrelation(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 1, 1, 1})

	s, err := NewCorrelatedSampler(corr, 1)
	require.NoError(t, err)

	assert.True(t, s.UsedEigenFallback())
	assertFactorReproduces(t, s, corr)

	shocks := make([]float64, 2)
	stream := s.Stream(0)
	for range 100 {
		stream.Next(shocks)
		assert.InDelta(t, shocks[0], shocks[1], 1e-12)
	}
}

func TestNewCorrelatedSampler_Errors(t *testing.T) {
	tests := []struct {
		name string
		cov  *mat.SymDense
	}{
		{"nil", nil},
		{"not PSD", mat.NewSymDense(2, []float64{1, 2, 2, 1})},
		{"NaN", mat.NewSymDense(2, []float64{1, math.NaN(), math.NaN(), 1})},
		{"Inf", mat.NewSymDense(1, []float64{math.Inf(1)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCorrelatedSampler(tt.cov, 1)
			assert.ErrorIs(t, err, ErrFactorization)
		})
	}
}

func TestShockStream_Reproducible(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 0.4, 0.4, 1})
	a, err := NewCorrelatedSampler(corr, 42)
	require.NoError(t, err)
	b, err := NewCorrelatedSampler(corr, 42)
	require.NoError(t, err)
	c, err := NewCorrelatedSampler(corr, 43)
	require.NoError(t, err)

	draw := func(s *CorrelatedSampler, index int) []float64 {
		out := make([]float64, 0, 20)
		buf := make([]float64, 2)
		stream := s.Stream(index)
		for range 10 {
			stream.Next(buf)
			out = append(out, buf...)
		}
		return out
	}

	assert.Equal(t, draw(a, 7), draw(b, 7), "same seed and index")
	assert.Equal(t, draw(a, 7), draw(a, 7), "streams restart from the same state")
	assert.NotEqual(t, draw(a, 7), draw(a, 8), "different index")
	assert.NotEqual(t, draw(a, 7), draw(c, 7), "different seed")
}

func TestShockStream_EmpiricalCorrelationConverges(t *testing.T) {
	corr := mat.NewSymDense(3, []float64{
		1, 0.6, -0.3,
		0.6, 1, 0.1,
		-0.3, 0.1, 1,
	})
	s, err := NewCorrelatedSampler(corr, 2024)
	require.NoError(t, err)

	const draws = 50000
	series := [3][]float64{}
	for k := range series {
		series[k] = make([]float64, draws)
	}
	buf := make([]float64, 3)
	for i := range draws {
		s.Stream(i).Next(buf)
		for k := range series {
			series[k][i] = buf[k]
		}
	}

	for i := range 3 {
		for j := i + 1; j < 3; j++ {
			assert.InDelta(t, corr.At(i, j), stat.Correlation(series[i], series[j], nil), 0.02,
				"empirical correlation (%d, %d)", i, j)
		}
	}
}
