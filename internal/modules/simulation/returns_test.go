package simulation

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/alphapulse/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLogReturns(t *testing.T) {
	pm := PriceMatrix{
		Dates:  []time.Time{testStart, testStart.AddDate(0, 0, 1), testStart.AddDate(0, 0, 2)},
		Assets: []string{"AAPL", "KO"},
		Prices: [][]float64{
			{100, 50},
			{110, 50},
			{99, 55},
		},
	}

	rm, err := ComputeLogReturns(pm)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "KO"}, rm.Assets)
	assert.Equal(t, pm.Dates[1:], rm.Dates)
	require.Len(t, rm.Returns, 2)
	assert.InDelta(t, math.Log(1.1), rm.Returns[0][0], 1e-15)
	assert.Equal(t, 0.0, rm.Returns[0][1])
	assert.InDelta(t, math.Log(0.9), rm.Returns[1][0], 1e-15)
	assert.InDelta(t, math.Log(1.1), rm.Returns[1][1], 1e-15)

	assert.Equal(t, []float64{110, 50}, pm.Prices[1], "input must not be mutated")
}

func TestComputeLogReturns_MatchesFormulaColumns(t *testing.T) {
	assets := []string{"AAPL", "MSFT", "KO"}
	pm := syntheticPrices(assets, 60, 3)

	rm, err := ComputeLogReturns(pm)
	require.NoError(t, err)

	for a, sym := range assets {
		prices := make([]float64, len(pm.Prices))
		for i, row := range pm.Prices {
			prices[i] = row[a]
		}
		assert.Equal(t, formulas.LogReturns(prices), rm.Column(a), sym)
	}
}

func TestComputeLogReturns_Errors(t *testing.T) {
	day := func(n int) time.Time { return testStart.AddDate(0, 0, n) }

	tests := []struct {
		name    string
		pm      PriceMatrix
		wantErr error
	}{
		{
			name:    "single row",
			pm:      PriceMatrix{Dates: []time.Time{day(0)}, Assets: []string{"A"}, Prices: [][]float64{{1}}},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "no assets",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Prices: [][]float64{{}, {}}},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "zero price",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Assets: []string{"A"}, Prices: [][]float64{{1}, {0}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "negative price",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Assets: []string{"A"}, Prices: [][]float64{{-1}, {2}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "NaN price",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Assets: []string{"A"}, Prices: [][]float64{{1}, {math.NaN()}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "missing asset column",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Assets: []string{"A", "B"}, Prices: [][]float64{{1, 2}, {1}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "dates not increasing",
			pm:      PriceMatrix{Dates: []time.Time{day(1), day(1)}, Assets: []string{"A"}, Prices: [][]float64{{1}, {2}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "duplicate asset",
			pm:      PriceMatrix{Dates: []time.Time{day(0), day(1)}, Assets: []string{"A", "A"}, Prices: [][]float64{{1, 1}, {2, 2}}},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "dates do not match rows",
			pm:      PriceMatrix{Dates: []time.Time{day(0)}, Assets: []string{"A"}, Prices: [][]float64{{1}, {2}}},
			wantErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLogReturns(tt.pm)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestPriceMatrix_LastPrices(t *testing.T) {
	pm := syntheticPrices([]string{"A", "B"}, 5, 1)

	last := pm.LastPrices()
	assert.Equal(t, pm.Prices[4], last)

	last[0] = -1
	assert.NotEqual(t, -1.0, pm.Prices[4][0], "LastPrices must return a copy")
}
