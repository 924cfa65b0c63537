package simulation

import (
	"slices"

	"github.com/aristath/alphapulse/pkg/formulas"
)

// ComputeLogReturns converts a price matrix into periodic log returns,
// r[t,a] = ln(price[t,a] / price[t-1,a]).
func ComputeLogReturns(pm PriceMatrix) (ReturnMatrix, error) {
	if err := pm.Validate(); err != nil {
		return ReturnMatrix{}, err
	}

	rows := len(pm.Prices) - 1
	returns := make([][]float64, rows)
	for t := range returns {
		returns[t] = make([]float64, len(pm.Assets))
	}

	column := make([]float64, len(pm.Prices))
	for a := range pm.Assets {
		for t, row := range pm.Prices {
			column[t] = row[a]
		}
		for t, r := range formulas.LogReturns(column) {
			returns[t][a] = r
		}
	}

	return ReturnMatrix{
		Dates:   slices.Clone(pm.Dates[1:]),
		Assets:  slices.Clone(pm.Assets),
		Returns: returns,
	}, nil
}
