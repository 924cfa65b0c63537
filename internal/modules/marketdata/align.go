package marketdata

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/alphapulse/internal/modules/simulation"
)

// AlignPrices joins per-symbol bars into one price matrix on the union of
// their trading dates. Gaps (a holiday on one exchange, a halted stock) are
// forward-filled from the previous close; rows before every symbol has its
// first observation are dropped. Column order follows symbols.
func AlignPrices(symbols []string, series map[string][]Bar) (simulation.PriceMatrix, error) {
	dateSet := make(map[int64]struct{})
	for _, sym := range symbols {
		bars := series[sym]
		if len(bars) == 0 {
			return simulation.PriceMatrix{}, fmt.Errorf("%w for %s", ErrNoData, sym)
		}
		for _, b := range bars {
			dateSet[truncateDay(b.Date).Unix()] = struct{}{}
		}
	}

	dates := make([]int64, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	columns := make([][]float64, len(symbols))
	for a, sym := range symbols {
		byDate := make(map[int64]float64, len(series[sym]))
		for _, b := range series[sym] {
			byDate[truncateDay(b.Date).Unix()] = b.AdjClose
		}

		col := make([]float64, len(dates))
		last := math.NaN()
		for i, d := range dates {
			if p, ok := byDate[d]; ok && p > 0 {
				last = p
			}
			col[i] = last
		}
		columns[a] = col
	}

	first := 0
	for first < len(dates) {
		complete := true
		for a := range columns {
			if math.IsNaN(columns[a][first]) {
				complete = false
				break
			}
		}
		if complete {
			break
		}
		first++
	}

	pm := simulation.PriceMatrix{
		Assets: append([]string(nil), symbols...),
	}
	for i := first; i < len(dates); i++ {
		row := make([]float64, len(symbols))
		for a := range columns {
			row[a] = columns[a][i]
		}
		pm.Dates = append(pm.Dates, time.Unix(dates[i], 0).UTC())
		pm.Prices = append(pm.Prices, row)
	}
	return pm, nil
}
