package simulation

import (
	"math"
	"slices"
	"sort"
)

// SamplePath is one simulated portfolio path picked for plotting.
type SamplePath struct {
	Iteration  int
	Percentile float64 // terminal-value rank in [0, 1]
	Terminal   float64
	Values     []float64
}

// SamplePaths picks k paths spread evenly over the terminal-value ranking, so a
// chart of a hundred lines still shows the full spread of ten thousand. The
// worst and best paths are always included, and the median path too when k >= 3.
func SamplePaths(ens *SimulationEnsemble, k int) []SamplePath {
	if ens == nil || ens.iterations == 0 || k <= 0 {
		return nil
	}
	n := ens.iterations
	k = min(k, n)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	terminal := ens.Terminal()
	sort.SliceStable(order, func(a, b int) bool {
		return terminal[order[a]] < terminal[order[b]]
	})

	ranks := pickRanks(n, k)
	paths := make([]SamplePath, 0, len(ranks))
	for _, rank := range ranks {
		i := order[rank]
		var pct float64
		if n > 1 {
			pct = float64(rank) / float64(n-1)
		}
		paths = append(paths, SamplePath{
			Iteration:  i,
			Percentile: pct,
			Terminal:   terminal[i],
			Values:     slices.Clone(ens.Path(i)),
		})
	}
	return paths
}

// pickRanks returns k distinct ranks in [0, n) spaced evenly, k <= n.
func pickRanks(n, k int) []int {
	if k == 1 {
		return []int{(n - 1) / 2}
	}
	ranks := make([]int, k)
	step := float64(n-1) / float64(k-1)
	for j := range ranks {
		ranks[j] = int(math.Round(float64(j) * step))
	}
	if k >= 3 {
		median := (n - 1) / 2
		nearest := 1
		for j := 2; j < k-1; j++ {
			if abs(ranks[j]-median) < abs(ranks[nearest]-median) {
				nearest = j
			}
		}
		ranks[nearest] = median
	}
	return ranks
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
