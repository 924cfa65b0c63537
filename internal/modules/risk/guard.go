package risk

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultMemoryFraction is the share of available memory one run may use.
const DefaultMemoryFraction = 0.5

// MemoryGuard refuses runs whose price tensor and portfolio ensemble would
// not fit in a fraction of the host's available memory.
type MemoryGuard struct {
	fraction  float64
	available func() (uint64, error)
	log       zerolog.Logger
}

// NewMemoryGuard creates a guard. fraction outside (0, 1] selects DefaultMemoryFraction.
func NewMemoryGuard(fraction float64, log zerolog.Logger) *MemoryGuard {
	if !(fraction > 0 && fraction <= 1) {
		fraction = DefaultMemoryFraction
	}
	return &MemoryGuard{
		fraction:  fraction,
		available: availableMemory,
		log:       log.With().Str("component", "memory_guard").Logger(),
	}
}

func availableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// EstimateBytes is the float64 storage of a run: one value per asset, step and
// iteration for the tensor plus one per step and iteration for the ensemble.
func EstimateBytes(iterations, assets, steps int) float64 {
	return float64(iterations) * float64(steps) * float64(assets+1) * 8
}

// Check returns ErrInsufficientMemory when the run would exceed the budget.
// A failed memory reading lets the run through; the engine's cell limit still applies.
func (g *MemoryGuard) Check(iterations, assets, steps int) error {
	avail, err := g.available()
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to read available memory")
		return nil
	}

	need := EstimateBytes(iterations, assets, steps)
	budget := float64(avail) * g.fraction
	if need > budget {
		return fmt.Errorf("%w: run needs %s, budget is %s of %s available",
			ErrInsufficientMemory,
			formatBytes(need),
			formatBytes(budget),
			humanize.IBytes(avail))
	}

	g.log.Debug().
		Str("need", formatBytes(need)).
		Str("available", humanize.IBytes(avail)).
		Msg("Memory check passed")
	return nil
}

func formatBytes(b float64) string {
	if b >= 1<<60 {
		return fmt.Sprintf("%.3g B", b)
	}
	return humanize.IBytes(uint64(b))
}
