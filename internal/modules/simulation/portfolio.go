package simulation

import (
	"fmt"
	"math"
	"sort"
)

// weightTolerance bounds how far allocation weights may sum from 1.
const weightTolerance = 1e-9

// AllocationVector maps asset identifier to portfolio weight.
type AllocationVector map[string]float64

// EqualWeights gives every asset the same weight.
func EqualWeights(assets []string) AllocationVector {
	av := make(AllocationVector, len(assets))
	if len(assets) == 0 {
		return av
	}
	w := 1 / float64(len(assets))
	for _, a := range assets {
		av[a] = w
	}
	return av
}

// Assets returns the allocation's assets in sorted order.
func (av AllocationVector) Assets() []string {
	assets := make([]string, 0, len(av))
	for a := range av {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}

// Weights orders the allocation by assets and validates it: the asset sets
// must match exactly, weights must be finite and non-negative (unless
// allowShort) and sum to 1.
func (av AllocationVector) Weights(assets []string, allowShort bool) ([]float64, error) {
	if len(av) != len(assets) {
		return nil, fmt.Errorf("%w: allocation has %d assets, simulation has %d",
			ErrAllocationMismatch, len(av), len(assets))
	}

	weights := make([]float64, len(assets))
	var sum float64
	for i, asset := range assets {
		w, ok := av[asset]
		if !ok {
			return nil, fmt.Errorf("%w: no weight for %s", ErrAllocationMismatch, asset)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight for %s is %v", ErrAllocationMismatch, asset, w)
		}
		if w < 0 && !allowShort {
			return nil, fmt.Errorf("%w: negative weight %v for %s", ErrAllocationMismatch, w, asset)
		}
		weights[i] = w
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrAllocationMismatch, sum)
	}
	return weights, nil
}

// Aggregate combines simulated asset prices into long-only portfolio value paths.
func Aggregate(tensor *PriceTensor, alloc AllocationVector, initialValue float64) (*SimulationEnsemble, error) {
	if tensor == nil {
		return nil, fmt.Errorf("%w: no simulated prices", ErrInsufficientData)
	}
	weights, err := alloc.Weights(tensor.assets, false)
	if err != nil {
		return nil, err
	}
	return AggregateWeights(tensor, weights, initialValue)
}

// AggregateWeights is Aggregate with pre-validated weights in tensor asset order:
//
//	V[i,t] = initial · Σ_a w_a · S[i,a,t] / S[i,a,0]
func AggregateWeights(tensor *PriceTensor, weights []float64, initialValue float64) (*SimulationEnsemble, error) {
	if tensor == nil {
		return nil, fmt.Errorf("%w: no simulated prices", ErrInsufficientData)
	}
	if len(weights) != len(tensor.assets) {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrAllocationMismatch, len(weights), len(tensor.assets))
	}
	if !(initialValue > 0) || math.IsInf(initialValue, 0) {
		return nil, fmt.Errorf("%w: initial value must be positive, got %v", ErrInvalidConfig, initialValue)
	}

	ens := &SimulationEnsemble{
		iterations:   tensor.iterations,
		steps:        tensor.steps,
		initialValue: initialValue,
		values:       make([]float64, tensor.iterations*tensor.steps),
	}

	scale := make([]float64, len(weights))
	for i := range tensor.iterations {
		for a, w := range weights {
			scale[a] = w * initialValue / tensor.At(i, a, 0)
		}
		path := ens.values[i*ens.steps : (i+1)*ens.steps]
		for a := range weights {
			series := tensor.Series(i, a)
			for t, price := range series {
				path[t] += scale[a] * price
			}
		}
		// Σw = 1, so step 0 is the initial value up to rounding.
		path[0] = initialValue
	}
	return ens, nil
}
