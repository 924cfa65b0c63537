package simulation

import "errors"

// Engine error taxonomy. Every error returned by this package wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrAllocationMismatch = errors.New("allocation mismatch")
	ErrInvalidConfidence  = errors.New("confidence level must be in (0, 1)")
	ErrFactorization      = errors.New("covariance factorization failed")
	ErrInvalidConfig      = errors.New("invalid simulation config")
	ErrSimulationTooLarge = errors.New("simulation too large")
)

// IsInputError reports whether err was caused by caller-supplied inputs
// (as opposed to an internal failure).
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInsufficientData,
		ErrInvalidPrice,
		ErrAllocationMismatch,
		ErrInvalidConfidence,
		ErrFactorization,
		ErrInvalidConfig,
		ErrSimulationTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
