package simulation

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// CorrelatedSampler turns independent standard normals into jointly correlated
// shocks using a factor L with L·Lᵗ equal to the input matrix.
//
// The sampler itself is immutable. Randomness lives in ShockStreams, one per
// iteration, each seeded from (seed, index) so that a run does not depend on
// how iterations are scheduled across workers.
type CorrelatedSampler struct {
	dim       int
	factor    []float64 // row-major dim×dim
	lower     bool      // factor is lower triangular (Cholesky)
	seed      uint64
	usedEigen bool
}

// NewCorrelatedSampler factorizes cov. Cholesky is tried first; semi-definite
// matrices (for example perfectly correlated assets) fall back to an eigen factor.
func NewCorrelatedSampler(cov *mat.SymDense, seed uint64) (*CorrelatedSampler, error) {
	if cov == nil || cov.SymmetricDim() == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrFactorization)
	}
	n := cov.SymmetricDim()
	for i := range n {
		for j := i; j < n; j++ {
			if v := cov.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite entry at (%d, %d)", ErrFactorization, i, j)
			}
		}
	}

	s := &CorrelatedSampler{dim: n, factor: make([]float64, n*n), seed: seed}

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var l mat.TriDense
		chol.LTo(&l)
		for i := range n {
			for j := 0; j <= i; j++ {
				s.factor[i*n+j] = l.At(i, j)
			}
		}
		s.lower = true
		return s, nil
	}

	values, vectors, err := eigenDecompose(cov)
	if err != nil {
		return nil, err
	}
	if values[0] < -psdTolerance*spectralScale(values) {
		return nil, fmt.Errorf("%w: matrix is not positive semi-definite (min eigenvalue %g)", ErrFactorization, values[0])
	}
	// Eigenvalues within rounding noise of zero contribute nothing.
	cutoff := psdTolerance * spectralScale(values)
	for k, v := range values {
		var root float64
		if v > cutoff {
			root = math.Sqrt(v)
		}
		for i := range n {
			s.factor[i*n+k] = vectors.At(i, k) * root
		}
	}
	s.usedEigen = true
	return s, nil
}

// Dim returns the number of correlated variables per draw.
func (s *CorrelatedSampler) Dim() int { return s.dim }

// Seed returns the root seed all streams derive from.
func (s *CorrelatedSampler) Seed() uint64 { return s.seed }

// UsedEigenFallback reports whether Cholesky failed and the eigen factor is in use.
func (s *CorrelatedSampler) UsedEigenFallback() bool { return s.usedEigen }

// Factor returns a copy of L.
func (s *CorrelatedSampler) Factor() *mat.Dense {
	data := make([]float64, len(s.factor))
	copy(data, s.factor)
	return mat.NewDense(s.dim, s.dim, data)
}

// Stream returns the shock stream for one iteration. Streams for different
// indexes are statistically independent; the same index always yields the
// same sequence.
func (s *CorrelatedSampler) Stream(index int) *ShockStream {
	return &ShockStream{
		sampler: s,
		rng:     rand.New(rand.NewChaCha8(streamKey(s.seed, uint64(index)))),
		z:       make([]float64, s.dim),
	}
}

func streamKey(seed, index uint64) [32]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], index)
	return sha256.Sum256(buf[:])
}

// ShockStream yields successive correlated shock vectors. Not safe for
// concurrent use; each worker owns the streams it creates.
type ShockStream struct {
	sampler *CorrelatedSampler
	rng     *rand.Rand
	z       []float64
}

// Next writes L·Z into dst, where Z is a fresh vector of independent standard
// normals. dst must have length Dim().
func (st *ShockStream) Next(dst []float64) {
	n := st.sampler.dim
	for i := range st.z {
		st.z[i] = st.rng.NormFloat64()
	}
	for i := range n {
		row := st.sampler.factor[i*n : (i+1)*n]
		cols := n
		if st.sampler.lower {
			cols = i + 1
		}
		var sum float64
		for j := 0; j < cols; j++ {
			sum += row[j] * st.z[j]
		}
		dst[i] = sum
	}
}
