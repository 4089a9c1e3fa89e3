package csm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Epsilon is the global floor on probability entries: all parameter values
// live in [Epsilon, 1].
const Epsilon = 1e-14

// StateDim returns S = D^(M+1), the dimension of the lifted state space.
func StateDim(d, m uint) int {
	return intPow(int(d), int(m+1))
}

// Memory recovers M = log_D(S) - 1. Fails with ErrInvalidArgument if S is not
// an exact power of D.
func Memory(s, d int) (int, error) {
	if d < 2 {
		return 0, fmt.Errorf("%w: dimension D=%d must be >= 2", ErrInvalidArgument, d)
	}
	m := 0
	p := d
	for p < s {
		p *= d
		m++
	}
	if p != s {
		return 0, fmt.Errorf("%w: state dim %d is not a power of D=%d", ErrInvalidArgument, s, d)
	}
	return m, nil
}

// NbrPiCoeffs returns the number of entries in the compact transition matrix,
// D * S.
func NbrPiCoeffs(d, m uint) int {
	return int(d) * StateDim(d, m)
}

// Dof returns the degrees of freedom of the parameter vector:
// S*(D-1) + S - 1.
func Dof(d, m uint) int {
	s := StateDim(d, m)
	return s*(int(d)-1) + s - 1
}

// ArgDim returns the length of the flattened parameter vector: (D+1)*S.
func ArgDim(d, m uint) int {
	return (int(d) + 1) * StateDim(d, m)
}

func intPow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

// ExpandTransitionMatrix builds the S x S expanded block-shift matrix from the
// D x S compact matrix. For source column l, let base = (l mod (S/D)) * D;
// the expanded column l is zero except at rows [base, base+D), where it
// equals compact[:, l]. When M == 0 (S == D) the expanded matrix equals the
// compact matrix.
func ExpandTransitionMatrix(compact *mat.Dense, d, m uint) (*mat.Dense, error) {
	dim := int(d)
	s := StateDim(d, m)
	cr, cc := compact.Dims()
	if cr != dim || cc != s {
		return nil, fmt.Errorf("%w: compact matrix has shape %dx%d, want %dx%d", ErrInvalidArgument, cr, cc, dim, s)
	}
	expanded := mat.NewDense(s, s, nil)
	group := s / dim
	for l := 0; l < s; l++ {
		base := (l % group) * dim
		for k := 0; k < dim; k++ {
			expanded.Set(base+k, l, compact.At(k, l))
		}
	}
	return expanded, nil
}

// CalcSteadyState returns the Perron eigenvector of the expanded transition
// matrix normalised to sum to 1. It is a standalone helper, not part of the
// fit itself.
func CalcSteadyState(expanded *mat.Dense) ([]float64, error) {
	n, _ := expanded.Dims()
	var eig mat.Eigen
	if ok := eig.Factorize(expanded, mat.EigenRight); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrSingular)
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)
	bestIdx := 0
	bestDiff := math.Abs(real(values[0]) - 1)
	for i := 1; i < len(values); i++ {
		diff := math.Abs(real(values[i]) - 1)
		if diff < bestDiff {
			bestDiff = diff
			bestIdx = i
		}
	}
	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		v := real(vectors.At(i, bestIdx))
		out[i] = v
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: degenerate steady state", ErrSingular)
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}
