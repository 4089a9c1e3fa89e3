package csm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NormaliseDistribution divides v by its sum in place when the sum is
// positive, and returns sum-1 (spec §4.I).
func NormaliseDistribution(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum > 0 {
		for i := range v {
			v[i] /= sum
		}
	}
	return sum - 1
}

// NormaliseDistributions normalises the S columns of the compact D x S
// transition matrix plus the trailing q0 segment of x, in place, and returns
// Σ(sum-1)^2, the normalisation penalty surfaced in the objective (spec
// §4.I).
func NormaliseDistributions(x []float64, d, s int) float64 {
	var penalty float64
	for l := 0; l < s; l++ {
		diff := NormaliseDistribution(x[l*d : l*d+d])
		penalty += diff * diff
	}
	diff := NormaliseDistribution(x[d*s : d*s+s])
	penalty += diff * diff
	return penalty
}

// reduceState sums a lifted-state distribution over all but the newest
// category, following the fastest-varying-at-0 flattening convention (spec
// §4.A, §4.H).
func reduceState(stateDistr []float64, d int) []float64 {
	out := make([]float64, d)
	for s, v := range stateDistr {
		out[s%d] += v
	}
	return out
}

// ExtrapolateSimple performs dense forward iteration of an already-expanded S x S
// transition matrix starting from q0, for `steps` periods, reducing each
// lifted state to the observed D-dimensional marginal (spec §4.I).
func ExtrapolateSimple(piExpanded *mat.Dense, q0 []float64, steps, d int) *mat.Dense {
	s := len(q0)
	out := mat.NewDense(d, steps, nil)
	cur := append([]float64(nil), q0...)
	for t := 0; t < steps; t++ {
		if t > 0 {
			next := make([]float64, s)
			for col := 0; col < s; col++ {
				if cur[col] == 0 {
					continue
				}
				for row := 0; row < s; row++ {
					next[row] += piExpanded.At(row, col) * cur[col]
				}
			}
			cur = next
		}
		marginal := reduceState(cur, d)
		for k := 0; k < d; k++ {
			out.Set(k, t, marginal[k])
		}
	}
	return out
}

// ExtrapolateAtTimes evaluates out-of-order output times relative to a fixed
// origin t0. Times before t0, or before the last cursor but at/after t0,
// reset or solve backward via the pseudo-inverse of the matching Pi power
// (spec §4.I).
func ExtrapolateAtTimes(piExpanded *mat.Dense, q0 []float64, t0 float64, outTimes []float64, d int) (*mat.Dense, error) {
	s := len(q0)
	cache := NewMatrixPowerCache(piExpanded)
	out := mat.NewDense(d, len(outTimes), nil)

	cursorTime := t0
	cursorState := append([]float64(nil), q0...)

	for i, tau := range outTimes {
		var state []float64
		switch {
		case tau < t0:
			n := int(t0 - tau)
			state = backwardSolve(cache, q0, n, s)
			cursorTime = tau
			cursorState = state
		case tau >= cursorTime:
			n := int(tau - cursorTime)
			if n == 0 {
				state = cursorState
			} else {
				state = forwardMultiply(cache.Power(n), cursorState)
			}
			cursorTime = tau
			cursorState = state
		default: // t0 <= tau < cursorTime: solve backward from the cursor
			n := int(cursorTime - tau)
			state = backwardSolve(cache, cursorState, n, s)
			cursorTime = tau
			cursorState = state
		}
		marginal := reduceState(cursorState, d)
		for k := 0; k < d; k++ {
			out.Set(k, i, marginal[k])
		}
	}
	return out, nil
}

func forwardMultiply(piPow *mat.Dense, v []float64) []float64 {
	s := len(v)
	out := make([]float64, s)
	for col := 0; col < s; col++ {
		if v[col] == 0 {
			continue
		}
		for row := 0; row < s; row++ {
			out[row] += piPow.At(row, col) * v[col]
		}
	}
	return out
}

// backwardSolve solves Pi^n * x = q0 for x via the pseudo-inverse of Pi^n
// (tolerance 1e-12), then renormalises x onto the simplex.
func backwardSolve(cache *MatrixPowerCache, q0 []float64, n, s int) []float64 {
	if n <= 0 {
		return append([]float64(nil), q0...)
	}
	piPow := cache.Power(n)
	pinv, err := PseudoInverseSVD(piPow, 1e-12)
	if err != nil {
		return append([]float64(nil), q0...)
	}
	x := make([]float64, s)
	for row := 0; row < s; row++ {
		var sum float64
		for col := 0; col < s; col++ {
			sum += pinv.At(row, col) * q0[col]
		}
		x[row] = sum
	}
	NormaliseDistribution(x)
	return x
}

// ExtrapolatePiecewise iterates forward through a sequence of expanded
// transition matrices, each applied for the corresponding number of periods
// in segmentLengths; the last matrix is reused once the sequence is
// exhausted (spec §4.I).
func ExtrapolatePiecewise(piSeq []*mat.Dense, q0 []float64, segmentLengths []int, d int) (*mat.Dense, error) {
	if len(piSeq) == 0 {
		return nil, fmt.Errorf("%w: empty transition matrix sequence", ErrInvalidArgument)
	}
	total := 0
	for _, n := range segmentLengths {
		total += n
	}
	s := len(q0)
	out := mat.NewDense(d, total+1, nil)
	cur := append([]float64(nil), q0...)
	marginal := reduceState(cur, d)
	for k := 0; k < d; k++ {
		out.Set(k, 0, marginal[k])
	}

	col := 1
	for segIdx, n := range segmentLengths {
		piIdx := segIdx
		if piIdx >= len(piSeq) {
			piIdx = len(piSeq) - 1
		}
		pi := piSeq[piIdx]
		for step := 0; step < n; step++ {
			next := make([]float64, s)
			for c := 0; c < s; c++ {
				if cur[c] == 0 {
					continue
				}
				for r := 0; r < s; r++ {
					next[r] += pi.At(r, c) * cur[c]
				}
			}
			cur = next
			marginal = reduceState(cur, d)
			for k := 0; k < d; k++ {
				out.Set(k, col, marginal[k])
			}
			col++
		}
	}
	return out, nil
}
