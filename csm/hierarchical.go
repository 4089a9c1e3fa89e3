package csm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ToHierarchicalCompactForm factorises a compact D x S transition matrix,
// where D is itself a product of the given per-factor dimensions, into one
// compact transition matrix per factor, each governing that factor's own
// sub-process independently of the others. This is a comparison utility, not
// part of the fit (spec §1): it is never called from Estimate.
func ToHierarchicalCompactForm(piCompact *mat.Dense, dimensions []int, memory int) ([]*mat.Dense, error) {
	prod := 1
	for _, dd := range dimensions {
		prod *= dd
	}
	rows, cols := piCompact.Dims()
	if rows != prod {
		return nil, fmt.Errorf("%w: Pi has %d rows, want product of dimensions %d", ErrInvalidArgument, rows, prod)
	}
	wantCols := StateDim(uint(prod), uint(memory))
	if cols != wantCols {
		return nil, fmt.Errorf("%w: Pi has %d columns, want %d", ErrInvalidArgument, cols, wantCols)
	}

	out := make([]*mat.Dense, len(dimensions))
	for f, dimF := range dimensions {
		sF := StateDim(uint(dimF), uint(memory))
		factor := mat.NewDense(dimF, sF, nil)
		count := make([]float64, sF)
		for l := 0; l < cols; l++ {
			lifted := UnflattenIndex(l, prod, memory+1)
			liftedF := make([]int, memory+1)
			for j, v := range lifted {
				liftedF[j] = decomposeFactor(v, dimensions, f)
			}
			flatF := flattenWithBase(liftedF, dimF)
			for k := 0; k < rows; k++ {
				kF := decomposeFactor(k, dimensions, f)
				if kF < 0 {
					continue
				}
				factor.Set(kF, flatF, factor.At(kF, flatF)+piCompact.At(k, l))
			}
			count[flatF]++
		}
		for l := 0; l < sF; l++ {
			if count[l] == 0 {
				continue
			}
			col := mat.Col(nil, l, factor)
			NormaliseDistribution(col)
			factor.SetCol(l, col)
		}
		out[f] = factor
	}
	return out, nil
}

// decomposeFactor recovers the f-th factor's category from a joint category
// index over the product of dimensions, using the same fastest-varying-at-0
// convention as MultiIndex.
func decomposeFactor(joint int, dimensions []int, f int) int {
	for i := 0; i < f; i++ {
		joint /= dimensions[i]
	}
	return joint % dimensions[f]
}

func flattenWithBase(indices []int, base int) int {
	flat := 0
	for i := len(indices) - 1; i >= 0; i-- {
		flat = flat*base + indices[i]
	}
	return flat
}

// IncreaseMemoryLengthInTransitionMatrix lifts a compact D x S (memory M)
// transition matrix to an equivalent compact D x S*D (memory M+1) matrix,
// for comparing models fit at different memory lengths against one another
// (spec §1, supplemented from the original's csm_utils).
func IncreaseMemoryLengthInTransitionMatrix(low *mat.Dense) *mat.Dense {
	d, s := low.Dims()
	newCols := s * d
	high := mat.NewDense(d, newCols, nil)
	// The new (oldest) category sits at the added memory position, which is
	// the slowest-varying place value under the fastest-varying-at-0
	// convention (spec §4.A): lNew = lOld + extra*s, not lOld*d+extra.
	for lOld := 0; lOld < s; lOld++ {
		for extra := 0; extra < d; extra++ {
			lNew := lOld + extra*s
			for k := 0; k < d; k++ {
				high.Set(k, lNew, low.At(k, lOld))
			}
		}
	}
	return high
}
