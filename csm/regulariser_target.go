package csm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TargetRegulariser penalises the L2 distance of Pi and q0 from a reference
// (spec §4.G). PiTarget is the compact D x S matrix; Q0Target has length S.
type TargetRegulariser[S Scalar[S]] struct {
	PiTarget *mat.Dense
	Q0Target []float64
	WeightPi float64
	WeightQ0 float64
}

// CheckCompatibility validates the reference shapes against the model's
// dimensions, raising ErrInvalidArgument on mismatch.
func (r TargetRegulariser[S]) CheckCompatibility(d, s int) error {
	rows, cols := r.PiTarget.Dims()
	if rows != d || cols != s {
		return fmt.Errorf("%w: target Pi has shape %dx%d, want %dx%d", ErrInvalidArgument, rows, cols, d, s)
	}
	if len(r.Q0Target) != s {
		return fmt.Errorf("%w: target q0 has length %d, want %d", ErrInvalidArgument, len(r.Q0Target), s)
	}
	return nil
}

// Apply implements Regulariser.
func (r TargetRegulariser[S]) Apply(ws *Workspace[S]) S {
	factory := ws.Factory()
	n := ws.ArgDimOf()
	dim := ws.Dim()
	s := ws.StateDimOf()

	total := factory.Const(0, n)
	for l := 0; l < s; l++ {
		for k := 0; k < dim; k++ {
			diff := ws.PiCompactAt(k, l).Sub(factory.Const(r.PiTarget.At(k, l), n))
			total = total.Add(diff.Mul(diff).Mul(factory.Const(r.WeightPi, n)))
		}
	}
	for i := 0; i < s; i++ {
		diff := ws.Q0At(i).Sub(factory.Const(r.Q0Target[i], n))
		total = total.Add(diff.Mul(diff).Mul(factory.Const(r.WeightQ0, n)))
	}
	return total
}

var (
	_ Regulariser[AD0] = TargetRegulariser[AD0]{}
	_ Regulariser[AD1] = TargetRegulariser[AD1]{}
)
