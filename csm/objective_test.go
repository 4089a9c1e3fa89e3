package csm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func constantProbsData(p []float64, periods int) *ObservedData {
	dim := len(p)
	probs := mat.NewDense(dim, periods, nil)
	surveys := make([]float64, periods)
	times := make([]float64, periods)
	for t := 0; t < periods; t++ {
		surveys[t] = 1
		times[t] = float64(t)
		for k := 0; k < dim; k++ {
			probs.Set(k, t, p[k])
		}
	}
	return &ObservedData{Probs: probs, NbrSurveys: surveys, Times: times}
}

func TestObjectiveZeroForIdentityPiAndMatchingConstantMarginal(t *testing.T) {
	data := constantProbsData([]float64{0.3, 0.7}, 3)
	padded, err := Pad(data)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	params := CSMParams{D: 2, M: 0}
	obj, err := NewObjective(padded, params)
	if err != nil {
		t.Fatalf("NewObjective: %v", err)
	}
	x := []float64{1, 0, 0, 1, 0.3, 0.7}
	val, err := obj.Value(x, nil, false)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if !almostEqual(val, 0, 1e-14) {
		t.Fatalf("objective = %v, want 0", val)
	}
}

func TestObjectiveGradientMatchesFiniteDifference(t *testing.T) {
	data := constantProbsData([]float64{0.4, 0.6}, 4)
	// perturb the data away from any single Pi/q0 so the objective has
	// nontrivial curvature to differentiate through.
	data.Probs.Set(0, 1, 0.55)
	data.Probs.Set(1, 1, 0.45)
	padded, err := Pad(data)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	params := CSMParams{D: 2, M: 0}
	obj, err := NewObjective(padded, params)
	if err != nil {
		t.Fatalf("NewObjective: %v", err)
	}

	x := []float64{0.8, 0.3, 0.2, 0.7, 0.45, 0.55}
	grad := make([]float64, obj.ArgDim())
	if _, err := obj.Value(x, grad, false); err != nil {
		t.Fatalf("Value: %v", err)
	}

	const h = 1e-6
	for i := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += h
		xm[i] -= h
		fp, err := obj.Value(xp, nil, false)
		if err != nil {
			t.Fatalf("Value(x+h): %v", err)
		}
		fm, err := obj.Value(xm, nil, false)
		if err != nil {
			t.Fatalf("Value(x-h): %v", err)
		}
		fd := (fp - fm) / (2 * h)
		if !almostEqual(grad[i], fd, 1e-4) {
			t.Fatalf("grad[%d] = %v, finite-difference = %v", i, grad[i], fd)
		}
	}
}

// TestObjectiveMemoryfulTrajectoriesFullyAndPartiallySpecified covers spec
// scenario S3 (memory >= 1, longitudinal trajectories): one trajectory with a
// fully observed lagged window at its trailing period (the specRow == m+1
// fast path in evaluateLongitudinal) and one with a gap, so the trailing
// period's lagged window is only partially specified (the general
// masked-match path). Before the fix this panicked with an index-out-of-range
// in AD0.Add on the fully-specified trajectory's un-seeded next[] entries.
func TestObjectiveMemoryfulTrajectoriesFullyAndPartiallySpecified(t *testing.T) {
	const d, m = 2, 1
	ltrajs := NewJagged2DFromRows([][]int{
		{0, 1, 0}, // fully observed at every period
		{1, 0},    // gap at t=1: only t=0 and t=2 observed
	})
	ltimes := NewJagged2DFromRows([][]float64{
		{0, 1, 2},
		{0, 2},
	})
	data := &ObservedData{LTrajs: ltrajs, LTimes: ltimes}
	padded, err := Pad(data)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}

	params := CSMParams{D: d, M: m}
	obj, err := NewObjective(padded, params)
	if err != nil {
		t.Fatalf("NewObjective: %v", err)
	}

	s := StateDim(d, m)
	a := ArgDim(d, m)
	x := make([]float64, a)
	for l := 0; l < s; l++ {
		for k := 0; k < d; k++ {
			x[l*d+k] = 0.5
		}
	}
	for i := d * s; i < a; i++ {
		x[i] = 1.0 / float64(s)
	}

	grad := make([]float64, a)
	val, err := obj.Value(x, grad, false)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if math.IsNaN(val) || math.IsInf(val, 0) {
		t.Fatalf("objective value is not finite: %v", val)
	}
	for i, g := range grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			t.Fatalf("grad[%d] = %v is not finite", i, g)
		}
	}
}

func TestObjectiveValueAndHessianGradientAgreesWithValue(t *testing.T) {
	data := constantProbsData([]float64{0.5, 0.5}, 2)
	padded, err := Pad(data)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	params := CSMParams{D: 2, M: 0}
	obj, err := NewObjective(padded, params)
	if err != nil {
		t.Fatalf("NewObjective: %v", err)
	}
	x := []float64{0.6, 0.4, 0.4, 0.6, 0.5, 0.5}
	a := obj.ArgDim()
	grad0 := make([]float64, a)
	val0, err := obj.Value(x, grad0, false)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	grad1 := make([]float64, a)
	hess := make([]float64, a*a)
	val1, err := obj.ValueAndHessian(x, grad1, hess, false)
	if err != nil {
		t.Fatalf("ValueAndHessian: %v", err)
	}
	if !almostEqual(val0, val1, 1e-12) {
		t.Fatalf("Value and ValueAndHessian disagree: %v vs %v", val0, val1)
	}
	for i := range grad0 {
		if !almostEqual(grad0[i], grad1[i], 1e-10) {
			t.Fatalf("grad[%d]: %v vs %v", i, grad0[i], grad1[i])
		}
	}
	// Hessian must be symmetric.
	for i := 0; i < a; i++ {
		for j := 0; j < a; j++ {
			if !almostEqual(hess[i*a+j], hess[j*a+i], 1e-8) {
				t.Fatalf("hessian not symmetric at (%d,%d): %v vs %v", i, j, hess[i*a+j], hess[j*a+i])
			}
		}
	}
}
