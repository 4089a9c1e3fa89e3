package csm

import "testing"

func TestSetCalibratedParametersNormalisesAndReduces(t *testing.T) {
	// D=2, M=0: S=2, A=6. x = [Pi col0 (2), Pi col1 (2), q0 (2)].
	x := []float64{2, 2, 1, 3, 0.3, 0.1}
	ws := NewWorkspace[AD0](&PaddedData{Data: &ObservedData{}, TPadded: 1}, 2, 0, AD0Factory)
	penalty := ws.SetCalibratedParameters(x, false)

	// normalisation penalty only reflects pre-renormalisation sums (4, 4, 0.4).
	want := (4-1.0)*(4-1.0) + (4-1.0)*(4-1.0) + (0.4-1.0)*(0.4-1.0)
	if !almostEqual(penalty.Val(), want, 1e-12) {
		t.Fatalf("penalty = %v, want %v", penalty.Val(), want)
	}

	// After renormalisation, q0 (the trailing group) sums to 1.
	q0 := ws.ax[4:6]
	sum := q0[0].Val() + q0[1].Val()
	if !almostEqual(sum, 1, 1e-12) {
		t.Fatalf("q0 does not sum to 1: %v", sum)
	}

	// p_approx[0:D] at t=0 is the reduction of state_distr_approx[0:S], which
	// for M=0 is q0 itself since the flattening is the identity on D=S.
	p := ws.PApproxAt(0)
	if !almostEqual(p[0].Val(), q0[0].Val(), 1e-12) || !almostEqual(p[1].Val(), q0[1].Val(), 1e-12) {
		t.Fatalf("p_approx != q0 for M=0: %v vs %v", p, q0)
	}
}

func TestReduceDiagonalRecoversMarginal(t *testing.T) {
	// D=2, M=1: S=4. Build q0 with all mass on diagonal states (0,0) and
	// (1,1), at probabilities 0.3 and 0.7; reduce should recover (0.3, 0.7).
	factory := AD0Factory
	const d, m = 2, 1
	s := StateDim(d, m)
	a := ArgDim(d, m)
	stateDistr := make([]AD0, s)
	for i := range stateDistr {
		stateDistr[i] = factory.Const(0, a)
	}
	diag00 := flattenWithBase([]int{0, 0}, d)
	diag11 := flattenWithBase([]int{1, 1}, d)
	stateDistr[diag00] = factory.Const(0.3, a)
	stateDistr[diag11] = factory.Const(0.7, a)

	ws := NewWorkspace[AD0](&PaddedData{Data: &ObservedData{}, TPadded: 1}, d, m, factory)
	out := make([]AD0, d)
	ws.reduceInto(stateDistr, out)

	if !almostEqual(out[0].Val(), 0.3, 1e-12) {
		t.Fatalf("out[0] = %v, want 0.3", out[0].Val())
	}
	if !almostEqual(out[1].Val(), 0.7, 1e-12) {
		t.Fatalf("out[1] = %v, want 0.7", out[1].Val())
	}
}
