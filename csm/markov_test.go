package csm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestStateDimAndMemory(t *testing.T) {
	if got := StateDim(3, 0); got != 3 {
		t.Fatalf("StateDim(3,0) = %d, want 3", got)
	}
	if got := StateDim(3, 2); got != 27 {
		t.Fatalf("StateDim(3,2) = %d, want 27", got)
	}
	m, err := Memory(27, 3)
	if err != nil || m != 2 {
		t.Fatalf("Memory(27,3) = (%d,%v), want (2,nil)", m, err)
	}
	if _, err := Memory(10, 3); err == nil {
		t.Fatalf("Memory(10,3) should fail: 10 is not a power of 3")
	}
}

func TestDofAndArgDim(t *testing.T) {
	// D=2, M=0: S=2, Dof = 2*(2-1)+2-1 = 3, ArgDim = (2+1)*2 = 6.
	if got := Dof(2, 0); got != 3 {
		t.Fatalf("Dof(2,0) = %d, want 3", got)
	}
	if got := ArgDim(2, 0); got != 6 {
		t.Fatalf("ArgDim(2,0) = %d, want 6", got)
	}
}

func TestExpandTransitionMatrixMemoryless(t *testing.T) {
	compact := mat.NewDense(2, 2, []float64{0.9, 0.2, 0.1, 0.8})
	expanded, err := ExpandTransitionMatrix(compact, 2, 0)
	if err != nil {
		t.Fatalf("ExpandTransitionMatrix: %v", err)
	}
	if !mat.Equal(expanded, compact) {
		t.Fatalf("expected expanded == compact when M=0, got %v vs %v", mat.Formatted(expanded), mat.Formatted(compact))
	}
}

func TestExpandTransitionMatrixWithMemory(t *testing.T) {
	// D=2, M=1: S=4. Compact is 2x4 with columns indexed (newest-first) as
	// (0,0),(1,0),(0,1),(1,1).
	compact := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	expanded, err := ExpandTransitionMatrix(compact, 2, 1)
	if err != nil {
		t.Fatalf("ExpandTransitionMatrix: %v", err)
	}
	r, c := expanded.Dims()
	if r != 4 || c != 4 {
		t.Fatalf("expanded dims = %dx%d, want 4x4", r, c)
	}
	// Column 0 (source state (0,0)): base = (0 % 2)*2 = 0, so rows 0,1 carry
	// compact[:,0].
	if got := expanded.At(0, 0); got != 1 {
		t.Fatalf("expanded[0,0] = %v, want 1", got)
	}
	if got := expanded.At(1, 0); got != 0 {
		t.Fatalf("expanded[1,0] = %v, want 0", got)
	}
	// Column 1 (source state (1,0)): base = (1 % 2)*2 = 2, so rows 2,3 carry
	// compact[:,1].
	if got := expanded.At(2, 1); got != 0 {
		t.Fatalf("expanded[2,1] = %v, want 0", got)
	}
	if got := expanded.At(3, 1); got != 1 {
		t.Fatalf("expanded[3,1] = %v, want 1", got)
	}
}

func TestNormaliseDistributions(t *testing.T) {
	// D=2, S=2: two Pi columns of length 2 each, plus q0 of length 2.
	x := []float64{2, 2, 1, 3, 4, 4}
	penalty := NormaliseDistributions(x, 2, 2)
	if !almostEqual(x[0], 0.5, 1e-12) || !almostEqual(x[1], 0.5, 1e-12) {
		t.Fatalf("first Pi column not normalised: %v", x[0:2])
	}
	if !almostEqual(x[2], 0.25, 1e-12) || !almostEqual(x[3], 0.75, 1e-12) {
		t.Fatalf("second Pi column not normalised: %v", x[2:4])
	}
	if !almostEqual(x[4], 0.5, 1e-12) || !almostEqual(x[5], 0.5, 1e-12) {
		t.Fatalf("q0 not normalised: %v", x[4:6])
	}
	// Column sums were 4, 4, 8, so penalty = (4-1)^2*2 + (8-1)^2 = 9+9+49 = 67.
	if !almostEqual(penalty, 67, 1e-9) {
		t.Fatalf("penalty = %v, want 67", penalty)
	}
}
