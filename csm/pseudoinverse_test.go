package csm

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPseudoInverseSymRecoversInverseForFullRank(t *testing.T) {
	a := mat.NewSymDense(2, []float64{4, 1, 1, 3})
	pinv, err := PseudoInverseSym(a, 1e-14)
	if err != nil {
		t.Fatalf("PseudoInverseSym: %v", err)
	}
	var product mat.Dense
	product.Mul(a, pinv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if !almostEqual(product.At(i, j), want, 1e-9) {
				t.Fatalf("A*pinv(A) != I at (%d,%d): %v", i, j, product.At(i, j))
			}
		}
	}
}

func TestPseudoInverseSymRankDeficient(t *testing.T) {
	// A singular PSD matrix: rank 1, eigenvalues {0, 2}.
	a := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	pinv, err := PseudoInverseSym(a, 1e-9)
	if err != nil {
		t.Fatalf("PseudoInverseSym: %v", err)
	}
	// The Moore-Penrose pseudo-inverse of [[1,1],[1,1]] is [[0.25,0.25],[0.25,0.25]].
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !almostEqual(pinv.At(i, j), 0.25, 1e-9) {
				t.Fatalf("pinv(%d,%d) = %v, want 0.25", i, j, pinv.At(i, j))
			}
		}
	}
}

func TestPseudoInverseSVDRecoversInverseForSquareFullRank(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{2, 0, 0, 4})
	pinv, err := PseudoInverseSVD(a, 1e-12)
	if err != nil {
		t.Fatalf("PseudoInverseSVD: %v", err)
	}
	if !almostEqual(pinv.At(0, 0), 0.5, 1e-9) || !almostEqual(pinv.At(1, 1), 0.25, 1e-9) {
		t.Fatalf("unexpected pseudo-inverse: %v", mat.Formatted(pinv))
	}
	if !almostEqual(pinv.At(0, 1), 0, 1e-9) || !almostEqual(pinv.At(1, 0), 0, 1e-9) {
		t.Fatalf("off-diagonal entries should be zero: %v", mat.Formatted(pinv))
	}
}
