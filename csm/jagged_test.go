package csm

import "testing"

func TestJagged2DFromRowSizes(t *testing.T) {
	j := NewJagged2DFromRowSizes[int]([]int{2, 0, 3})
	if j.NbrRows() != 3 {
		t.Fatalf("NbrRows() = %d, want 3", j.NbrRows())
	}
	if j.RowSize(0) != 2 || j.RowSize(1) != 0 || j.RowSize(2) != 3 {
		t.Fatalf("unexpected row sizes")
	}
	row0 := j.Row(0)
	row0[0] = 10
	row0[1] = 11
	if j.At(0, 0) != 10 || j.At(0, 1) != 11 {
		t.Fatalf("Row() did not alias backing storage")
	}
	if j.NbrElements() != 5 {
		t.Fatalf("NbrElements() = %d, want 5", j.NbrElements())
	}
}

func TestJagged2DFromRowsEqual(t *testing.T) {
	a := NewJagged2DFromRows([][]float64{{1, 2}, {3}})
	b := NewJagged2DFromRows([][]float64{{1, 2}, {3}})
	c := NewJagged2DFromRows([][]float64{{1, 2}, {4}})
	if !a.Equal(b) {
		t.Fatalf("expected a == b")
	}
	if a.Equal(c) {
		t.Fatalf("expected a != c")
	}
}

func TestJagged2DRect(t *testing.T) {
	j := NewJagged2DRect[int](3, 4)
	if j.NbrRows() != 3 {
		t.Fatalf("NbrRows() = %d, want 3", j.NbrRows())
	}
	for i := 0; i < 3; i++ {
		if j.RowSize(i) != 4 {
			t.Fatalf("RowSize(%d) = %d, want 4", i, j.RowSize(i))
		}
	}
}
