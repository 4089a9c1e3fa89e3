package csm

import "reflect"

// Jagged2DArray stores variable-length rows contiguously with a row-offset
// table, avoiding the per-row allocation of [][]T. Used for trajectory state
// indices and trajectory observation times, whose rows (one per individual)
// have independent lengths.
type Jagged2DArray[T any] struct {
	data    []T
	offsets []int // length nbrRows+1; row i spans data[offsets[i]:offsets[i+1]]
}

// NewJagged2DFromRowSizes allocates an array with the given per-row sizes,
// zero-valued.
func NewJagged2DFromRowSizes[T any](sizes []int) *Jagged2DArray[T] {
	offsets := make([]int, len(sizes)+1)
	for i, sz := range sizes {
		offsets[i+1] = offsets[i] + sz
	}
	return &Jagged2DArray[T]{data: make([]T, offsets[len(sizes)]), offsets: offsets}
}

// NewJagged2DRect allocates a rectangular (rows, cols) array, zero-valued.
func NewJagged2DRect[T any](rows, cols int) *Jagged2DArray[T] {
	sizes := make([]int, rows)
	for i := range sizes {
		sizes[i] = cols
	}
	return NewJagged2DFromRowSizes[T](sizes)
}

// NewJagged2DFromRows copies from a slice-of-slices container.
func NewJagged2DFromRows[T any](rows [][]T) *Jagged2DArray[T] {
	sizes := make([]int, len(rows))
	for i, r := range rows {
		sizes[i] = len(r)
	}
	arr := NewJagged2DFromRowSizes[T](sizes)
	for i, r := range rows {
		copy(arr.Row(i), r)
	}
	return arr
}

// NbrRows returns the number of rows.
func (a *Jagged2DArray[T]) NbrRows() int {
	return len(a.offsets) - 1
}

// RowSize returns the length of row i.
func (a *Jagged2DArray[T]) RowSize(i int) int {
	return a.offsets[i+1] - a.offsets[i]
}

// Row returns a mutation-visible reference to row i (a slice into the shared
// contiguous backing array), matching the original's operator[] reference
// semantics.
func (a *Jagged2DArray[T]) Row(i int) []T {
	return a.data[a.offsets[i]:a.offsets[i+1]]
}

// At returns element (row, col).
func (a *Jagged2DArray[T]) At(row, col int) T {
	return a.data[a.offsets[row]+col]
}

// Set assigns element (row, col).
func (a *Jagged2DArray[T]) Set(row, col int, v T) {
	a.data[a.offsets[row]+col] = v
}

// NbrElements returns the total element count across all rows.
func (a *Jagged2DArray[T]) NbrElements() int {
	return len(a.data)
}

// Equal reports whether two arrays have identical shape and contents.
func (a *Jagged2DArray[T]) Equal(other *Jagged2DArray[T]) bool {
	if other == nil {
		return false
	}
	return reflect.DeepEqual(a.offsets, other.offsets) && reflect.DeepEqual(a.data, other.data)
}
