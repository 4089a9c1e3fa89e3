package csm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ObservedData is an immutable snapshot of cross-sectional and/or
// longitudinal observations, passed by stable reference into the objective
// (spec §3 "Lifetimes").
type ObservedData struct {
	// Probs is the D x T column-stochastic matrix of cross-sectional
	// distributions. May be nil (or zero columns) if only longitudinal data
	// is supplied.
	Probs *mat.Dense
	// NbrSurveys holds the non-negative survey weight for each of the T
	// cross-sectional periods.
	NbrSurveys []float64
	// Times holds the observation time for each of the T cross-sectional
	// periods, strictly increasing.
	Times []float64
	// LTrajs holds per-trajectory observed state indices.
	LTrajs *Jagged2DArray[int]
	// LTimes holds per-trajectory observation times, same shape as LTrajs,
	// strictly increasing within each trajectory.
	LTimes *Jagged2DArray[float64]
}

// HasTrajectories reports whether any longitudinal data is present.
func (d *ObservedData) HasTrajectories() bool {
	return d.LTrajs != nil && d.LTrajs.NbrElements() > 0
}

// Empty reports whether the data set carries neither cross-sectional nor
// longitudinal observations.
func (d *ObservedData) Empty() bool {
	crossSectional := d.Probs != nil && len(d.Times) > 0
	return !crossSectional && !d.HasTrajectories()
}

// Dim returns the observed process dimension D, inferred from Probs' row
// count if present, else from the maximum observed trajectory state index + 1.
func (d *ObservedData) Dim() int {
	if d.Probs != nil {
		r, _ := d.Probs.Dims()
		if r > 0 {
			return r
		}
	}
	maxState := -1
	if d.LTrajs != nil {
		for i := 0; i < d.LTrajs.NbrRows(); i++ {
			for _, v := range d.LTrajs.Row(i) {
				if v > maxState {
					maxState = v
				}
			}
		}
	}
	return maxState + 1
}

// Validate checks the structural invariants documented in spec §3 and raises
// ErrDataException on violation, matching the original's validate() contract
// (original_source/core/observed_discrete_data.hpp).
func (d *ObservedData) Validate() error {
	if d.Probs != nil {
		rows, cols := d.Probs.Dims()
		if cols != len(d.NbrSurveys) {
			return fmt.Errorf("%w: Probs has %d columns but NbrSurveys has length %d", ErrDataException, cols, len(d.NbrSurveys))
		}
		if cols != len(d.Times) {
			return fmt.Errorf("%w: Probs has %d columns but Times has length %d", ErrDataException, cols, len(d.Times))
		}
		for t := 0; t < cols; t++ {
			if d.NbrSurveys[t] < 0 {
				return fmt.Errorf("%w: negative survey count at t=%d", ErrDataException, t)
			}
			var sum float64
			for k := 0; k < rows; k++ {
				v := d.Probs.At(k, t)
				if v < 0 {
					return fmt.Errorf("%w: negative probability at (%d,%d)", ErrDataException, k, t)
				}
				sum += v
			}
			if sum > 0 && (sum < 1-1e-6 || sum > 1+1e-6) {
				return fmt.Errorf("%w: column %d sums to %v, not 1", ErrDataException, t, sum)
			}
			if t > 0 && d.Times[t] <= d.Times[t-1] {
				return fmt.Errorf("%w: Times must be strictly increasing, got %v then %v", ErrDataException, d.Times[t-1], d.Times[t])
			}
		}
	}
	if d.LTrajs != nil {
		if d.LTimes == nil || d.LTimes.NbrRows() != d.LTrajs.NbrRows() {
			return fmt.Errorf("%w: LTrajs and LTimes must have the same number of rows", ErrDataException)
		}
		for i := 0; i < d.LTrajs.NbrRows(); i++ {
			if d.LTrajs.RowSize(i) != d.LTimes.RowSize(i) {
				return fmt.Errorf("%w: trajectory %d: LTrajs/LTimes row size mismatch", ErrDataException, i)
			}
			times := d.LTimes.Row(i)
			for t := 1; t < len(times); t++ {
				if times[t] <= times[t-1] {
					return fmt.Errorf("%w: trajectory %d times must be strictly increasing", ErrDataException, i)
				}
			}
		}
	}
	return nil
}

// FirstTime returns the earliest observation time across cross-sectional and
// longitudinal data, or +Inf if empty.
func (d *ObservedData) FirstTime() float64 {
	first := math.Inf(1)
	if len(d.Times) > 0 {
		first = min64(first, d.Times[0])
	}
	if d.LTimes != nil {
		for i := 0; i < d.LTimes.NbrRows(); i++ {
			row := d.LTimes.Row(i)
			if len(row) > 0 {
				first = min64(first, row[0])
			}
		}
	}
	return first
}

// LastTime returns the latest observation time across cross-sectional and
// longitudinal data, or -Inf if empty.
func (d *ObservedData) LastTime() float64 {
	last := math.Inf(-1)
	if n := len(d.Times); n > 0 {
		last = max64(last, d.Times[n-1])
	}
	if d.LTimes != nil {
		for i := 0; i < d.LTimes.NbrRows(); i++ {
			row := d.LTimes.Row(i)
			if n := len(row); n > 0 {
				last = max64(last, row[n-1])
			}
		}
	}
	return last
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
