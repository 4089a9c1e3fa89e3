package csm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// PaddedData wraps an ObservedData resampled onto a unit-increment time grid
// spanning the union of the cross-sectional and longitudinal ranges, plus the
// mapping from the caller's original cross-sectional period indices to their
// position on the padded grid (spec §3, §4.J construction step 4).
type PaddedData struct {
	Data           *ObservedData
	InputToPadded  []int // length = len(original Times); index into padded Times
	MinTime        float64
	TPadded        int
}

// Pad builds a unit-step grid covering [min(FirstTime), max(LastTime)] and
// resamples cross-sectional columns onto it (missing periods get a
// zero-weight, all-zero column), and rewrites longitudinal times as integer
// offsets from MinTime. Longitudinal data itself is not otherwise altered:
// the workspace (§4.F) performs the sparse-to-dense per-trajectory expansion
// against the padded grid.
//
// original_source/core/observed_discrete_data.cpp's pad() body was not
// retrieved (see DESIGN.md); this builds the padded grid directly from spec
// §3/§4.J's description, borrowing the generic forward/backward-fill idiom of
// original_source/core/padding.hpp for the surrounding gap-filling structure.
func Pad(data *ObservedData) (*PaddedData, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	first := data.FirstTime()
	last := data.LastTime()
	if math.IsInf(first, 1) || math.IsInf(last, -1) {
		// No data at all: degenerate empty grid (TPadded = 0).
		return &PaddedData{Data: data, MinTime: 0, TPadded: 0}, nil
	}
	tPadded := int(math.Round(last-first)) + 1

	dim := data.Dim()
	paddedProbs := mat.NewDense(dim, tPadded, nil)
	paddedSurveys := make([]float64, tPadded)
	paddedTimes := make([]float64, tPadded)
	for t := 0; t < tPadded; t++ {
		paddedTimes[t] = first + float64(t)
	}

	inputToPadded := make([]int, len(data.Times))
	for i, tm := range data.Times {
		idx := int(math.Round(tm - first))
		inputToPadded[i] = idx
		paddedSurveys[idx] = data.NbrSurveys[i]
		for k := 0; k < dim; k++ {
			paddedProbs.Set(k, idx, data.Probs.At(k, i))
		}
	}

	var ltimes *Jagged2DArray[float64]
	if data.LTimes != nil {
		rows := make([][]float64, data.LTimes.NbrRows())
		for i := range rows {
			src := data.LTimes.Row(i)
			row := make([]float64, len(src))
			for j, tm := range src {
				row[j] = math.Round(tm - first)
			}
			rows[i] = row
		}
		ltimes = NewJagged2DFromRows(rows)
	}

	padded := &ObservedData{
		Probs:      paddedProbs,
		NbrSurveys: paddedSurveys,
		Times:      paddedTimes,
		LTrajs:     data.LTrajs,
		LTimes:     ltimes,
	}
	return &PaddedData{Data: padded, InputToPadded: inputToPadded, MinTime: first, TPadded: tPadded}, nil
}

// SmallestTimeIncrement finds the smallest gap between consecutive entries of
// a sorted time vector; returns +Inf for empty or size-1 vectors.
func SmallestTimeIncrement(times []float64) float64 {
	if len(times) < 2 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)
	smallest := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d < smallest {
			smallest = d
		}
	}
	return smallest
}
