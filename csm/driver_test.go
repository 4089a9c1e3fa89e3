package csm

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPiInitMethodRoundTrip(t *testing.T) {
	methods := []PiInitMethod{PiIdentity, PiMaxEntropy, PiFromTrajectories, PiFromTrajectoriesCompleteOnly, PiHeuristic}
	for _, m := range methods {
		got, err := ParsePiInitMethod(m.String())
		if err != nil {
			t.Fatalf("ParsePiInitMethod(%q): %v", m.String(), err)
		}
		if got != m {
			t.Fatalf("round-trip mismatch: %v -> %q -> %v", m, m.String(), got)
		}
	}
	if _, err := ParsePiInitMethod("NOT_A_METHOD"); err == nil {
		t.Fatalf("expected error for unknown method name")
	}
}

func TestQ0InitMethodRoundTrip(t *testing.T) {
	methods := []Q0InitMethod{Q0MaxEntropy, Q0FromData}
	for _, m := range methods {
		got, err := ParseQ0InitMethod(m.String())
		if err != nil {
			t.Fatalf("ParseQ0InitMethod(%q): %v", m.String(), err)
		}
		if got != m {
			t.Fatalf("round-trip mismatch: %v -> %q -> %v", m, m.String(), got)
		}
	}
	if _, err := ParseQ0InitMethod("NOT_A_METHOD"); err == nil {
		t.Fatalf("expected error for unknown method name")
	}
}

// TestEstimateRecoversStylisedNoErrorProcess builds cross-sectional
// observations generated exactly by a known Pi/q0 (no sampling noise) and
// checks that estimate() brings the loss below 1.0, well under its value
// (about 3.2) at the max-entropy starting guess. It does not compare the
// fitted Pi/q0 with the true ones.
func TestEstimateRecoversStylisedNoErrorProcess(t *testing.T) {
	const d = 2
	truePi := mat.NewDense(d, d, []float64{0.9, 0.1, 0.1, 0.9})
	trueQ0 := []float64{0.6, 0.4}

	const periods = 6
	probs := mat.NewDense(d, periods, nil)
	surveys := make([]float64, periods)
	times := make([]float64, periods)
	state := append([]float64(nil), trueQ0...)
	for t := 0; t < periods; t++ {
		surveys[t] = 100
		times[t] = float64(t)
		for k := 0; k < d; k++ {
			probs.Set(k, t, state[k])
		}
		next := make([]float64, d)
		for k := 0; k < d; k++ {
			for l := 0; l < d; l++ {
				next[k] += truePi.At(k, l) * state[l]
			}
		}
		state = next
	}
	data := &ObservedData{Probs: probs, NbrSurveys: surveys, Times: times}

	model, err := NewCSM(data, CSMParams{D: d, M: 0, TauNN: 1})
	if err != nil {
		t.Fatalf("NewCSM: %v", err)
	}
	model.Stop.MaxEval = 2000

	piInit, err := model.CalcInitialGuessPi(PiMaxEntropy)
	if err != nil {
		t.Fatalf("CalcInitialGuessPi: %v", err)
	}
	q0Init, err := model.CalcInitialGuessQ0(Q0FromData)
	if err != nil {
		t.Fatalf("CalcInitialGuessQ0: %v", err)
	}

	result, err := model.Estimate(piInit, q0Init, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	// The process is noise-free, so a converged (or near-converged) fit
	// should land well below the loss at a generic starting guess.
	if result.Loss > 1.0 {
		t.Fatalf("loss = %v, expected substantial improvement for a noise-free process", result.Loss)
	}
}

func TestExtrapolateAnalyticConfidenceIntervalsBandsAreSane(t *testing.T) {
	const d = 2
	const periods = 4
	probs := mat.NewDense(d, periods, nil)
	surveys := make([]float64, periods)
	times := make([]float64, periods)
	p := []float64{0.5, 0.5}
	for t := 0; t < periods; t++ {
		surveys[t] = 20
		times[t] = float64(t)
		probs.Set(0, t, p[0])
		probs.Set(1, t, p[1])
	}
	data := &ObservedData{Probs: probs, NbrSurveys: surveys, Times: times}

	model, err := NewCSM(data, CSMParams{D: d, M: 0, TauNN: 1})
	if err != nil {
		t.Fatalf("NewCSM: %v", err)
	}

	pi := mat.NewDense(d, d, []float64{0.8, 0.2, 0.2, 0.8})
	q0 := []float64{0.5, 0.5}

	ci, err := model.ExtrapolateAnalyticConfidenceIntervals(pi, q0, 3, 0.95)
	if err != nil {
		t.Fatalf("ExtrapolateAnalyticConfidenceIntervals: %v", err)
	}
	rows, cols := ci.P.Dims()
	if rows != d || cols != 3 {
		t.Fatalf("P dims = %dx%d, want %dx3", rows, cols, d)
	}
	for t := 0; t < 3; t++ {
		for k := 0; k < d; k++ {
			lo, fit, hi := ci.Lower.At(k, t), ci.P.At(k, t), ci.Upper.At(k, t)
			if lo > fit+1e-9 || fit > hi+1e-9 {
				t.Fatalf("band not ordered at (k=%d,t=%d): lower=%v fit=%v upper=%v", k, t, lo, fit, hi)
			}
			if lo < -1e-9 || hi > 1+1e-9 {
				t.Fatalf("band out of [0,1] at (k=%d,t=%d): lower=%v upper=%v", k, t, lo, hi)
			}
		}
	}
}

func TestEstimateFromItsOwnOutputDoesNotIncreaseLoss(t *testing.T) {
	const d = 2
	const periods = 5
	probs := mat.NewDense(d, periods, nil)
	surveys := make([]float64, periods)
	times := make([]float64, periods)
	for t := 0; t < periods; t++ {
		surveys[t] = 50
		times[t] = float64(t)
		probs.Set(0, t, 0.4)
		probs.Set(1, t, 0.6)
	}
	data := &ObservedData{Probs: probs, NbrSurveys: surveys, Times: times}

	model, err := NewCSM(data, CSMParams{D: d, M: 0, TauNN: 1})
	if err != nil {
		t.Fatalf("NewCSM: %v", err)
	}
	model.Stop.MaxEval = 1000

	piInit, _ := model.CalcInitialGuessPi(PiMaxEntropy)
	q0Init, _ := model.CalcInitialGuessQ0(Q0MaxEntropy)
	first, err := model.Estimate(piInit, q0Init, nil)
	if err != nil {
		t.Fatalf("first Estimate: %v", err)
	}
	second, err := model.Estimate(first.Pi, first.Q0, nil)
	if err != nil {
		t.Fatalf("second Estimate: %v", err)
	}
	if second.Loss > first.Loss+1e-6 {
		t.Fatalf("re-estimating from a fitted point should not increase loss: %v -> %v", first.Loss, second.Loss)
	}
}
