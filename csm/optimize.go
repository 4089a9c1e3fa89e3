package csm

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// OptimiserStatus reports how a Minimize run terminated. It is a plain
// status, not an error (see DESIGN.md): non-convergence is expected
// behaviour an operator may want to inspect, not a failure to propagate.
type OptimiserStatus int

const (
	StatusNotTerminated OptimiserStatus = iota
	StatusFunctionConvergence
	StatusStepConvergence
	StatusGradientConvergence
	StatusIterationLimit
	StatusRuntimeLimit
	StatusFailure
)

func (s OptimiserStatus) String() string {
	switch s {
	case StatusFunctionConvergence:
		return "FunctionConvergence"
	case StatusStepConvergence:
		return "StepConvergence"
	case StatusGradientConvergence:
		return "GradientConvergence"
	case StatusIterationLimit:
		return "IterationLimit"
	case StatusRuntimeLimit:
		return "RuntimeLimit"
	case StatusFailure:
		return "Failure"
	default:
		return "NotTerminated"
	}
}

// OptimiserResult is the outcome of a Minimize or MinimizeGlobal run.
type OptimiserResult struct {
	X               []float64
	F               float64
	Gradient        []float64
	Status          OptimiserStatus
	Iterations      int
	FuncEvaluations int
	Elapsed         time.Duration
}

// ObjectiveFunc evaluates a scalar objective at x, filling gradOut with first
// derivatives when non-empty.
type ObjectiveFunc func(x []float64, gradOut []float64) (float64, error)

func clampToBounds(x, lower, upper []float64) {
	for i := range x {
		if x[i] < lower[i] {
			x[i] = lower[i]
		}
		if x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

// Minimize runs box-constrained local search via projected gradient descent
// with Armijo backtracking line search (spec §4.J step 3's default "sequential
// quadratic programming" choice, collapsed to a single synchronous loop since
// spec §5 rules out internal task parallelism — see DESIGN.md Open Question).
func Minimize(f ObjectiveFunc, x0, lower, upper []float64, stop StoppingConditions) (*OptimiserResult, error) {
	start := time.Now()
	n := len(x0)
	x := append([]float64(nil), x0...)
	clampToBounds(x, lower, upper)

	grad := make([]float64, n)
	fx, err := f(x, grad)
	if err != nil {
		return nil, err
	}
	funcEvals := 1

	maxEval := stop.MaxEval
	if maxEval <= 0 {
		maxEval = 1000
	}
	maxTime := stop.MaxTime
	if maxTime <= 0 {
		maxTime = 60
	}

	status := StatusIterationLimit
	iter := 0
	for ; funcEvals < maxEval; iter++ {
		if time.Since(start).Seconds() > maxTime {
			status = StatusRuntimeLimit
			break
		}
		if fx <= stop.StopVal {
			status = StatusFunctionConvergence
			break
		}
		gradNorm := 0.0
		for _, g := range grad {
			gradNorm += g * g
		}
		gradNorm = math.Sqrt(gradNorm)
		if gradNorm < stop.XtolAbs+stop.XtolRel*(1+normOf(x)) {
			status = StatusGradientConvergence
			break
		}

		step := 1.0
		improved := false
		var xNext []float64
		var fNext float64
		for attempt := 0; attempt < 30; attempt++ {
			xNext = append([]float64(nil), x...)
			for i := range xNext {
				xNext[i] -= step * grad[i]
			}
			clampToBounds(xNext, lower, upper)
			fNext, err = f(xNext, nil)
			funcEvals++
			if err != nil {
				step /= 2
				continue
			}
			if fNext <= fx-1e-4*step*gradNorm*gradNorm {
				improved = true
				break
			}
			step /= 2
		}
		if !improved {
			status = StatusStepConvergence
			break
		}

		fPrev := fx
		x = xNext
		fx, err = f(x, grad)
		funcEvals++
		if err != nil {
			return nil, err
		}
		if math.Abs(fPrev-fx) < stop.FtolAbs+stop.FtolRel*(1+math.Abs(fPrev)) {
			status = StatusFunctionConvergence
			iter++
			break
		}
	}

	return &OptimiserResult{
		X:               x,
		F:               fx,
		Gradient:        grad,
		Status:          status,
		Iterations:      iter,
		FuncEvaluations: funcEvals,
		Elapsed:         time.Since(start),
	}, nil
}

func normOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MinimizeGlobal runs bounded multi-start local search: one Minimize run from
// x0 plus starts-1 further runs from random points drawn uniformly within
// bounds (clamped the
// way original_source/cmaesbounded.go's ensureBounds clamps CMA-ES samples to
// their box), keeping the best result. This stands in for the spec's optional
// "multi-level single-linkage global method" (see DESIGN.md Open Question).
func MinimizeGlobal(f ObjectiveFunc, x0, lower, upper []float64, stop StoppingConditions, starts int, seed uint64) (*OptimiserResult, error) {
	if starts <= 0 {
		starts = 8
	}
	src := rand.NewSource(seed)
	rng := rand.New(src)

	best, err := Minimize(f, x0, lower, upper, stop)
	if err != nil {
		return nil, err
	}
	for i := 1; i < starts; i++ {
		x := make([]float64, len(x0))
		for j := range x {
			x[j] = lower[j] + rng.Float64()*(upper[j]-lower[j])
		}
		result, err := Minimize(f, x, lower, upper, stop)
		if err != nil {
			continue
		}
		if result.F < best.F {
			best = result
		}
	}
	return best, nil
}
