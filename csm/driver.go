package csm

import (
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CSM is the cross-sectional Markov estimator: it owns the padded data, the
// objective built over it, the parameter bound vectors, and the stopping
// conditions for estimate() (spec §4.J).
type CSM struct {
	params CSMParams
	data   *ObservedData
	padded *PaddedData
	obj    *Objective

	lower, upper []float64
	Stop         StoppingConditions
}

// NewCSM validates hyperparameters, pads the data, and constructs the
// objective (spec §4.J construction steps 1-5).
func NewCSM(data *ObservedData, params CSMParams) (*CSM, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	padded, err := Pad(data)
	if err != nil {
		return nil, err
	}
	obj, err := NewObjective(padded, params)
	if err != nil {
		return nil, err
	}
	lower, upper := buildBounds(params)
	params.logger().Infof("csm: constructed with D=%d, M=%d, TPadded=%d", params.D, params.M, padded.TPadded)
	return &CSM{
		params: params,
		data:   data,
		padded: padded,
		obj:    obj,
		lower:  lower,
		upper:  upper,
		Stop:   DefaultStoppingConditions(),
	}, nil
}

// buildBounds constructs the lower/upper bound vectors of spec §4.J
// construction step 3: lower is Epsilon everywhere; upper is 1 except for
// compact Pi entries whose category distance exceeds 1, which are capped at
// TauNN.
func buildBounds(params CSMParams) (lower, upper []float64) {
	dim := int(params.D)
	s := StateDim(params.D, params.M)
	a := ArgDim(params.D, params.M)
	lower = make([]float64, a)
	upper = make([]float64, a)
	for i := range lower {
		lower[i] = Epsilon
	}
	for l := 0; l < s; l++ {
		sourceCat := l % dim
		for k := 0; k < dim; k++ {
			dist := k - sourceCat
			if dist < 0 {
				dist = -dist
			}
			u := 1.0
			if dist > 1 {
				u = params.TauNN
			}
			upper[l*dim+k] = u
		}
	}
	for i := dim * s; i < a; i++ {
		upper[i] = 1
	}
	return lower, upper
}

// CalcInitialGuessPi builds a compact D x S transition matrix under the
// requested strategy (spec §4.J "calc_initial_guess_pi").
func (c *CSM) CalcInitialGuessPi(method PiInitMethod) (*mat.Dense, error) {
	dim := int(c.params.D)
	s := StateDim(c.params.D, c.params.M)
	pi := mat.NewDense(dim, s, nil)

	switch method {
	case PiIdentity:
		for l := 0; l < s; l++ {
			row := l % dim
			for k := 0; k < dim; k++ {
				if k == row {
					pi.Set(k, l, 1-Epsilon*float64(dim-1))
				} else {
					pi.Set(k, l, Epsilon)
				}
			}
		}

	case PiMaxEntropy:
		v := 1.0 / float64(dim)
		for l := 0; l < s; l++ {
			for k := 0; k < dim; k++ {
				pi.Set(k, l, v)
			}
		}

	case PiFromTrajectories, PiFromTrajectoriesCompleteOnly:
		// Transitions are counted at the compact (D-category) level and the
		// resulting D x D frequency column is shared by every lifted source
		// column with the same newest category. A transition at trajectory
		// position j is "complete" when the full M-length lagged window
		// before it lies within the trajectory (j-1 >= M); otherwise it is
		// "incomplete" and, per spec, gets fractional weight 1/D under
		// use_incomplete_data=true (FROM_TRAJECTORIES) or is skipped
		// entirely under use_incomplete_data=false
		// (FROM_TRAJECTORIES_COMPLETE_ONLY).
		if !c.data.HasTrajectories() {
			return nil, fmt.Errorf("%w: no longitudinal data, cannot estimate transition matrix from trajectories", ErrLogicError)
		}
		useIncomplete := method == PiFromTrajectories
		m := int(c.params.M)
		freq := mat.NewDense(dim, dim, nil)
		for i := 0; i < c.data.LTrajs.NbrRows(); i++ {
			traj := c.data.LTrajs.Row(i)
			for j := 1; j < len(traj); j++ {
				weight := 1.0
				if j-1 < m {
					if !useIncomplete {
						continue
					}
					weight = 1.0 / float64(dim)
				}
				freq.Set(traj[j], traj[j-1], freq.At(traj[j], traj[j-1])+weight)
			}
		}
		for l := 0; l < s; l++ {
			sourceCat := l % dim
			col := make([]float64, dim)
			var total float64
			for k := 0; k < dim; k++ {
				col[k] = freq.At(k, sourceCat)
				total += col[k]
			}
			if total == 0 {
				for k := range col {
					col[k] = 1.0 / float64(dim)
				}
			} else {
				for k := range col {
					col[k] /= total
				}
			}
			for k := 0; k < dim; k++ {
				pi.Set(k, l, col[k])
			}
		}

	case PiHeuristic:
		if c.data.HasTrajectories() {
			meanSurveys := meanOf(c.data.NbrSurveys)
			nTraj := float64(c.data.LTrajs.NbrRows())
			if meanSurveys < nTraj {
				return c.CalcInitialGuessPi(PiFromTrajectories)
			}
		}
		return c.CalcInitialGuessPi(PiIdentity)

	default:
		return nil, fmt.Errorf("%w: unknown Pi init method", ErrInvalidArgument)
	}
	return pi, nil
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// CalcInitialGuessQ0 builds a q0 vector under the requested strategy (spec
// §4.J "calc_initial_guess_q0").
func (c *CSM) CalcInitialGuessQ0(method Q0InitMethod) ([]float64, error) {
	dim := int(c.params.D)
	m := int(c.params.M)
	s := StateDim(c.params.D, c.params.M)
	q0 := make([]float64, s)

	switch method {
	case Q0MaxEntropy:
		v := 1.0 / float64(s)
		for i := range q0 {
			q0[i] = v
		}

	case Q0FromData:
		marginal := c.earliestMarginal()
		for i := range q0 {
			q0[i] = Epsilon
		}
		for cat := 0; cat < dim; cat++ {
			diag := make([]int, m+1)
			for k := range diag {
				diag[k] = cat
			}
			q0[flattenWithBase(diag, dim)] = marginal[cat]
		}

	default:
		return nil, fmt.Errorf("%w: unknown q0 init method", ErrInvalidArgument)
	}
	return q0, nil
}

// earliestMarginal returns the earliest observed D-category marginal, from
// the first cross-sectional column if present, else from the earliest
// trajectory observations.
func (c *CSM) earliestMarginal() []float64 {
	dim := int(c.params.D)
	out := make([]float64, dim)
	if c.data.Probs != nil && len(c.data.Times) > 0 {
		for k := 0; k < dim; k++ {
			out[k] = c.data.Probs.At(k, 0)
		}
		return out
	}
	if c.data.HasTrajectories() {
		var count float64
		for i := 0; i < c.data.LTrajs.NbrRows(); i++ {
			traj := c.data.LTrajs.Row(i)
			if len(traj) == 0 {
				continue
			}
			out[traj[0]]++
			count++
		}
		if count > 0 {
			for k := range out {
				out[k] /= count
			}
		}
	}
	return out
}

// flattenParams concatenates a compact D x S Pi and length-S q0 into a
// length-A parameter vector, clamps into [Epsilon, 1], and renormalises every
// group (spec §4.J "estimate" step 2).
func flattenParams(pi *mat.Dense, q0 []float64, d, s int) []float64 {
	a := d*s + s
	x := make([]float64, a)
	for l := 0; l < s; l++ {
		for k := 0; k < d; k++ {
			x[l*d+k] = pi.At(k, l)
		}
	}
	copy(x[d*s:], q0)
	for i := range x {
		if x[i] < Epsilon {
			x[i] = Epsilon
		}
		if x[i] > 1 {
			x[i] = 1
		}
	}
	NormaliseDistributions(x, d, s)
	return x
}

// unflattenParams is the inverse of flattenParams.
func unflattenParams(x []float64, d, s int) (*mat.Dense, []float64) {
	pi := mat.NewDense(d, s, nil)
	for l := 0; l < s; l++ {
		for k := 0; k < d; k++ {
			pi.Set(k, l, x[l*d+k])
		}
	}
	q0 := append([]float64(nil), x[d*s:d*s+s]...)
	return pi, q0
}

// EstimateResult is the outcome of a call to Estimate.
type EstimateResult struct {
	Pi     *mat.Dense
	Q0     []float64
	Loss   float64
	Status OptimiserStatus
}

// Estimate fits Pi and q0 to the data by penalised maximum likelihood (spec
// §4.J "estimate"). infoOut, if non-nil, receives a human-readable line
// describing elapsed time and optimiser status.
func (c *CSM) Estimate(piInit *mat.Dense, q0Init []float64, infoOut io.Writer) (*EstimateResult, error) {
	dim := int(c.params.D)
	s := StateDim(c.params.D, c.params.M)

	rows, cols := piInit.Dims()
	if rows != dim || cols != s {
		return nil, fmt.Errorf("%w: initial Pi has shape %dx%d, want %dx%d", ErrInvalidArgument, rows, cols, dim, s)
	}
	if len(q0Init) != s {
		return nil, fmt.Errorf("%w: initial q0 has length %d, want %d", ErrInvalidArgument, len(q0Init), s)
	}

	x0 := flattenParams(piInit, q0Init, dim, s)
	logger := c.params.logger()

	objFunc := ObjectiveFunc(func(x []float64, gradOut []float64) (float64, error) {
		return c.obj.Value(x, gradOut, true)
	})

	logger.Debugf("csm: estimate starting, global=%v, max_eval=%d", c.params.GlobalSearch, c.Stop.MaxEval)
	start := time.Now()
	var result *OptimiserResult
	var err error
	if c.params.GlobalSearch {
		starts := c.params.GlobalStarts
		if starts <= 0 {
			starts = 8
		}
		result, err = MinimizeGlobal(objFunc, x0, c.lower, c.upper, c.Stop, starts, 1)
	} else {
		result, err = Minimize(objFunc, x0, c.lower, c.upper, c.Stop)
	}
	if err != nil {
		logger.Errorf("csm: estimate failed: %v", err)
		return nil, err
	}

	x := result.X
	NormaliseDistributions(x, dim, s)
	loss, err := c.obj.Value(x, nil, true)
	if err != nil {
		logger.Errorf("csm: estimate failed: %v", err)
		return nil, err
	}

	pi, q0 := unflattenParams(x, dim, s)
	logger.Infof("csm: estimate finished, status=%s, iterations=%d, loss=%g", result.Status, result.Iterations, loss)

	if infoOut != nil {
		fmt.Fprintf(infoOut, "csm: estimate finished in %s, status=%s, iterations=%d, loss=%g\n",
			time.Since(start), result.Status, result.Iterations, loss)
	}

	return &EstimateResult{Pi: pi, Q0: q0, Loss: loss, Status: result.Status}, nil
}

// CalcErrors returns a D x T matrix of per-observation weighted residuals in
// the low-error approximation errors[k,t] = w_t * (P[k,t] - p_approx[k,
// padded(t)]) (spec §4.J "calc_errors").
func (c *CSM) CalcErrors(pi *mat.Dense, q0 []float64) (*mat.Dense, error) {
	if c.data.Probs == nil {
		return nil, fmt.Errorf("%w: calc_errors requires cross-sectional data", ErrLogicError)
	}
	dim := int(c.params.D)
	s := StateDim(c.params.D, c.params.M)
	x := flattenParams(pi, q0, dim, s)
	marginals := c.obj.ComputeMarginals(x)

	_, cols := c.data.Probs.Dims()
	out := mat.NewDense(dim, cols, nil)
	for t := 0; t < cols; t++ {
		w := c.data.NbrSurveys[t]
		pt := c.padded.InputToPadded[t]
		for k := 0; k < dim; k++ {
			out.Set(k, t, w*(c.data.Probs.At(k, t)-marginals.At(k, pt)))
		}
	}
	return out, nil
}

// ConfidenceIntervals holds analytic forward-extrapolated probability bands
// (spec §4.J "extrapolate_analytic_confidence_intervals").
type ConfidenceIntervals struct {
	P     *mat.Dense // D x TOut point estimate
	Lower *mat.Dense // D x TOut lower band
	Upper *mat.Dense // D x TOut upper band
}

// ExtrapolateAnalyticConfidenceIntervals computes forward marginals with
// delta-method confidence bands at the given confidence level (spec §4.H
// "Confidence-interval extrapolation").
func (c *CSM) ExtrapolateAnalyticConfidenceIntervals(pi *mat.Dense, q0 []float64, tOut int, confidenceLevel float64) (*ConfidenceIntervals, error) {
	if c.data.Probs == nil {
		return nil, fmt.Errorf("%w: confidence-interval extrapolation requires cross-sectional data", ErrLogicError)
	}
	dim := int(c.params.D)
	s := StateDim(c.params.D, c.params.M)
	x := flattenParams(pi, q0, dim, s)
	a := c.obj.ArgDim()

	marginals := c.obj.ExtrapolateWithGradient(x, tOut)

	hess := make([]float64, a*a)
	if _, err := c.obj.ValueAndHessian(x, nil, hess, true); err != nil {
		return nil, err
	}
	hSym := mat.NewSymDense(a, nil)
	for i := 0; i < a; i++ {
		for j := i; j < a; j++ {
			hSym.SetSym(i, j, hess[i*a+j])
		}
	}
	cov, err := PseudoInverseSym(hSym, 1e-14)
	if err != nil {
		return nil, err
	}

	z := -distuv.Normal{Mu: 0, Sigma: 1}.Quantile((1 - confidenceLevel) / 2)

	p := mat.NewDense(dim, tOut, nil)
	lower := mat.NewDense(dim, tOut, nil)
	upper := mat.NewDense(dim, tOut, nil)
	for t := 0; t < tOut; t++ {
		for k := 0; k < dim; k++ {
			entry := marginals[t][k]
			pv := entry.Val()
			p.Set(k, t, pv)
			if pv <= 0 || pv >= 1 {
				lower.Set(k, t, pv)
				upper.Set(k, t, pv)
				continue
			}
			logit := math.Log(pv / (1 - pv))
			scale := 1 / (pv * (1 - pv))
			var variance float64
			for i := 0; i < a; i++ {
				dli := entry.Grad(i) * scale
				if dli == 0 {
					continue
				}
				for j := 0; j < a; j++ {
					dlj := entry.Grad(j) * scale
					variance += dli * dlj * cov.At(i, j)
				}
			}
			sigma := math.Sqrt(math.Max(variance, 0))
			lower.Set(k, t, sigmoid(logit-z*sigma))
			upper.Set(k, t, sigmoid(logit+z*sigma))
		}
	}
	return &ConfidenceIntervals{P: p, Lower: lower, Upper: upper}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
