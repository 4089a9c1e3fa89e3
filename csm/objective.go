package csm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Objective evaluates the penalised negative log-likelihood of spec §4.H. It
// owns one Workspace per AD level, built once at construction and reused
// across evaluations (spec §9's "per-AD-level workspace split").
type Objective struct {
	params CSMParams
	padded *PaddedData
	d, s, a int

	ws0 *Workspace[AD0]
	ws1 *Workspace[AD1]
}

// NewObjective constructs an objective over padded data, validating the
// regulariser's compatibility with the derived dimensions up front (spec
// §4.G "check_compatibility").
func NewObjective(padded *PaddedData, params CSMParams) (*Objective, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := StateDim(params.D, params.M)
	if params.Regulariser != nil {
		if err := params.Regulariser.CheckCompatibility(int(params.D), s); err != nil {
			return nil, err
		}
	}
	if params.Regulariser1 != nil {
		if err := params.Regulariser1.CheckCompatibility(int(params.D), s); err != nil {
			return nil, err
		}
	}
	return &Objective{
		params: params,
		padded: padded,
		d:      int(params.D),
		s:      s,
		a:      ArgDim(params.D, params.M),
		ws0:    NewWorkspace[AD0](padded, params.D, params.M, AD0Factory),
		ws1:    NewWorkspace[AD1](padded, params.D, params.M, AD1Factory),
	}, nil
}

// ArgDim returns the length of the flattened parameter vector x.
func (o *Objective) ArgDim() int { return o.a }

// Value computes the objective's scalar value at x, optionally filling
// gradOut with first derivatives (spec §4.H operation 1).
func (o *Objective) Value(x []float64, gradOut []float64, addNorm bool) (float64, error) {
	val, err := evaluate(o.ws0, o.params, o.padded, x, len(gradOut) > 0, addNorm, o.params.Regulariser)
	if err != nil {
		return 0, err
	}
	if len(gradOut) > 0 {
		for i := range gradOut {
			gradOut[i] = val.Grad(i)
		}
	}
	return val.Val(), nil
}

// ValueAndHessian computes the objective's scalar value at AD level 1,
// optionally filling gradOut with first derivatives and hessOut (row-major A
// x A) with second derivatives (spec §4.H operation 2).
func (o *Objective) ValueAndHessian(x []float64, gradOut []float64, hessOut []float64, addNorm bool) (float64, error) {
	val, err := evaluate(o.ws1, o.params, o.padded, x, true, addNorm, o.params.Regulariser1)
	if err != nil {
		return 0, err
	}
	if len(gradOut) > 0 {
		for i := 0; i < o.a; i++ {
			gradOut[i] = val.Grad(i).Val()
		}
	}
	if len(hessOut) > 0 {
		for i := 0; i < o.a; i++ {
			di := val.Grad(i)
			for j := 0; j < o.a; j++ {
				hessOut[i*o.a+j] = di.Grad(j)
			}
		}
	}
	return val.Val(), nil
}

// ExtrapolateWithGradient seeds the AD0 workspace at x (spec §4.H
// confidence-interval step 1) and forward-extrapolates `steps` periods
// starting from q0, returning the D-category marginal at each period with
// its gradient over A intact (spec §4.H step 2).
func (o *Objective) ExtrapolateWithGradient(x []float64, steps int) [][]AD0 {
	o.ws0.SetCalibratedParameters(x, true)
	pi := o.ws0.PiExpandedMatrix()
	zero := AD0Factory.Const(0, o.a)

	cur := make([]AD0, o.s)
	copy(cur, o.ws0.StateDistrAt(0))

	out := make([][]AD0, steps)
	for t := 0; t < steps; t++ {
		if t > 0 {
			next := make([]AD0, o.s)
			for i := range next {
				next[i] = zero
			}
			for col := 0; col < o.s; col++ {
				if cur[col].Val() == 0 {
					continue
				}
				for row := 0; row < o.s; row++ {
					next[row] = next[row].Add(pi.At(row, col).Mul(cur[col]))
				}
			}
			cur = next
		}
		marg := make([]AD0, o.d)
		for i := range marg {
			marg[i] = zero
		}
		for si := 0; si < o.s; si++ {
			k := si % o.d
			marg[k] = marg[k].Add(cur[si])
		}
		out[t] = marg
	}
	return out
}

// ComputeMarginals seeds the AD0 workspace at x without gradients and
// forward-extrapolates across the full padded grid, returning the resulting
// D x TPadded marginal matrix (used by CalcErrors).
func (o *Objective) ComputeMarginals(x []float64) *mat.Dense {
	o.ws0.SetCalibratedParameters(x, false)
	for t := 1; t < o.padded.TPadded; t++ {
		o.ws0.StepForward(t)
	}
	out := mat.NewDense(o.d, o.padded.TPadded, nil)
	for t := 0; t < o.padded.TPadded; t++ {
		pt := o.ws0.PApproxAt(t)
		for k := 0; k < o.d; k++ {
			out.Set(k, t, pt[k].Val())
		}
	}
	return out
}

// evaluate implements the value computation of spec §4.H once, generic over
// the AD level S, so that Objective.Value and Objective.ValueAndHessian share
// a single implementation instantiated at AD0 and AD1 respectively.
func evaluate[S Scalar[S]](ws *Workspace[S], params CSMParams, padded *PaddedData, x []float64, withGradient, addNorm bool, regulariser Regulariser[S]) (S, error) {
	factory := ws.Factory()
	a := ws.ArgDimOf()
	n := params.D

	normPenalty := ws.SetCalibratedParameters(x, withGradient)

	for t := 1; t < padded.TPadded; t++ {
		ws.StepForward(t)
	}

	total := factory.Const(0, a)

	data := padded.Data
	if data.Probs != nil {
		_, cols := data.Probs.Dims()
		for t := 0; t < cols; t++ {
			weight := data.NbrSurveys[t]
			if weight <= 0 {
				continue
			}
			pt := ws.PApproxAt(padded.InputToPadded[t])
			for k := 0; k < int(n); k++ {
				pObs := data.Probs.At(k, t)
				if pObs <= 0 {
					continue
				}
				kl := factory.Const(weight*pObs*logOrZero(pObs), a).Sub(pt[k].Log().Mul(factory.Const(weight*pObs, a)))
				total = total.Add(kl)
			}
		}
	}

	if params.Lambda > 0 && regulariser != nil {
		reg := regulariser.Apply(ws)
		ws.regularisationTerm = reg
		total = total.Add(reg.Mul(factory.Const(params.Lambda, a)))
	}

	longTerm, err := evaluateLongitudinal(ws, params, padded)
	if err != nil {
		var zero S
		return zero, err
	}
	total = total.Add(longTerm)

	if addNorm {
		total = total.Add(normPenalty)
	}
	return total, nil
}

func logOrZero(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return math.Log(p)
}

// evaluateLongitudinal adds the trajectory log-likelihood contributions of
// spec §4.H step 5, dispatching on memory length.
func evaluateLongitudinal[S Scalar[S]](ws *Workspace[S], params CSMParams, padded *PaddedData) (S, error) {
	factory := ws.Factory()
	a := ws.ArgDimOf()
	total := factory.Const(0, a)

	data := padded.Data
	if !data.HasTrajectories() {
		return total, nil
	}

	if params.M == 0 {
		for i := 0; i < data.LTrajs.NbrRows(); i++ {
			traj := data.LTrajs.Row(i)
			times := data.LTimes.Row(i)
			if len(traj) == 0 {
				continue
			}
			t0 := int(times[0])
			p0 := ws.PApproxAt(t0)[traj[0]]
			if p0.Val() == 0 {
				var zero S
				return zero, fmt.Errorf("%w: zero probability for trajectory %d at t=%d", ErrZeroProbability, i, t0)
			}
			total = total.Sub(p0.Log())
			for j := 1; j < len(traj); j++ {
				q := int(times[j] - times[j-1])
				pj := ws.PiPower(q, traj[j], traj[j-1])
				if pj.Val() == 0 {
					var zero S
					return zero, fmt.Errorf("%w: zero transition probability for trajectory %d at step %d", ErrZeroProbability, i, j)
				}
				total = total.Sub(pj.Log())
			}
		}
		return total, nil
	}

	dim := int(params.D)
	m := int(params.M)
	for i := 0; i < data.LTrajs.NbrRows(); i++ {
		times := data.LTimes.Row(i)
		if len(times) == 0 {
			continue
		}
		row := ws.expandedData.Row(i)
		specRow := ws.nbrSpecifiedStates.Row(i)

		t0 := int(times[0])
		x0 := row[t0]
		next := make([]S, ws.s)
		src := ws.StateDistrAt(t0)
		for s := 0; s < ws.s; s++ {
			if s%dim == x0 {
				next[s] = src[s]
			} else {
				next[s] = factory.Const(0, a)
			}
		}

		for j := 1; j < len(times); j++ {
			q := int(times[j] - times[j-1])
			tj := int(times[j])
			prev := next
			next = make([]S, ws.s)

			if specRow[tj] == m+1 {
				for s := range next {
					next[s] = factory.Const(0, a)
				}
				specified := make([]int, m+1)
				for k := 0; k <= m; k++ {
					specified[k] = row[tj-k]
				}
				s := flattenWithBase(specified, dim)
				next[s] = piPowerDot(ws, prev, q, s)
			} else {
				specifiedVal := make([]int, m+1)
				anySpecified := false
				for k := 0; k <= m; k++ {
					idx := tj - k
					if idx >= 0 && idx < len(row) && row[idx] >= 0 {
						specifiedVal[k] = row[idx]
						anySpecified = true
					} else {
						specifiedVal[k] = -1
					}
				}
				for s := 0; s < ws.s; s++ {
					if anySpecified && !matchesSpecified(s, dim, m, specifiedVal) {
						next[s] = factory.Const(0, a)
						continue
					}
					next[s] = piPowerDot(ws, prev, q, s)
				}
			}
		}

		sum := factory.Const(0, a)
		for _, v := range next {
			sum = sum.Add(v)
		}
		if sum.Val() == 0 {
			var zero S
			return zero, fmt.Errorf("%w: zero trajectory likelihood for trajectory %d", ErrZeroProbability, i)
		}
		total = total.Sub(sum.Log())
	}
	return total, nil
}

// piPowerDot computes Σ_u prev[u] * (Pi^q)[s, u].
func piPowerDot[S Scalar[S]](ws *Workspace[S], prev []S, q, s int) S {
	factory := ws.Factory()
	sum := factory.Const(0, ws.ArgDimOf())
	for u := 0; u < len(prev); u++ {
		if prev[u].Val() == 0 {
			continue
		}
		sum = sum.Add(ws.PiPower(q, s, u).Mul(prev[u]))
	}
	return sum
}

// matchesSpecified reports whether flat state s decomposes (fastest-varying
// position 0 first) to the observed category at every specified position.
func matchesSpecified(s, dim, m int, specifiedVal []int) bool {
	decoded := UnflattenIndex(s, dim, m+1)
	for k := 0; k <= m; k++ {
		if specifiedVal[k] >= 0 && decoded[k] != specifiedVal[k] {
			return false
		}
	}
	return true
}
