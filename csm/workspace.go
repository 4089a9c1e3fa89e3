package csm

// Workspace holds the scratch buffers and precomputed per-trajectory data
// shared across objective evaluations at one AD level (spec §4.F). It is
// owned exclusively by the Objective that constructs it and is not safe for
// concurrent use (spec §5).
type Workspace[S Scalar[S]] struct {
	padded  *PaddedData
	d, m    uint
	s       int // state dim S = D^(M+1)
	a       int // arg dim A = D*S + S
	factory ScalarFactory[S]

	ax                []S         // parameter buffer, length A
	piExpanded        *GenMatrix[S] // S x S
	stateDistrApprox  []S         // length S*TPadded, column-major: index = state + t*S
	pApprox           []S         // length D*TPadded, column-major: index = k + t*D
	piPowerCache      *GenPowerCache[S]
	regularisationTerm S

	// Memory-dependent trajectory buffers (only used when M > 0 and
	// trajectories are present).
	prevStateDistr []S // length S
	nextStateDistr []S // length S
	multiIndex     *MultiIndex

	// expandedData[i][t] = observed state at padded time t, or -1 if missing.
	expandedData *Jagged2DArray[int]
	// nbrSpecifiedStates[i][t] = count of observed entries in {t-M,...,t}.
	nbrSpecifiedStates *Jagged2DArray[int]
}

// NewWorkspace allocates a workspace sized for the given padded data and
// hyperparameters, and precomputes the per-trajectory expansion described in
// spec §4.F.
func NewWorkspace[S Scalar[S]](padded *PaddedData, d, m uint, factory ScalarFactory[S]) *Workspace[S] {
	s := StateDim(d, m)
	a := ArgDim(d, m)
	w := &Workspace[S]{
		padded:  padded,
		d:       d,
		m:       m,
		s:       s,
		a:       a,
		factory: factory,
	}
	t := padded.TPadded
	if t == 0 {
		t = 1
	}
	w.stateDistrApprox = make([]S, s*t)
	w.pApprox = make([]S, int(d)*t)

	if m > 0 && padded.Data.HasTrajectories() {
		w.prevStateDistr = make([]S, s)
		w.nextStateDistr = make([]S, s)
		w.multiIndex = NewMultiIndex(int(m+1), int(d))
		nTraj := padded.Data.LTrajs.NbrRows()
		w.expandedData = NewJagged2DRect[int](nTraj, t)
		w.nbrSpecifiedStates = NewJagged2DRect[int](nTraj, t)
		for i := 0; i < nTraj; i++ {
			row := w.expandedData.Row(i)
			for j := range row {
				row[j] = -1
			}
			traj := padded.Data.LTrajs.Row(i)
			times := padded.Data.LTimes.Row(i)
			for k, tm := range times {
				idx := int(tm)
				if idx >= 0 && idx < t {
					row[idx] = traj[k]
				}
			}
			spec := w.nbrSpecifiedStates.Row(i)
			mi := int(m)
			for tt := 0; tt < t; tt++ {
				overlap := mi + 1
				if tt+1 < overlap {
					overlap = tt + 1
				}
				count := 0
				for q := 0; q < overlap; q++ {
					if row[tt-q] >= 0 {
						count++
					}
				}
				spec[tt] = count
			}
		}
	}
	return w
}

// normaliseGroup normalises ax[start:start+length] to sum to 1 (dividing by
// the sum when it is non-zero) and returns (sum-1)^2 as an AD-typed penalty,
// matching spec §4.I's normalise_distribution applied per-group inside
// set_calibrated_parameters.
func (w *Workspace[S]) normaliseGroup(start, length int) S {
	sum := w.factory.Const(0, w.a)
	for i := 0; i < length; i++ {
		sum = sum.Add(w.ax[start+i])
	}
	diff := sum.Sub(w.factory.Const(1, w.a))
	penalty := diff.Mul(diff)
	if sum.Val() != 0 {
		for i := 0; i < length; i++ {
			w.ax[start+i] = w.ax[start+i].Div(sum)
		}
	}
	return penalty
}

// SetCalibratedParameters copies x into the workspace's AD-seeded parameter
// buffer, renormalises each probability group, rebuilds the expanded
// transition matrix, and seeds t=0 of the state-distribution/marginal
// buffers. Returns the normalisation penalty (spec §4.F).
func (w *Workspace[S]) SetCalibratedParameters(x []float64, withGradient bool) S {
	w.ax = make([]S, w.a)
	for i, v := range x {
		if withGradient {
			w.ax[i] = w.factory.Seeded(w.a, i, v)
		} else {
			w.ax[i] = w.factory.Const(v, w.a)
		}
	}

	dim := int(w.d)
	penalty := w.factory.Const(0, w.a)
	for l := 0; l < w.s; l++ {
		penalty = penalty.Add(w.normaliseGroup(l*dim, dim))
	}
	penalty = penalty.Add(w.normaliseGroup(dim*w.s, w.s))

	w.piExpanded = NewGenMatrix[S](w.s, w.a, w.factory)
	group := w.s / dim
	for l := 0; l < w.s; l++ {
		base := (l % group) * dim
		for k := 0; k < dim; k++ {
			w.piExpanded.Set(base+k, l, w.ax[l*dim+k])
		}
	}
	w.piPowerCache = NewGenPowerCache[S](w.piExpanded, w.factory, w.a)

	if len(w.stateDistrApprox) >= w.s {
		copy(w.stateDistrApprox[0:w.s], w.ax[dim*w.s:dim*w.s+w.s])
	}
	w.reduceInto(w.stateDistrApprox[0:w.s], w.pApprox[0:dim])

	return penalty
}

// reduceInto sums a lifted-state distribution over all but the newest
// category, writing the D-length marginal into out (spec §4.H step 2's
// "reduce", and §4.A's fastest-varying-at-0 flattening convention: the
// newest category is flat index modulo D).
func (w *Workspace[S]) reduceInto(stateDistr []S, out []S) {
	dim := int(w.d)
	zero := w.factory.Const(0, w.a)
	for k := 0; k < dim; k++ {
		out[k] = zero
	}
	for s := 0; s < len(stateDistr); s++ {
		k := s % dim
		out[k] = out[k].Add(stateDistr[s])
	}
}

// StepForward advances state_distr_approx/p_approx from column t-1 to column
// t by one application of pi_expanded, then reduces to the observed marginal
// (spec §4.H step 2).
func (w *Workspace[S]) StepForward(t int) {
	prev := w.StateDistrAt(t - 1)
	cur := w.StateDistrAt(t)
	zero := w.factory.Const(0, w.a)
	for row := 0; row < w.s; row++ {
		sum := zero
		for col := 0; col < w.s; col++ {
			if prev[col].Val() == 0 {
				continue
			}
			sum = sum.Add(w.piExpanded.At(row, col).Mul(prev[col]))
		}
		cur[row] = sum
	}
	w.reduceInto(cur, w.PApproxAt(t))
}

// PiPower returns element (k, l) of Pi^q in expanded form, growing the power
// cache on demand (spec §4.F, §4.D).
func (w *Workspace[S]) PiPower(q, k, l int) S {
	return w.piPowerCache.Power(q).At(k, l)
}

// PiExpandedMatrix returns the expanded S x S transition matrix built by the
// most recent SetCalibratedParameters call.
func (w *Workspace[S]) PiExpandedMatrix() *GenMatrix[S] { return w.piExpanded }

// PiPowerMatrix returns the full Pi^q expanded matrix.
func (w *Workspace[S]) PiPowerMatrix(q int) *GenMatrix[S] {
	return w.piPowerCache.Power(q)
}

// StateDistrAt returns a mutable view of state_distr_approx[:, t].
func (w *Workspace[S]) StateDistrAt(t int) []S {
	return w.stateDistrApprox[t*w.s : (t+1)*w.s]
}

// PApproxAt returns a mutable view of p_approx[:, t].
func (w *Workspace[S]) PApproxAt(t int) []S {
	dim := int(w.d)
	return w.pApprox[t*dim : (t+1)*dim]
}

// Dim, StateDimOf, ArgDimOf expose the workspace's derived sizes.
func (w *Workspace[S]) Dim() int      { return int(w.d) }
func (w *Workspace[S]) StateDimOf() int { return w.s }
func (w *Workspace[S]) ArgDimOf() int   { return w.a }

// PiCompactAt returns the (k, l) entry of the compact D x S transition
// matrix directly out of ax, for use by regularisers (spec §4.G).
func (w *Workspace[S]) PiCompactAt(k, l int) S {
	return w.ax[l*int(w.d)+k]
}

// Q0At returns the i-th entry of q0 directly out of ax.
func (w *Workspace[S]) Q0At(i int) S {
	return w.ax[int(w.d)*w.s+i]
}

// Factory exposes the workspace's scalar factory, for regularisers building
// intermediate constants at the same AD level.
func (w *Workspace[S]) Factory() ScalarFactory[S] { return w.factory }
