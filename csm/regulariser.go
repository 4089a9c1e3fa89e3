package csm

// Regulariser contributes an additional penalty term to the objective,
// computed from a workspace's current Pi/q0 (spec §4.G). The nearest-neighbour
// and target terms are non-negative; the sign of the entropy and mixture
// terms follows their weights. Apply is
// called once per objective evaluation after SetCalibratedParameters.
// CheckCompatibility is called at construction to validate shape
// requirements against the model's (D, S) before the regulariser is ever
// applied.
type Regulariser[S Scalar[S]] interface {
	Apply(ws *Workspace[S]) S
	CheckCompatibility(d, s int) error
}

// plogp returns p*log(p), with the convention 0*log(0) = 0.
func plogp[S Scalar[S]](p S, factory ScalarFactory[S], n int) S {
	if p.Val() == 0 {
		return factory.Const(0, n)
	}
	return p.Mul(p.Log())
}
