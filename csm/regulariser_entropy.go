package csm

// EntropyRegulariser adds w_Pi * Σ p log p over Π's entries plus the
// analogous term for q0. The sign of the weights decides direction: negative
// weights reward high entropy (spec §4.G).
type EntropyRegulariser[S Scalar[S]] struct {
	WeightPi float64
	WeightQ0 float64
}

// CheckCompatibility accepts any (d, s): the entropy term has no external
// shape dependency.
func (r EntropyRegulariser[S]) CheckCompatibility(d, s int) error { return nil }

// Apply implements Regulariser.
func (r EntropyRegulariser[S]) Apply(ws *Workspace[S]) S {
	factory := ws.Factory()
	n := ws.ArgDimOf()
	dim := ws.Dim()
	s := ws.StateDimOf()

	piTerm := factory.Const(0, n)
	for l := 0; l < s; l++ {
		for k := 0; k < dim; k++ {
			piTerm = piTerm.Add(plogp(ws.PiCompactAt(k, l), factory, n))
		}
	}
	q0Term := factory.Const(0, n)
	for i := 0; i < s; i++ {
		q0Term = q0Term.Add(plogp(ws.Q0At(i), factory, n))
	}

	return piTerm.Mul(factory.Const(r.WeightPi, n)).Add(q0Term.Mul(factory.Const(r.WeightQ0, n)))
}

var (
	_ Regulariser[AD0] = EntropyRegulariser[AD0]{}
	_ Regulariser[AD1] = EntropyRegulariser[AD1]{}
)
