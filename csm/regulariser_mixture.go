package csm

import "fmt"

// MixtureRegulariser combines child regularisers as a weighted sum, and
// forwards CheckCompatibility to each (spec §4.G).
type MixtureRegulariser[S Scalar[S]] struct {
	Children []Regulariser[S]
	Weights  []float64
}

// CheckCompatibility forwards to every child.
func (r MixtureRegulariser[S]) CheckCompatibility(d, s int) error {
	if len(r.Children) != len(r.Weights) {
		return fmt.Errorf("%w: mixture has %d children but %d weights", ErrInvalidArgument, len(r.Children), len(r.Weights))
	}
	for _, c := range r.Children {
		if err := c.CheckCompatibility(d, s); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements Regulariser.
func (r MixtureRegulariser[S]) Apply(ws *Workspace[S]) S {
	factory := ws.Factory()
	n := ws.ArgDimOf()
	total := factory.Const(0, n)
	for i, c := range r.Children {
		total = total.Add(c.Apply(ws).Mul(factory.Const(r.Weights[i], n)))
	}
	return total
}

var (
	_ Regulariser[AD0] = MixtureRegulariser[AD0]{}
	_ Regulariser[AD1] = MixtureRegulariser[AD1]{}
)
