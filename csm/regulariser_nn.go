package csm

// NearestNeighbourRegulariser penalises probability mass assigned to
// transitions whose source/next category distance exceeds DMax, encouraging
// ordinal-scale moves (spec §4.G, scenario S6).
type NearestNeighbourRegulariser[S Scalar[S]] struct {
	DMax int
}

// CheckCompatibility accepts any (d, s).
func (r NearestNeighbourRegulariser[S]) CheckCompatibility(d, s int) error { return nil }

// Apply implements Regulariser: Σ Π[k,l]^2 over pairs where the distance
// between the source state's last category (l mod D) and the next category
// (k) exceeds DMax.
func (r NearestNeighbourRegulariser[S]) Apply(ws *Workspace[S]) S {
	factory := ws.Factory()
	n := ws.ArgDimOf()
	dim := ws.Dim()
	s := ws.StateDimOf()

	total := factory.Const(0, n)
	for l := 0; l < s; l++ {
		sourceCat := l % dim
		for k := 0; k < dim; k++ {
			dist := k - sourceCat
			if dist < 0 {
				dist = -dist
			}
			if dist > r.DMax {
				p := ws.PiCompactAt(k, l)
				total = total.Add(p.Mul(p))
			}
		}
	}
	return total
}

var (
	_ Regulariser[AD0] = NearestNeighbourRegulariser[AD0]{}
	_ Regulariser[AD1] = NearestNeighbourRegulariser[AD1]{}
)
