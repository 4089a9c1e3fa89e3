package csm

import "gonum.org/v1/gonum/mat"

// MatrixPowerCache lazily computes and memoises powers of a square matrix by
// divide-and-conquer squaring: A^q = A^floor(q/2) * A^ceil(q/2). Not safe for
// concurrent use, matching the single-threaded-per-evaluation concurrency
// model of the objective that owns it.
type MatrixPowerCache struct {
	a      *mat.Dense
	powers map[int]*mat.Dense
}

// NewMatrixPowerCache seeds the cache with A^1 = a.
func NewMatrixPowerCache(a *mat.Dense) *MatrixPowerCache {
	c := &MatrixPowerCache{a: a, powers: make(map[int]*mat.Dense)}
	c.powers[1] = a
	return c
}

// Power returns A^q, computing and memoising it (and any missing
// intermediate powers) on demand.
func (c *MatrixPowerCache) Power(q int) *mat.Dense {
	if q < 1 {
		panic("matrixpower: q must be >= 1")
	}
	if p, ok := c.powers[q]; ok {
		return p
	}
	lo := q / 2
	hi := q - lo
	a := c.Power(lo)
	b := c.Power(hi)
	n, _ := c.a.Dims()
	out := mat.NewDense(n, n, nil)
	out.Mul(a, b)
	c.powers[q] = out
	return out
}

// Highest returns the largest power currently memoised.
func (c *MatrixPowerCache) Highest() int {
	best := 0
	for q := range c.powers {
		if q > best {
			best = q
		}
	}
	return best
}
