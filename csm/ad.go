package csm

import "math"

// Scalar is the arithmetic contract shared by AD0 and AD1, allowing
// csm/workspace.go and csm/objective.go to write their numerically heavy
// inner loops once and instantiate them at AD level 0 (value + gradient) or
// level 1 (value + gradient + Hessian). This is the Go-generic analogue of
// the original's AD<L> C++ template parameter (spec §4.E, §9 "AD vs
// hand-written gradients").
type Scalar[S any] interface {
	Add(S) S
	Sub(S) S
	Mul(S) S
	Div(S) S
	Log() S
	Exp() S
	Val() float64
}

// AD0 is a forward-mode dual number tracking a value and a gradient vector
// over a fixed number of tracked variables.
type AD0 struct {
	val  float64
	grad []float64
}

// NewAD0Const returns a constant (all-zero gradient) AD0 over n tracked
// variables.
func NewAD0Const(v float64, n int) AD0 {
	return AD0{val: v, grad: make([]float64, n)}
}

// NewAD0Seeded returns a variable AD0 whose i-th derivative is 1 and all
// others are 0, over n tracked variables.
func NewAD0Seeded(n, i int, v float64) AD0 {
	g := make([]float64, n)
	g[i] = 1
	return AD0{val: v, grad: g}
}

// Val returns the underlying value.
func (a AD0) Val() float64 { return a.val }

// Grad returns the i-th partial derivative.
func (a AD0) Grad(i int) float64 { return a.grad[i] }

// NTracked returns the number of tracked variables.
func (a AD0) NTracked() int { return len(a.grad) }

func (a AD0) Add(b AD0) AD0 {
	out := AD0{val: a.val + b.val, grad: make([]float64, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i] + b.grad[i]
	}
	return out
}

func (a AD0) Sub(b AD0) AD0 {
	out := AD0{val: a.val - b.val, grad: make([]float64, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i] - b.grad[i]
	}
	return out
}

func (a AD0) Mul(b AD0) AD0 {
	out := AD0{val: a.val * b.val, grad: make([]float64, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i]*b.val + a.val*b.grad[i]
	}
	return out
}

func (a AD0) Div(b AD0) AD0 {
	out := AD0{val: a.val / b.val, grad: make([]float64, len(a.grad))}
	bb := b.val * b.val
	for i := range out.grad {
		out.grad[i] = (a.grad[i]*b.val - a.val*b.grad[i]) / bb
	}
	return out
}

func (a AD0) Log() AD0 {
	out := AD0{val: math.Log(a.val), grad: make([]float64, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i] / a.val
	}
	return out
}

func (a AD0) Exp() AD0 {
	v := math.Exp(a.val)
	out := AD0{val: v, grad: make([]float64, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i] * v
	}
	return out
}

// AddInPlace, SubInPlace, MulInPlace, DivInPlace are the in-place compound
// operators required by spec §4.E.
func (a *AD0) AddInPlace(b AD0) { *a = a.Add(b) }
func (a *AD0) SubInPlace(b AD0) { *a = a.Sub(b) }
func (a *AD0) MulInPlace(b AD0) { *a = a.Mul(b) }
func (a *AD0) DivInPlace(b AD0) { *a = a.Div(b) }

// AD1 nests an AD0 as its value type, so that its Grad(i) carries the first-
// and second-order derivatives of the scalar-valued function in which it is
// used: AD1.Grad(i).Val() is d/dx_i, and AD1.Grad(i).Grad(j) is
// d^2/dx_i dx_j.
type AD1 struct {
	val  AD0
	grad []AD0
}

// NewAD1Const returns a constant AD1 (zero first- and second-order
// derivatives) over n tracked variables.
func NewAD1Const(v float64, n int) AD1 {
	grad := make([]AD0, n)
	for i := range grad {
		grad[i] = NewAD0Const(0, n)
	}
	return AD1{val: NewAD0Const(v, n), grad: grad}
}

// NewAD1Seeded returns a variable AD1 seeded as the i-th of n tracked
// variables: its first derivative wrt itself is the constant 1, wrt others 0;
// all second derivatives are 0 (a variable is linear in itself).
func NewAD1Seeded(n, i int, v float64) AD1 {
	grad := make([]AD0, n)
	for j := range grad {
		delta := 0.0
		if i == j {
			delta = 1
		}
		grad[j] = NewAD0Const(delta, n)
	}
	return AD1{val: NewAD0Seeded(n, i, v), grad: grad}
}

// Val returns the underlying double value.
func (a AD1) Val() float64 { return a.val.Val() }

// DVal returns the first-order AD0 value (value + gradient).
func (a AD1) DVal() AD0 { return a.val }

// Grad returns the i-th partial derivative, itself an AD0 carrying the
// second-order derivatives.
func (a AD1) Grad(i int) AD0 { return a.grad[i] }

// NTracked returns the number of tracked variables.
func (a AD1) NTracked() int { return len(a.grad) }

func (a AD1) Add(b AD1) AD1 {
	out := AD1{val: a.val.Add(b.val), grad: make([]AD0, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i].Add(b.grad[i])
	}
	return out
}

func (a AD1) Sub(b AD1) AD1 {
	out := AD1{val: a.val.Sub(b.val), grad: make([]AD0, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i].Sub(b.grad[i])
	}
	return out
}

func (a AD1) Mul(b AD1) AD1 {
	out := AD1{val: a.val.Mul(b.val), grad: make([]AD0, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i].Mul(b.val).Add(a.val.Mul(b.grad[i]))
	}
	return out
}

func (a AD1) Div(b AD1) AD1 {
	out := AD1{val: a.val.Div(b.val), grad: make([]AD0, len(a.grad))}
	bb := b.val.Mul(b.val)
	for i := range out.grad {
		out.grad[i] = a.grad[i].Mul(b.val).Sub(a.val.Mul(b.grad[i])).Div(bb)
	}
	return out
}

func (a AD1) Log() AD1 {
	out := AD1{val: a.val.Log(), grad: make([]AD0, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i].Div(a.val)
	}
	return out
}

func (a AD1) Exp() AD1 {
	v := a.val.Exp()
	out := AD1{val: v, grad: make([]AD0, len(a.grad))}
	for i := range out.grad {
		out.grad[i] = a.grad[i].Mul(v)
	}
	return out
}

func (a *AD1) AddInPlace(b AD1) { *a = a.Add(b) }
func (a *AD1) SubInPlace(b AD1) { *a = a.Sub(b) }
func (a *AD1) MulInPlace(b AD1) { *a = a.Mul(b) }
func (a *AD1) DivInPlace(b AD1) { *a = a.Div(b) }

var (
	_ Scalar[AD0] = AD0{}
	_ Scalar[AD1] = AD1{}
)
