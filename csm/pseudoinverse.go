package csm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PseudoInverseSVD computes the Moore-Penrose pseudo-inverse of a general
// (possibly non-symmetric) matrix via singular value decomposition,
// treating singular values below tol as zero (spec §4.I, backward-time
// extrapolation).
func PseudoInverseSVD(a *mat.Dense, tol float64) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: SVD factorisation failed", ErrSingular)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r, c := a.Dims()
	sigmaPlus := mat.NewDense(c, r, nil)
	for i, sv := range values {
		if sv > tol {
			sigmaPlus.Set(i, i, 1/sv)
		}
	}
	var vSigma, result mat.Dense
	vSigma.Mul(&v, sigmaPlus)
	result.Mul(&vSigma, u.T())
	return &result, nil
}

// PseudoInverseSym computes the Moore-Penrose pseudo-inverse of a symmetric
// matrix via its eigendecomposition, treating eigenvalues below tol as zero
// (spec §4.H confidence-interval extrapolation: the Hessian is always
// symmetric, so an eigendecomposition both serves the pseudo-inverse and
// expresses the spec's eigenvalue floor directly).
func PseudoInverseSym(a *mat.SymDense, tol float64) (*mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, fmt.Errorf("%w: symmetric eigendecomposition failed", ErrSingular)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n, _ := a.Dims()
	out := mat.NewDense(n, n, nil)
	for k, lambda := range values {
		if lambda <= tol {
			continue
		}
		inv := 1 / lambda
		for i := 0; i < n; i++ {
			vi := vectors.At(i, k)
			if vi == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.Set(i, j, out.At(i, j)+inv*vi*vectors.At(j, k))
			}
		}
	}
	return out, nil
}
