package utils

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ComplexRangeBasis returns an orthonormal basis Q for the numerical range of
// the complex matrix A, keeping the directions whose singular values exceed
// thresh*sigma_max.
//
// The decomposition runs on the real embedding of A, in which every complex
// singular value appears twice. sv holds the complex singular values in
// descending order.
func ComplexRangeBasis(A *CMatrix, thresh float64) (Q *CMatrix, sv []float64, rank int, err error) {
	var (
		nr, nc = A.Dims()
		svd    mat.SVD
		U      mat.Dense
	)
	if nr == 0 || nc == 0 {
		return NewCMatrix(nr, 0), nil, 0, nil
	}
	if !A.IsFinite() {
		return nil, nil, 0, fmt.Errorf("range basis of a non-finite matrix")
	}
	if ok := svd.Factorize(A.Embed(), mat.SVDThin); !ok {
		return nil, nil, 0, fmt.Errorf("SVD factorization failed for (%d,%d) matrix", nr, nc)
	}
	vals := svd.Values(nil)
	svd.UTo(&U)
	sv = make([]float64, 0, len(vals)/2)
	for i := 0; i < len(vals); i += 2 {
		sv = append(sv, vals[i])
	}
	var nReal int
	if len(vals) > 0 && vals[0] > 0 {
		for _, val := range vals {
			if val > thresh*vals[0] {
				nReal++
			}
		}
	}
	rank = (nReal + 1) / 2
	// [a;b] -> a+ib for every retained real left vector
	cand := make([][]complex128, nReal)
	for j := 0; j < nReal; j++ {
		v := make([]complex128, nr)
		for i := range v {
			v[i] = complex(U.At(i, j), U.At(i+nr, j))
		}
		cand[j] = v
	}
	basis := pivotedGramSchmidt(cand, rank)
	rank = len(basis)
	Q = NewCMatrix(nr, rank)
	for j, v := range basis {
		Q.SetCol(j, v)
	}
	return
}

// pivotedGramSchmidt orthonormalizes up to k of the vectors, always taking
// the remaining vector of largest residual norm next.
func pivotedGramSchmidt(vecs [][]complex128, k int) (basis [][]complex128) {
	var (
		used = make([]bool, len(vecs))
	)
	for len(basis) < k {
		var (
			best    = -1
			bestNrm float64
		)
		for j, v := range vecs {
			if used[j] {
				continue
			}
			if nrm := CNorm(v); nrm > bestNrm {
				best, bestNrm = j, nrm
			}
		}
		if best < 0 || bestNrm < 1.e-8 {
			break
		}
		used[best] = true
		q := CScale(complex(1/bestNrm, 0), vecs[best])
		basis = append(basis, q)
		for j, v := range vecs {
			if used[j] {
				continue
			}
			proj := DotC(q, v)
			for i := range v {
				v[i] -= proj * q[i]
			}
		}
	}
	return
}

// ComplexEigen computes the eigenvalues and right eigenvectors of a square
// complex matrix.
//
// The real embedding of B has the eigenvalues of B together with their
// conjugates. An eigenvector [w1;w2] belonging to B projects onto
// u = w1 + i*w2 with |u| = sqrt(2)|w|, one belonging to the conjugate
// projects to zero, so the n best independent projections are kept.
func ComplexEigen(B *CMatrix) (vals []complex128, vecs *CMatrix, ok bool) {
	var (
		n, nc = B.Dims()
		eig   mat.Eigen
		W     mat.CDense
	)
	if n != nc {
		panic(fmt.Errorf("ComplexEigen requires a square matrix, have (%d,%d)", n, nc))
	}
	if n == 0 {
		return nil, NewCMatrix(0, 0), true
	}
	if n == 1 {
		return []complex128{B.At(0, 0)}, NewCMatrix(1, 1, []complex128{1}), true
	}
	if ok = eig.Factorize(B.Embed(), mat.EigenRight); !ok {
		return
	}
	all := eig.Values(nil)
	eig.VectorsTo(&W)
	type cand struct {
		val   complex128
		u     []complex128
		ratio float64
	}
	cands := make([]cand, len(all))
	for j := range all {
		var (
			u    = make([]complex128, n)
			wNrm float64
		)
		for i := 0; i < n; i++ {
			w1, w2 := W.At(i, j), W.At(i+n, j)
			u[i] = w1 + 1i*w2
			wNrm += sqAbs(w1) + sqAbs(w2)
		}
		var ratio float64
		if wNrm > 0 {
			ratio = CNorm(u) / math.Sqrt(wNrm)
		}
		cands[j] = cand{val: all[j], u: u, ratio: ratio}
	}
	// best projections first, skipping a vector that depends on those already
	// kept for the same eigenvalue: a real eigenvalue of B appears twice in
	// the embedding and both copies project onto the same u
	order := make([]int, len(cands))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return cands[order[a]].ratio > cands[order[b]].ratio })
	var (
		picked = make([]bool, len(cands))
		kept   []int
		basis  [][]complex128
	)
	for _, j := range order {
		if len(kept) == n {
			break
		}
		c := cands[j]
		var near [][]complex128
		for k, i := range kept {
			if cmplx.Abs(cands[i].val-c.val) <= 1.e-8*math.Max(1, cmplx.Abs(c.val)) {
				near = append(near, basis[k])
			}
		}
		res := make([]complex128, n)
		copy(res, c.u)
		for _, q := range near {
			proj := DotC(q, res)
			for i := range res {
				res[i] -= proj * q[i]
			}
		}
		nrm, uNrm := CNorm(res), CNorm(c.u)
		if uNrm == 0 || nrm <= 1.e-6*uNrm {
			continue
		}
		picked[j] = true
		kept = append(kept, j)
		basis = append(basis, CScale(complex(1/nrm, 0), res))
	}
	for _, j := range order { // too few independent vectors, fill by ratio
		if len(kept) == n {
			break
		}
		if !picked[j] {
			picked[j] = true
			kept = append(kept, j)
		}
	}
	vals = make([]complex128, 0, n)
	vecs = NewCMatrix(n, n)
	for _, j := range kept {
		c := cands[j]
		if nrm := CNorm(c.u); nrm > 0 {
			CScale(complex(1/nrm, 0), c.u)
		}
		vecs.SetCol(len(vals), c.u)
		vals = append(vals, c.val)
	}
	return
}

func sqAbs(c complex128) float64 {
	a := cmplx.Abs(c)
	return a * a
}
