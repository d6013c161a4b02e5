package utils

import (
	"fmt"
	"math"
	"math/cmplx"
)

// CLU is an LU factorization with partial pivoting of a square complex
// matrix, PA = LU. gonum's LU is real only.
//
// A zero (or vanishing) pivot is replaced by eps*|A|max rather than
// rejected: inverse iteration deliberately solves with matrices that are
// singular to working precision, and the replaced pivot steers the solution
// onto the null vector. Perturbed reports whether that happened.
type CLU struct {
	lu        []complex128
	piv       []int
	n         int
	Perturbed bool
}

func NewCLU(A *CMatrix) (f *CLU) {
	var (
		nr, nc = A.Dims()
		n      = nr
	)
	if nr != nc {
		panic(fmt.Errorf("CLU requires a square matrix, have (%d,%d)", nr, nc))
	}
	f = &CLU{
		lu:  make([]complex128, n*n),
		piv: make([]int, n),
		n:   n,
	}
	copy(f.lu, A.Data())
	tiny := 2.2e-16 * A.MaxAbs()
	if tiny == 0 {
		tiny = math.SmallestNonzeroFloat64
	}
	lu := f.lu
	for k := 0; k < n; k++ {
		p := k
		max := cmplx.Abs(lu[k*n+k])
		for i := k + 1; i < n; i++ {
			if a := cmplx.Abs(lu[i*n+k]); a > max {
				max = a
				p = i
			}
		}
		f.piv[k] = p
		if p != k {
			for j := 0; j < n; j++ {
				lu[k*n+j], lu[p*n+j] = lu[p*n+j], lu[k*n+j]
			}
		}
		if max <= tiny {
			lu[k*n+k] = complex(tiny, 0)
			f.Perturbed = true
		}
		pivot := lu[k*n+k]
		for i := k + 1; i < n; i++ {
			l := lu[i*n+k] / pivot
			lu[i*n+k] = l
			if l == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				lu[i*n+j] -= l * lu[k*n+j]
			}
		}
	}
	return
}

// Solve returns x with A x = b, or A^T x = b when trans is true (no
// conjugation).
func (f *CLU) Solve(b []complex128, trans bool) (x []complex128) {
	var (
		n  = f.n
		lu = f.lu
	)
	if len(b) != n {
		panic(fmt.Errorf("dimension mismatch in Solve: n = %d, len(b) = %d", n, len(b)))
	}
	x = make([]complex128, n)
	copy(x, b)
	if !trans {
		for k := 0; k < n; k++ {
			if p := f.piv[k]; p != k {
				x[k], x[p] = x[p], x[k]
			}
		}
		for i := 1; i < n; i++ { // L y = Pb
			var sum complex128
			for j := 0; j < i; j++ {
				sum += lu[i*n+j] * x[j]
			}
			x[i] -= sum
		}
		for i := n - 1; i >= 0; i-- { // U x = y
			var sum complex128
			for j := i + 1; j < n; j++ {
				sum += lu[i*n+j] * x[j]
			}
			x[i] = (x[i] - sum) / lu[i*n+i]
		}
		return
	}
	// A^T = U^T L^T P
	for i := 0; i < n; i++ { // U^T z = b
		var sum complex128
		for j := 0; j < i; j++ {
			sum += lu[j*n+i] * x[j]
		}
		x[i] = (x[i] - sum) / lu[i*n+i]
	}
	for i := n - 1; i >= 0; i-- { // L^T w = z
		var sum complex128
		for j := i + 1; j < n; j++ {
			sum += lu[j*n+i] * x[j]
		}
		x[i] -= sum
	}
	for k := n - 1; k >= 0; k-- {
		if p := f.piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
	}
	return
}

// SolveMatrix solves column by column.
func (f *CLU) SolveMatrix(B *CMatrix, trans bool) (X *CMatrix) {
	var (
		nr, nc = B.Dims()
	)
	X = NewCMatrix(nr, nc)
	for j := 0; j < nc; j++ {
		X.SetCol(j, f.Solve(B.Col(j), trans))
	}
	return
}

func (f *CLU) Det() (det complex128) {
	det = 1
	for k := 0; k < f.n; k++ {
		det *= f.lu[k*f.n+k]
		if f.piv[k] != k {
			det = -det
		}
	}
	return
}
