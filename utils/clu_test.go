package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLU(t *testing.T) {
	A := NewCMatrix(3, 3, []complex128{
		0, 2 + 1i, 1,
		1i, 1, -1,
		3, 0, 2 - 2i,
	})
	lu := NewCLU(A)
	assert.False(t, lu.Perturbed)
	b := []complex128{1, 2i, -3 + 1i}
	{ // A x = b
		x := lu.Solve(b, false)
		r := A.MulVec(x)
		for i := range b {
			nearC(t, b[i], r[i], 1.e-13)
		}
	}
	{ // A^T x = b
		x := lu.Solve(b, true)
		r := A.MulVecT(x)
		for i := range b {
			nearC(t, b[i], r[i], 1.e-13)
		}
	}
	{ // Matrix right hand side
		X := lu.SolveMatrix(NewCIdentity(3), false)
		I := A.Mul(X)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				want := complex128(0)
				if i == j {
					want = 1
				}
				nearC(t, want, I.At(i, j), 1.e-13)
			}
		}
	}
	{ // Determinant by cofactor expansion
		var det complex128
		det += A.At(0, 0) * (A.At(1, 1)*A.At(2, 2) - A.At(1, 2)*A.At(2, 1))
		det -= A.At(0, 1) * (A.At(1, 0)*A.At(2, 2) - A.At(1, 2)*A.At(2, 0))
		det += A.At(0, 2) * (A.At(1, 0)*A.At(2, 1) - A.At(1, 1)*A.At(2, 0))
		nearC(t, det, lu.Det(), 1.e-12)
	}
	{ // Exactly singular: the solve stays finite and points along the null vector
		S := NewCMatrix(2, 2, []complex128{
			1, 1i,
			1i, -1,
		})
		slu := NewCLU(S)
		assert.True(t, slu.Perturbed)
		x := slu.Solve([]complex128{1, 0}, false)
		assert.True(t, CIsFinite(x))
		r := S.MulVec(x)
		assert.Less(t, CNorm(r)/CNorm(x), 1.e-10)
	}
	assert.Panics(t, func() { NewCLU(NewCMatrix(2, 3)) })
}
