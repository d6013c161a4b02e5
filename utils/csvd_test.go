package utils

import (
	"math/cmplx"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexRangeBasis(t *testing.T) {
	{ // A rank two product of complex factors
		U := NewCMatrix(4, 2, []complex128{
			1, 1i,
			2i, 0,
			0, 1,
			1 - 1i, 3,
		})
		V := NewCMatrix(2, 3, []complex128{
			1, 0, 1i,
			0, 2, 1,
		})
		A := U.Mul(V)
		Q, sv, rank, err := ComplexRangeBasis(A, 1.e-10)
		require.NoError(t, err)
		assert.Equal(t, 2, rank)
		assert.Len(t, sv, 3)
		assert.Less(t, sv[2]/sv[0], 1.e-12)
		nr, nc := Q.Dims()
		require.Equal(t, [2]int{4, 2}, [2]int{nr, nc})
		// Orthonormal columns
		QhQ := Q.ConjTranspose().Mul(Q)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				want := complex128(0)
				if i == j {
					want = 1
				}
				nearC(t, want, QhQ.At(i, j), 1.e-12)
			}
		}
		// Q Q^H A = A
		P := Q.Mul(Q.ConjTranspose()).Mul(A)
		for i, val := range A.Data() {
			nearC(t, val, P.Data()[i], 1.e-12)
		}
	}
	{ // Zero matrix has rank zero
		Q, _, rank, err := ComplexRangeBasis(NewCMatrix(3, 2), 1.e-10)
		require.NoError(t, err)
		assert.Equal(t, 0, rank)
		_, nc := Q.Dims()
		assert.Equal(t, 0, nc)
	}
	{ // Non-finite input is rejected
		A := NewCMatrix(2, 2)
		A.Set(0, 0, cmplx.Inf())
		_, _, _, err := ComplexRangeBasis(A, 1.e-10)
		assert.Error(t, err)
	}
}

func TestComplexEigen(t *testing.T) {
	B := NewCMatrix(3, 3, []complex128{
		1 + 2i, 1, 0,
		0, 3 + 4i, 2i,
		0, 0, -1 - 1i,
	})
	vals, vecs, ok := ComplexEigen(B)
	require.True(t, ok)
	require.Len(t, vals, 3)
	got := append([]complex128{}, vals...)
	sort.Slice(got, func(i, j int) bool { return real(got[i]) < real(got[j]) })
	nearC(t, -1-1i, got[0], 1.e-10)
	nearC(t, 1+2i, got[1], 1.e-10)
	nearC(t, 3+4i, got[2], 1.e-10)
	for j, mu := range vals {
		u := vecs.Col(j)
		assert.InDelta(t, 1., CNorm(u), 1.e-12)
		Bu := B.MulVec(u)
		for i := range u {
			nearC(t, mu*u[i], Bu[i], 1.e-9)
		}
	}
	{ // Real eigenvalues appear twice in the embedding
		vals, vecs, ok := ComplexEigen(NewCDiagonal([]complex128{-4, -9}))
		require.True(t, ok)
		got := append([]complex128{}, vals...)
		sort.Slice(got, func(i, j int) bool { return real(got[i]) < real(got[j]) })
		nearC(t, -9, got[0], 1.e-12)
		nearC(t, -4, got[1], 1.e-12)
		for j, mu := range vals {
			u := vecs.Col(j)
			Bu := NewCDiagonal([]complex128{-4, -9}).MulVec(u)
			for i := range u {
				nearC(t, mu*u[i], Bu[i], 1.e-12)
			}
		}
	}
	{ // A real matrix with a conjugate pair
		R := NewCMatrix(2, 2, []complex128{0, -1, 1, 0})
		vals, vecs, ok := ComplexEigen(R)
		require.True(t, ok)
		got := append([]complex128{}, vals...)
		sort.Slice(got, func(i, j int) bool { return imag(got[i]) < imag(got[j]) })
		nearC(t, -1i, got[0], 1.e-12)
		nearC(t, 1i, got[1], 1.e-12)
		for j, mu := range vals {
			u := vecs.Col(j)
			Ru := R.MulVec(u)
			for i := range u {
				nearC(t, mu*u[i], Ru[i], 1.e-12)
			}
		}
	}
	{ // Scalar case
		vals, vecs, ok := ComplexEigen(NewCMatrix(1, 1, []complex128{2 - 1i}))
		require.True(t, ok)
		assert.Equal(t, []complex128{2 - 1i}, vals)
		assert.Equal(t, complex(1, 0), vecs.At(0, 0))
	}
}
