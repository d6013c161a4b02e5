package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestJacobiGQ(t *testing.T) {
	{ // Legendre case integrates polynomials up to degree 2N+1
		x, w := JacobiGQ(0, 0, 4)
		require.Len(t, x, 5)
		assert.InDelta(t, 2., floats.Sum(w), 1.e-13)
		for p := 0; p <= 9; p++ {
			var sum float64
			for i := range x {
				sum += w[i] * math.Pow(x[i], float64(p))
			}
			exact := 0.
			if p%2 == 0 {
				exact = 2. / float64(p+1)
			}
			assert.InDelta(t, exact, sum, 1.e-13)
		}
	}
	{ // (1-x) weight
		x, w := JacobiGQ(1, 0, 3)
		assert.InDelta(t, 2., floats.Sum(w), 1.e-13)
		var sum float64 // int (1-x) x^2 dx = 2/3
		for i := range x {
			sum += w[i] * x[i] * x[i]
		}
		assert.InDelta(t, 2./3., sum, 1.e-13)
	}
	{ // Single point
		x, w := JacobiGQ(1, 0, 0)
		assert.InDelta(t, -1./3., x[0], 1.e-15)
		assert.InDelta(t, 2., w[0], 1.e-15)
	}
}

func TestGaussLegendre(t *testing.T) {
	x, w := GaussLegendre(6, -1, 3)
	assert.InDelta(t, 4., floats.Sum(w), 1.e-13)
	var sum float64
	for i := range x {
		sum += w[i] * x[i] * x[i] * x[i]
	}
	assert.InDelta(t, 20., sum, 1.e-12) // (81-1)/4
	assert.Panics(t, func() { GaussLegendre(0, 0, 1) })
}

func TestTriangleRule(t *testing.T) {
	tr := NewTriangleRule(MinTriangleOrder)
	require.Equal(t, MinTriangleOrder*MinTriangleOrder, tr.Len())
	assert.InDelta(t, 0.5, floats.Sum(tr.W), 1.e-14)
	for n := range tr.W {
		assert.True(t, tr.Xi[n] > 0 && tr.Eta[n] > 0 && tr.Xi[n]+tr.Eta[n] < 1)
	}
	{ // Monomials: int xi^a eta^b = a! b! / (a+b+2)!
		fact := func(n int) float64 { return math.Gamma(float64(n + 1)) }
		for a := 0; a < 5; a++ {
			for b := 0; b < 5; b++ {
				var sum float64
				for n := range tr.W {
					sum += tr.W[n] * math.Pow(tr.Xi[n], float64(a)) * math.Pow(tr.Eta[n], float64(b))
				}
				assert.InDelta(t, fact(a)*fact(b)/fact(a+b+2), sum, 1.e-14)
			}
		}
	}
	{ // Mapping onto a physical triangle
		pts, w := tr.Points([3]float64{0, 0, 1}, [3]float64{2, 0, 1}, [3]float64{0, 3, 1}, 3)
		assert.InDelta(t, 3., floats.Sum(w), 1.e-13)
		var cx float64
		for n := range w {
			cx += w[n] * pts[n][0]
			assert.Equal(t, 1., pts[n][2])
		}
		assert.InDelta(t, 2./3., cx/3, 1.e-13)
	}
	{ // Order selection
		assert.Equal(t, MinTriangleOrder, OrderForTolerance(1.e-3))
		assert.Equal(t, 32, OrderForTolerance(1.e-6))
		assert.Equal(t, MaxTriangleOrder, OrderForTolerance(1.e-16))
		assert.Equal(t, MinTriangleOrder, OrderForTolerance(0))
	}
}
