package contour

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrate(c Contour, f func(s complex128) complex128) (sum complex128) {
	for _, p := range c.Points() {
		sum += p.W * f(p.S)
	}
	return
}

func pole(a complex128, order int) func(s complex128) complex128 {
	return func(s complex128) complex128 {
		return 1 / cmplx.Pow(s-a, complex(float64(order), 0))
	}
}

func assertNear(t *testing.T, want, have complex128, tol float64) {
	t.Helper()
	assert.InDeltaf(t, 0., cmplx.Abs(want-have), tol, "want %v, have %v", want, have)
}

func TestRectangular(t *testing.T) {
	r, err := NewRectangular(-1+0i, 5+6i, 40)
	require.NoError(t, err)
	assert.Equal(t, "rectangular", r.Name())
	assert.Len(t, r.Points(), 160)
	{ // Cauchy integrals
		assertNear(t, 2i*math.Pi, integrate(r, pole(1+2i, 1)), 1.e-10)
		assertNear(t, 2i*math.Pi, integrate(r, pole(3+4i, 1)), 1.e-10)
		assertNear(t, 0, integrate(r, pole(7+2i, 1)), 1.e-10)
		assertNear(t, 0, integrate(r, pole(2+3i, 2)), 1.e-10)
		assertNear(t, 0, integrate(r, func(s complex128) complex128 { return s * s * s }), 1.e-9)
	}
	{ // Region and bounding circle
		assert.True(t, r.Contains(1+2i))
		assert.False(t, r.Contains(-2+2i))
		assert.False(t, r.Contains(5+3i)) // boundary is outside
		c, rad := r.Center()
		assert.Equal(t, 2+3i, c)
		assert.InDelta(t, math.Sqrt(18), rad, 1.e-15)
	}
	{ // Points are a copy
		pts := r.Points()
		pts[0].S = 100
		assert.NotEqual(t, complex(100, 0), r.Points()[0].S)
	}
	{ // Invalid
		_, err := NewRectangular(5+6i, -1, 10)
		assert.True(t, errors.Is(err, ErrInvalidContour))
		_, err = NewRectangular(-1, 5+6i, 0)
		assert.ErrorIs(t, err, ErrInvalidContour)
	}
}

func TestExternal(t *testing.T) {
	e, err := NewExternal(-10+10i, 0.2, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, "external", e.Name())
	assert.Len(t, e.Points(), 5*60)
	{ // The path closes on itself
		pts := e.Points()
		var length complex128
		for _, p := range pts {
			length += p.W
		}
		assertNear(t, 0, length, 1.e-12)
	}
	{ // Poles in the region count, the origin does not
		assertNear(t, 2i*math.Pi, integrate(e, pole(-3+4i, 1)), 1.e-9)
		assertNear(t, 2i*math.Pi, integrate(e, pole(-0.5+1.5i, 1)), 1.e-9)
		assertNear(t, 0, integrate(e, pole(0, 1)), 1.e-10)
		assertNear(t, 0, integrate(e, pole(-0.3+0.3i, 1)), 1.e-9)
		assertNear(t, 0, integrate(e, pole(3+4i, 1)), 1.e-9)
	}
	{ // Region
		assert.True(t, e.Contains(-3+4i))
		assert.True(t, e.Contains(0.1+5i)) // overlap past the imaginary axis
		assert.True(t, e.Contains(-5-0.1i))
		assert.False(t, e.Contains(0))
		assert.False(t, e.Contains(-0.5+0.5i))
		assert.False(t, e.Contains(1+1i))
		c, rad := e.Center()
		assertNear(t, -4.9+4.9i, c, 1.e-14)
		assert.InDelta(t, 5.1*math.Sqrt2, rad, 1.e-13)
	}
	{ // Invalid
		_, err := NewExternal(-10+10i, 1.5, 1, 10)
		assert.ErrorIs(t, err, ErrInvalidContour)
		_, err = NewExternal(-0.5+10i, 0.2, 1, 10)
		assert.ErrorIs(t, err, ErrInvalidContour)
		_, err = NewExternal(-10-10i, 0.2, 1, 10)
		assert.ErrorIs(t, err, ErrInvalidContour)
		_, err = NewExternal(-10+10i, -0.1, 1, 10)
		assert.ErrorIs(t, err, ErrInvalidContour)
	}
}

func TestSupplied(t *testing.T) {
	// Trapezoidal rule on a circle of radius 2 about 1+1i
	var (
		n   = 64
		pts = make([]Point, n)
	)
	for k := range pts {
		theta := 2 * math.Pi * float64(k) / float64(n)
		s := 1 + 1i + cmplx.Rect(2, theta)
		pts[k] = Point{S: s, W: complex(2*math.Pi/float64(n), 0) * 1i * (s - (1 + 1i))}
	}
	sp, err := NewSupplied(pts)
	require.NoError(t, err)
	assert.Equal(t, "supplied", sp.Name())
	assertNear(t, 2i*math.Pi, integrate(sp, pole(1.5+0.5i, 1)), 1.e-10)
	assert.True(t, sp.Contains(1.5+0.5i))
	assert.False(t, sp.Contains(4))
	c, rad := sp.Center()
	assertNear(t, 1+1i, c, 1.e-14)
	assert.InDelta(t, 2., rad, 1.e-14)
	{ // Clockwise polygons wind negatively but still contain
		rev := make([]Point, n)
		for k := range pts {
			rev[k] = pts[n-1-k]
		}
		sr, err := NewSupplied(rev)
		require.NoError(t, err)
		assert.True(t, sr.Contains(1))
	}
	_, err = NewSupplied(pts[:2])
	assert.ErrorIs(t, err, ErrInvalidContour)
	_, err = NewSupplied([]Point{{S: 0}, {S: 1}, {S: cmplx.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidContour)
}
