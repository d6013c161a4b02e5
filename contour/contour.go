package contour

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/notargets/gomodes/quadrature"
)

var ErrInvalidContour = errors.New("contour: invalid contour")

// Point is one quadrature node of a closed contour: the integral of f around
// the contour is approximately the sum of W*f(S).
type Point struct {
	S, W complex128
}

// Contour is a closed, positively oriented integration path in the complex
// frequency plane.
type Contour interface {
	Name() string
	Points() []Point
	// Contains reports whether s lies strictly inside the enclosed region.
	Contains(s complex128) bool
	// Center returns a centre and radius enclosing the contour, used to
	// shift and scale moments.
	Center() (c complex128, radius float64)
}

// segment appends n Gauss-Legendre points of the straight path a -> b.
func segment(pts []Point, a, b complex128, n int) []Point {
	x, w := quadrature.GaussLegendre(n, 0, 1)
	d := b - a
	for i := range x {
		pts = append(pts, Point{S: a + complex(x[i], 0)*d, W: complex(w[i], 0) * d})
	}
	return pts
}

// arc appends n Gauss-Legendre points of the circular path r*exp(i*theta)
// from theta1 to theta2.
func arc(pts []Point, r, theta1, theta2 float64, n int) []Point {
	x, w := quadrature.GaussLegendre(n, 0, 1)
	span := theta2 - theta1
	for i := range x {
		theta := theta1 + x[i]*span
		s := cmplx.Rect(r, theta)
		pts = append(pts, Point{S: s, W: complex(w[i]*span, 0) * 1i * s})
	}
	return pts
}

func copyPoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}

type Rectangular struct {
	SMin, SMax complex128
	N          int
	points     []Point
}

// NewRectangular traces the rectangle with corners sMin and sMax counter
// clockwise, with n points per edge.
func NewRectangular(sMin, sMax complex128, n int) (r *Rectangular, err error) {
	if !(real(sMin) < real(sMax) && imag(sMin) < imag(sMax)) {
		return nil, fmt.Errorf("%w: corners %v, %v do not span a rectangle", ErrInvalidContour, sMin, sMax)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: %d points per edge", ErrInvalidContour, n)
	}
	r = &Rectangular{SMin: sMin, SMax: sMax, N: n}
	var (
		v = []complex128{
			sMin,
			complex(real(sMax), imag(sMin)),
			sMax,
			complex(real(sMin), imag(sMax)),
		}
	)
	for k := range v {
		r.points = segment(r.points, v[k], v[(k+1)%4], n)
	}
	return
}

func (r *Rectangular) Name() string    { return "rectangular" }
func (r *Rectangular) Points() []Point { return copyPoints(r.points) }

func (r *Rectangular) Contains(s complex128) bool {
	return real(s) > real(r.SMin) && real(s) < real(r.SMax) &&
		imag(s) > imag(r.SMin) && imag(s) < imag(r.SMax)
}

func (r *Rectangular) Center() (c complex128, radius float64) {
	c = 0.5 * (r.SMin + r.SMax)
	radius = 0.5 * cmplx.Abs(r.SMax-r.SMin)
	return
}

// External encloses Re(Corner) <= Re s <= Overlap, -Overlap <= Im s <= Im(Corner)
// less the disc |s| < AvoidOrigin, reaching slightly past the imaginary and
// real axes without enclosing the origin.
type External struct {
	Corner      complex128
	Overlap     float64
	AvoidOrigin float64
	N           int
	points      []Point
}

func NewExternal(corner complex128, overlap, avoidOrigin float64, n int) (e *External, err error) {
	switch {
	case !(overlap >= 0 && overlap < avoidOrigin):
		err = fmt.Errorf("%w: overlap %g must be in [0, %g)", ErrInvalidContour, overlap, avoidOrigin)
	case !(real(corner) < -avoidOrigin && imag(corner) > avoidOrigin):
		err = fmt.Errorf("%w: corner %v must lie in the second quadrant beyond radius %g",
			ErrInvalidContour, corner, avoidOrigin)
	case n < 1:
		err = fmt.Errorf("%w: %d points per segment", ErrInvalidContour, n)
	}
	if err != nil {
		return nil, err
	}
	e = &External{Corner: corner, Overlap: overlap, AvoidOrigin: avoidOrigin, N: n}
	var (
		d      = overlap
		r      = avoidOrigin
		chord  = math.Sqrt(r*r - d*d)
		re, im = real(corner), imag(corner)
	)
	e.points = segment(e.points, complex(re, -d), complex(-chord, -d), n)
	// clockwise around the origin, from the third quadrant over the top
	e.points = arc(e.points, r, math.Pi+math.Asin(d/r), math.Acos(d/r), n)
	e.points = segment(e.points, complex(d, chord), complex(d, im), n)
	e.points = segment(e.points, complex(d, im), complex(re, im), n)
	e.points = segment(e.points, complex(re, im), complex(re, -d), n)
	return
}

func (e *External) Name() string    { return "external" }
func (e *External) Points() []Point { return copyPoints(e.points) }

func (e *External) Contains(s complex128) bool {
	return real(s) > real(e.Corner) && real(s) < e.Overlap &&
		imag(s) > -e.Overlap && imag(s) < imag(e.Corner) &&
		cmplx.Abs(s) > e.AvoidOrigin
}

func (e *External) Center() (c complex128, radius float64) {
	var (
		lo = complex(real(e.Corner), -e.Overlap)
		hi = complex(e.Overlap, imag(e.Corner))
	)
	c = 0.5 * (lo + hi)
	radius = 0.5 * cmplx.Abs(hi-lo)
	return
}

// Supplied wraps caller supplied points and weights. Containment is the
// winding number of the polygon through the points.
type Supplied struct {
	points []Point
	center complex128
	radius float64
}

func NewSupplied(points []Point) (sp *Supplied, err error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: %d points cannot enclose a region", ErrInvalidContour, len(points))
	}
	for _, p := range points {
		if cmplx.IsNaN(p.S) || cmplx.IsInf(p.S) || cmplx.IsNaN(p.W) || cmplx.IsInf(p.W) {
			return nil, fmt.Errorf("%w: non-finite point %v", ErrInvalidContour, p)
		}
	}
	sp = &Supplied{points: copyPoints(points)}
	for _, p := range points {
		sp.center += p.S
	}
	sp.center /= complex(float64(len(points)), 0)
	for _, p := range points {
		sp.radius = math.Max(sp.radius, cmplx.Abs(p.S-sp.center))
	}
	return
}

func (sp *Supplied) Name() string    { return "supplied" }
func (sp *Supplied) Points() []Point { return copyPoints(sp.points) }

func (sp *Supplied) Contains(s complex128) bool {
	var winding int
	for i, p := range sp.points {
		a, b := p.S-s, sp.points[(i+1)%len(sp.points)].S-s
		cross := real(a)*imag(b) - imag(a)*real(b)
		switch {
		case imag(a) <= 0 && imag(b) > 0 && cross > 0:
			winding++
		case imag(a) > 0 && imag(b) <= 0 && cross < 0:
			winding--
		}
	}
	return winding != 0
}

func (sp *Supplied) Center() (complex128, float64) { return sp.center, sp.radius }
