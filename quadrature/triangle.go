package quadrature

import (
	"fmt"
	"math"
)

const (
	MinTriangleOrder = 10
	MaxTriangleOrder = 64
)

// TriangleRule integrates over the reference triangle
// {(xi,eta): xi,eta >= 0, xi+eta <= 1}. The weights sum to the reference
// area of 1/2.
type TriangleRule struct {
	Xi, Eta, W []float64
}

// NewTriangleRule builds the collapsed (Duffy) product rule with order points
// in each direction: Gauss-Jacobi(1,0) absorbs the collapse Jacobian along xi
// and Gauss-Legendre runs along the collapsed direction.
func NewTriangleRule(order int) (tr *TriangleRule) {
	if order < 1 {
		panic(fmt.Errorf("triangle rule order must be positive, have %d", order))
	}
	var (
		xj, wj = JacobiGQ(1, 0, order-1)
		xl, wl = GaussLegendre(order, 0, 1)
		np     = order * order
	)
	tr = &TriangleRule{
		Xi:  make([]float64, 0, np),
		Eta: make([]float64, 0, np),
		W:   make([]float64, 0, np),
	}
	for i, x := range xj {
		u := 0.5 * (1 + x) // (1-u) du = (1-x) dx / 4
		for j, v := range xl {
			tr.Xi = append(tr.Xi, u)
			tr.Eta = append(tr.Eta, (1-u)*v)
			tr.W = append(tr.W, 0.25*wj[i]*wl[j])
		}
	}
	return
}

// OrderForTolerance maps a relative tolerance onto a rule order, clamped to
// [MinTriangleOrder, MaxTriangleOrder]. Integrands with a logarithmic
// derivative singularity on the boundary converge like order^-4, with a
// relative error near 1e-4 at the minimum order.
func OrderForTolerance(relTol float64) (order int) {
	order = MinTriangleOrder
	if relTol > 0 {
		order = int(math.Ceil(float64(MinTriangleOrder) * math.Pow(1.e-4/relTol, 0.25)))
	}
	if order < MinTriangleOrder {
		order = MinTriangleOrder
	}
	if order > MaxTriangleOrder {
		order = MaxTriangleOrder
	}
	return
}

func (tr *TriangleRule) Len() int { return len(tr.W) }

// Points maps the rule onto the triangle (v0,v1,v2). Returned weights include
// the area Jacobian, so they sum to the triangle area.
func (tr *TriangleRule) Points(v0, v1, v2 [3]float64, area float64) (pts [][3]float64, w []float64) {
	pts = make([][3]float64, len(tr.W))
	w = make([]float64, len(tr.W))
	for n := range tr.W {
		xi, eta := tr.Xi[n], tr.Eta[n]
		for d := 0; d < 3; d++ {
			pts[n][d] = v0[d] + xi*(v1[d]-v0[d]) + eta*(v2[d]-v0[d])
		}
		w[n] = 2 * area * tr.W[n]
	}
	return
}
