package quadrature

import (
	"fmt"

	"gonum.org/v1/gonum/integrate/quad"
)

// GaussLegendre returns n Gauss-Legendre nodes and weights on [min,max].
func GaussLegendre(n int, min, max float64) (x, w []float64) {
	if n < 1 {
		panic(fmt.Errorf("Gauss-Legendre rule needs at least one point, have %d", n))
	}
	x, w = make([]float64, n), make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, min, max)
	return
}
