package singular

import (
	"math"

	"github.com/notargets/gomodes/geometry"
)

// triangle is a flat source or observer triangle.
type triangle struct {
	v      [3][3]float64
	normal [3]float64
	area   float64
	scale  float64 // longest edge
}

func newTriangle(v0, v1, v2 [3]float64) (t triangle) {
	c := geometry.Cross(geometry.Sub(v1, v0), geometry.Sub(v2, v0))
	t = triangle{
		v:      [3][3]float64{v0, v1, v2},
		normal: geometry.Unit(c),
		area:   0.5 * geometry.Norm(c),
	}
	for e := 0; e < 3; e++ {
		t.scale = math.Max(t.scale, geometry.Distance(t.v[e], t.v[(e+1)%3]))
	}
	return
}

func (t *triangle) degenerate() bool {
	return !(t.area > 1.e-12*t.scale*t.scale)
}

// faceIntegrals are the integrals over a source triangle of the odd powers
// R^q, q = 2k-1, for a single observer point r. Entry k of each slice belongs
// to q = 2k-1.
type faceIntegrals struct {
	IS  []float64    // int R^q dS'
	IV  [][3]float64 // int (r' - rho) R^q dS'
	G   [][3]float64 // int grad_r R^q dS'
	Rho [3]float64   // projection of r onto the source plane
}

// zeroTimes returns a*b, treating a zero factor as annihilating an infinite
// one. This is the limit of t0*log(...) for an observer on an edge line.
func zeroTimes(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return a * b
}

// sourceIntegrals evaluates the face integrals analytically from recursions
// on the edge line integrals
//
//	I_L^q = int_edge R^q dl,  (q+1) I_L^q = s+ R+^q - s- R-^q + q R0^2 I_L^(q-2)
//
// and the corresponding surface recursions in the plane height h.
func sourceIntegrals(src *triangle, r [3]float64, numTerms int) (fi faceIntegrals) {
	var (
		n       = src.normal
		h       = geometry.Dot(n, geometry.Sub(r, src.v[0]))
		nL      = numTerms + 1 // I_L^q for q = -1, 1, ..., 2*numTerms-1
		IL      [3][]float64
		t0      [3]float64
		m       [3][3]float64
		betaSum float64
	)
	if math.Abs(h) < 1.e-12*src.scale {
		h = 0
	}
	ah := math.Abs(h)
	fi.Rho = geometry.Sub(r, geometry.Scale(h, n))
	for e := 0; e < 3; e++ {
		var (
			a, b   = src.v[e], src.v[(e+1)%3]
			t      = geometry.Unit(geometry.Sub(b, a))
			sp     = geometry.Dot(geometry.Sub(b, fi.Rho), t)
			sm     = geometry.Dot(geometry.Sub(a, fi.Rho), t)
			Rp     = geometry.Distance(b, r)
			Rm     = geometry.Distance(a, r)
			il     = make([]float64, nL)
			R02    float64
			Rpq    = Rp
			Rmq    = Rm
			mEdge  = geometry.Cross(t, n)
			t0Edge = geometry.Dot(geometry.Sub(a, fi.Rho), mEdge)
		)
		R02 = t0Edge*t0Edge + h*h
		switch {
		case sm >= 0:
			il[0] = math.Log((Rp + sp) / (Rm + sm))
		case sp < 0:
			il[0] = math.Log((Rm - sm) / (Rp - sp))
		default: // projection inside the edge, take the better conditioned form
			if Rm+sm > Rp-sp {
				il[0] = math.Log((Rp + sp) / (Rm + sm))
			} else {
				il[0] = math.Log((Rm - sm) / (Rp - sp))
			}
		}
		for k := 1; k < nL; k++ {
			q := float64(2*k - 1)
			il[k] = (sp*Rpq - sm*Rmq + q*zeroTimes(R02, il[k-1])) / (q + 1)
			Rpq *= Rp * Rp
			Rmq *= Rm * Rm
		}
		IL[e], t0[e], m[e] = il, t0Edge, mEdge
		if ah > 0 {
			betaSum += math.Atan(t0Edge*sp/(R02+ah*Rp)) - math.Atan(t0Edge*sm/(R02+ah*Rm))
		}
	}
	var sgn float64
	switch {
	case h > 0:
		sgn = 1
	case h < 0:
		sgn = -1
	}

	fi.IS = make([]float64, numTerms)
	fi.IV = make([][3]float64, numTerms)
	fi.G = make([][3]float64, numTerms)
	for k := 0; k < numTerms; k++ {
		q := float64(2*k - 1)
		var sum float64
		for e := 0; e < 3; e++ {
			sum += zeroTimes(t0[e], IL[e][k])
		}
		if k == 0 {
			fi.IS[k] = sum - ah*betaSum
		} else {
			fi.IS[k] = (sum + q*h*h*fi.IS[k-1]) / (q + 2)
		}
		var iv, g [3]float64
		for e := 0; e < 3; e++ {
			iv = geometry.Add(iv, geometry.Scale(IL[e][k+1]/(q+2), m[e]))
			g = geometry.Sub(g, geometry.Scale(IL[e][k], m[e]))
		}
		if k == 0 {
			g = geometry.Sub(g, geometry.Scale(sgn*betaSum, n))
		} else {
			g = geometry.Add(g, geometry.Scale(q*h*fi.IS[k-1], n))
		}
		fi.IV[k], fi.G[k] = iv, g
	}
	return
}

// pairIntegrals integrates the face integrals of src over the observer
// triangle obs. Element (k, i, j) of the 3x3 blocks sits at k*9 + i*3 + j and
// pairs observer vertex i with source vertex j. When withMFIE is false the
// MFIE blocks are nil.
type pairIntegrals struct {
	Phi   []float64
	AEFIE []float64
	AMFIE []float64
	NMFIE []float64
}

func integratePair(obs, src *triangle, obsNormal [3]float64, numTerms int,
	pts [][3]float64, w []float64, withMFIE bool) (pi pairIntegrals, ok bool) {
	var (
		nb = numTerms * 9
	)
	if obs.degenerate() || src.degenerate() {
		return
	}
	pi.Phi = make([]float64, numTerms)
	pi.AEFIE = make([]float64, nb)
	if withMFIE {
		pi.AMFIE = make([]float64, nb)
		pi.NMFIE = make([]float64, nb)
	}
	for nq, r := range pts {
		var (
			wq = w[nq]
			fi = sourceIntegrals(src, r, numTerms)
			ri [3][3]float64 // r - r_i
			rj [3][3]float64 // r - r'_j
		)
		for i := 0; i < 3; i++ {
			ri[i] = geometry.Sub(r, obs.v[i])
			rj[i] = geometry.Sub(r, src.v[i])
		}
		for k := 0; k < numTerms; k++ {
			pi.Phi[k] += wq * fi.IS[k]
			for j := 0; j < 3; j++ {
				// int (r' - r'_j) R^q = (rho - r'_j) IS + IV
				vec := geometry.Add(geometry.Scale(fi.IS[k], geometry.Sub(fi.Rho, src.v[j])), fi.IV[k])
				var (
					gx, ngx [3]float64
				)
				if withMFIE {
					gx = geometry.Cross(fi.G[k], rj[j])
					ngx = geometry.Cross(obsNormal, gx)
				}
				for i := 0; i < 3; i++ {
					ind := k*9 + i*3 + j
					pi.AEFIE[ind] += wq * geometry.Dot(ri[i], vec)
					if withMFIE {
						pi.AMFIE[ind] += wq * geometry.Dot(ri[i], gx)
						pi.NMFIE[ind] += wq * geometry.Dot(ri[i], ngx)
					}
				}
			}
		}
	}
	ok = allFinite(pi.Phi) && allFinite(pi.AEFIE) && allFinite(pi.AMFIE) && allFinite(pi.NMFIE)
	return
}

func allFinite(a []float64) bool {
	for _, val := range a {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}
