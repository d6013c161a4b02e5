package operator

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/cmplx"

	"github.com/james-bowman/sparse"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/geometry"
	"github.com/notargets/gomodes/quadrature"
	"github.com/notargets/gomodes/singular"
	"github.com/notargets/gomodes/utils"
)

const (
	SpeedOfLight = 299792458.
	Mu0          = 4.e-7 * math.Pi
	Eps0         = 1. / (Mu0 * SpeedOfLight * SpeedOfLight)
)

// EFIE is the Galerkin electric field integral operator of a perfectly
// conducting surface in a homogeneous medium, tested and expanded with RWG
// functions:
//
//	Z_mn(s) = s mu L_mn(s) + S_mn(s)/(s eps)
//
// L couples the functions, S their divergences. The odd powers R^(2k-1) of
// the Green's function expansion are taken from the singular term cache for
// every pair of triangles sharing a node, the smooth remainder and all other
// pairs use product Gauss quadrature.
type EFIE struct {
	Basis    basis.LinearTriangle
	Mu, Eps  float64
	numTerms int
	relTol   float64
	order    int
	workers  int

	c        float64
	tris     []efieTriangle
	funcs    [][]basis.Contribution
	touching *sparse.CSR
	phi      []*sparse.CSR    // per term
	aTerm    [][9]*sparse.CSR // per term and (i,j)
}

type efieTriangle struct {
	v    [3][3]float64
	area float64
	pts  [][3]float64
	w    []float64
}

type EFIEOption func(*EFIE)

// WithTerms sets the number of extracted singular terms.
func WithTerms(n int) EFIEOption { return func(e *EFIE) { e.numTerms = n } }

// WithRelTol sets the tolerance of the singular term integration.
func WithRelTol(tol float64) EFIEOption { return func(e *EFIE) { e.relTol = tol } }

// WithOrder sets the per direction order of the regular triangle rule.
func WithOrder(n int) EFIEOption { return func(e *EFIE) { e.order = n } }

func WithWorkers(n int) EFIEOption { return func(e *EFIE) { e.workers = n } }

func WithMedium(mu, eps float64) EFIEOption {
	return func(e *EFIE) { e.Mu, e.Eps = mu, eps }
}

func NewEFIE(b basis.LinearTriangle, cache *singular.Cache, opts ...EFIEOption) (e *EFIE, err error) {
	e = &EFIE{
		Basis:    b,
		Mu:       Mu0,
		Eps:      Eps0,
		numTerms: 2,
		relTol:   1.e-4,
		order:    4,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !(e.Mu > 0 && e.Eps > 0) {
		return nil, fmt.Errorf("invalid medium mu = %g, eps = %g", e.Mu, e.Eps)
	}
	e.c = 1 / math.Sqrt(e.Mu*e.Eps)
	if cache == nil {
		cache = singular.NewCache(singular.WithLog(io.Discard))
	}
	var (
		mesh = b.Mesh()
		rule = quadrature.NewTriangleRule(e.order)
	)
	terms, err := cache.SingularImpedanceRWG(b, e.numTerms, e.relTol, mesh.Normals())
	if err != nil {
		return nil, err
	}
	efie := terms[singular.LabelEFIE]
	e.touching = efie.Pattern()
	e.phi = make([]*sparse.CSR, e.numTerms)
	e.aTerm = make([][9]*sparse.CSR, e.numTerms)
	for k := 0; k < e.numTerms; k++ {
		if e.phi[k], err = efie.Component(singular.SubPhi, k); err != nil {
			return nil, err
		}
		for ij := 0; ij < 9; ij++ {
			if e.aTerm[k][ij], err = efie.Component(singular.SubA, k*9+ij); err != nil {
				return nil, err
			}
		}
	}
	areas := mesh.Areas()
	e.tris = make([]efieTriangle, mesh.NumTriangles())
	for k := range e.tris {
		v0, v1, v2 := mesh.TriangleNodes(k)
		pts, w := rule.Points(v0, v1, v2, areas[k])
		e.tris[k] = efieTriangle{v: [3][3]float64{v0, v1, v2}, area: areas[k], pts: pts, w: w}
	}
	e.funcs = b.TriangleFunctions()
	return
}

func (e *EFIE) Size() int { return e.Basis.Len() }

func (e *EFIE) Impedance(s complex128) (Z *utils.CMatrix, err error) {
	var L, S *utils.CMatrix
	if L, S, err = e.Parts(s); err != nil {
		return
	}
	Z = L.Scale(s).AddScaled(1/s, S)
	return
}

// Parts returns mu L(s) and S(s)/eps, so that Z(s) = s L + S/s.
func (e *EFIE) Parts(s complex128) (L, S *utils.CMatrix, err error) {
	var mats [4]*utils.CMatrix
	if mats, err = e.assemble(s, false); err != nil {
		return
	}
	L = mats[0].Scale(complex(e.Mu, 0))
	S = mats[1].Scale(complex(1/e.Eps, 0))
	return
}

func (e *EFIE) Derivative(s complex128) (dZ *utils.CMatrix, err error) {
	var mats [4]*utils.CMatrix
	if mats, err = e.assemble(s, true); err != nil {
		return
	}
	var (
		L, S, dL, dS = mats[0], mats[1], mats[2], mats[3]
		mu           = complex(e.Mu, 0)
		eps          = complex(e.Eps, 0)
	)
	dZ = L.Scale(mu).AddScaled(s*mu, dL).AddScaled(-1/(s*s*eps), S).AddScaled(1/(s*eps), dS)
	return
}

// pairTerms are the Green's function integrals between two triangles:
// phi = int int G, A[i*3+j] = int int (r - r_i).(r' - r'_j) G, and their
// s derivatives.
type pairTerms struct {
	q         int
	phi, dphi complex128
	A, dA     [9]complex128
}

// assemble returns L, S and, when deriv is set, dL/ds and dS/ds.
func (e *EFIE) assemble(s complex128, deriv bool) (mats [4]*utils.CMatrix, err error) {
	if s == 0 || cmplx.IsNaN(s) || cmplx.IsInf(s) {
		return mats, fmt.Errorf("EFIE is singular at s = %v", s)
	}
	var (
		gamma = s / complex(e.c, 0)
		nTri  = len(e.tris)
		rows  = make([][]pairTerms, nTri)
		n     = e.Size()
	)
	err = utils.RunPartitioned(context.Background(), e.workers, nTri,
		func(ctx context.Context, bucket, kMin, kMax int) error {
			for p := kMin; p < kMax; p++ {
				if len(e.funcs[p]) == 0 {
					continue
				}
				row := make([]pairTerms, 0, nTri)
				for q := 0; q < nTri; q++ {
					if len(e.funcs[q]) == 0 {
						continue
					}
					row = append(row, e.pair(p, q, gamma, deriv))
				}
				rows[p] = row
			}
			return nil
		})
	if err != nil {
		return
	}
	for i := range mats {
		if i >= 2 && !deriv {
			break
		}
		mats[i] = utils.NewCMatrix(n, n)
	}
	for p, row := range rows {
		for _, pt := range row {
			e.scatter(mats, p, pt, deriv)
		}
	}
	for _, M := range mats {
		if M != nil && !M.IsFinite() {
			return mats, fmt.Errorf("EFIE assembly is not finite at s = %v", s)
		}
	}
	return
}

func (e *EFIE) scatter(mats [4]*utils.CMatrix, p int, pt pairTerms, deriv bool) {
	var (
		q      = pt.q
		ap, aq = e.tris[p].area, e.tris[q].area
	)
	for _, cm := range e.funcs[p] {
		for _, cn := range e.funcs[q] {
			var (
				sgn  = cm.Sign * cn.Sign
				fL   = complex(sgn*(cm.Length/(2*ap))*(cn.Length/(2*aq)), 0)
				fS   = complex(sgn*(cm.Length/ap)*(cn.Length/aq), 0)
				ij   = cm.Vertex*3 + cn.Vertex
				m, n = cm.Function, cn.Function
			)
			mats[0].AddAt(m, n, fL*pt.A[ij])
			mats[1].AddAt(m, n, fS*pt.phi)
			if deriv {
				mats[2].AddAt(m, n, fL*pt.dA[ij])
				mats[3].AddAt(m, n, fS*pt.dphi)
			}
		}
	}
}

func (e *EFIE) pair(p, q int, gamma complex128, deriv bool) (pt pairTerms) {
	var (
		tp, tq   = &e.tris[p], &e.tris[q]
		touching = e.touching.At(p, q) != 0
		// moments of the kernel: int int G, G r, G r', G r.r'
		m0, mrr, dm0, dmrr complex128
		mr, mrp, dmr, dmrp [3]complex128
	)
	pt.q = q
	for a, r := range tp.pts {
		for b, rp := range tq.pts {
			var (
				wt    = complex(tp.w[a]*tq.w[b], 0)
				R     = geometry.Distance(r, rp)
				g, dg = e.kernel(gamma, R, touching, deriv)
				rr    = complex(geometry.Dot(r, rp), 0)
			)
			g *= wt
			m0 += g
			mrr += g * rr
			for d := 0; d < 3; d++ {
				mr[d] += g * complex(r[d], 0)
				mrp[d] += g * complex(rp[d], 0)
			}
			if deriv {
				dg *= wt
				dm0 += dg
				dmrr += dg * rr
				for d := 0; d < 3; d++ {
					dmr[d] += dg * complex(r[d], 0)
					dmrp[d] += dg * complex(rp[d], 0)
				}
			}
		}
	}
	// (r - r_i).(r' - r'_j) = r.r' - r.r'_j - r_i.r' + r_i.r'_j
	moments := func(m0, mrr complex128, mr, mrp [3]complex128) (A [9]complex128) {
		for i := 0; i < 3; i++ {
			ri := tp.v[i]
			for j := 0; j < 3; j++ {
				rj := tq.v[j]
				val := mrr + m0*complex(geometry.Dot(ri, rj), 0)
				for d := 0; d < 3; d++ {
					val -= mr[d]*complex(rj[d], 0) + mrp[d]*complex(ri[d], 0)
				}
				A[i*3+j] = val
			}
		}
		return
	}
	pt.phi, pt.A = m0, moments(m0, mrr, mr, mrp)
	if deriv {
		pt.dphi, pt.dA = dm0, moments(dm0, dmrr, dmr, dmrp)
	}
	if touching {
		// analytic integrals of the extracted R^(2k-1) terms
		for k := 0; k < e.numTerms; k++ {
			ck, dck := e.termCoefficient(gamma, k)
			phik := complex(e.phi[k].At(p, q), 0)
			pt.phi += ck * phik
			pt.dphi += dck * phik
			for ij := 0; ij < 9; ij++ {
				ak := complex(e.aTerm[k][ij].At(p, q), 0)
				pt.A[ij] += ck * ak
				pt.dA[ij] += dck * ak
			}
		}
	}
	inv4pi := complex(1/(4*math.Pi), 0)
	pt.phi *= inv4pi
	pt.dphi *= inv4pi
	for ij := range pt.A {
		pt.A[ij] *= inv4pi
		pt.dA[ij] *= inv4pi
	}
	return
}

// termCoefficient is gamma^2k/(2k)! and its s derivative.
func (e *EFIE) termCoefficient(gamma complex128, k int) (ck, dck complex128) {
	if k == 0 {
		return 1, 0
	}
	var (
		twoK = 2 * k
		fact = math.Gamma(float64(twoK + 1))
	)
	ck = cmplx.Pow(gamma, complex(float64(twoK), 0)) / complex(fact, 0)
	dck = complex(float64(twoK)/(fact*e.c), 0) * cmplx.Pow(gamma, complex(float64(twoK-1), 0))
	return
}

// kernel is 4 pi times the Green's function exp(-gamma R)/(4 pi R), less
// the extracted terms for touching pairs, and its s derivative.
func (e *EFIE) kernel(gamma complex128, R float64, touching, deriv bool) (g, dg complex128) {
	var (
		x       = gamma * complex(R, 0)
		expx    = cmplx.Exp(-x)
		invC    = complex(1/e.c, 0)
		rc      = complex(R, 0)
		nt      = e.numTerms
		maxTerm = 2*nt + 40
	)
	if deriv {
		dg = -expx * invC
	}
	if !touching {
		g = expx / rc
		return
	}
	if cmplx.Abs(x) < 0.5 {
		// sum over n >= 1 of (-gamma)^n R^(n-1)/n!, the even n < 2*nt extracted
		t := -gamma
		for n := 1; n < maxTerm; n++ {
			if n%2 == 1 || n >= 2*nt {
				g += t
				if cmplx.Abs(t) < 1.e-17*cmplx.Abs(g) {
					break
				}
			}
			t *= -x / complex(float64(n+1), 0)
		}
	} else {
		g = expx / rc
		for k := 0; k < nt; k++ {
			ck, _ := e.termCoefficient(gamma, k)
			g -= ck * cmplx.Pow(rc, complex(float64(2*k-1), 0))
		}
	}
	if deriv {
		for k := 1; k < nt; k++ {
			_, dck := e.termCoefficient(gamma, k)
			dg -= dck * cmplx.Pow(rc, complex(float64(2*k-1), 0))
		}
	}
	return
}
