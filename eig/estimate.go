package eig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/notargets/gomodes/contour"
	"github.com/notargets/gomodes/operator"
	"github.com/notargets/gomodes/utils"
)

var ErrConvergence = errors.New("eig: iteration did not converge")

// Estimate is an unrefined pole with its approximate right eigenvector and,
// when the producer supplies one, its left eigenvector. Contour and Rule name
// what produced it.
type Estimate struct {
	S       complex128
	Vr      []complex128
	Vl      []complex128
	Contour string
	Rule    int
}

type EstimateOptions struct {
	Probes    int     // columns of the random probe block
	Moments   int     // block rows of the Hankel matrices
	Threshold float64 // relative singular value cutoff for the rank
	Seed      uint64
	Workers   int // zero means one per CPU
	Log       io.Writer
}

func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{
		Probes:    8,
		Moments:   2,
		Threshold: 1.e-10,
		Seed:      1,
	}
}

type EstimateResult struct {
	Estimates      []Estimate // inside the contour, ascending imag(S)
	Requested      int        // most poles the probe block can resolve
	Rank           int
	Saturated      bool // Rank reached Requested, more poles may be enclosed than were resolved
	SingularValues []float64
	Discarded      []Estimate // eigenvalues of the reduced problem outside the contour
}

// EstimatePoles locates the poles of Z(s)^-1 inside a contour with the block
// contour integral method of Beyn, using the moments
//
//	A_k = 1/(2 pi i) oint mu^k Z(s)^-1 V ds,  mu = (s - c)/rho
//
// about the contour's centre c and radius rho. A numerical rank below the
// probe capacity is reported in the result, not as an error.
func EstimatePoles(op operator.Operator, c contour.Contour, opts EstimateOptions) (res *EstimateResult, err error) {
	var (
		start = time.Now()
		n     = op.Size()
		pts   = c.Points()
		p     = opts.Probes
		K     = opts.Moments
		log   = opts.Log
	)
	if log == nil {
		log = io.Discard
	}
	if p > n {
		p = n
	}
	if n < 1 || p < 1 || K < 1 {
		return nil, fmt.Errorf("estimate needs a non-empty operator, probes and moments, have n = %d, probes = %d, moments = %d",
			n, opts.Probes, K)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: %s has no points", contour.ErrInvalidContour, c.Name())
	}
	V := probes(n, p, opts.Seed)
	// Z(s_j)^-1 V and Z(s_j)^-T V per contour point, each written to its own slot
	var (
		X  = make([]*utils.CMatrix, len(pts))
		XL = make([]*utils.CMatrix, len(pts))
	)
	err = utils.RunPartitioned(context.Background(), opts.Workers, len(pts),
		func(ctx context.Context, bucket, kMin, kMax int) error {
			for j := kMin; j < kMax; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				Z, err := op.Impedance(pts[j].S)
				if err != nil {
					return fmt.Errorf("impedance at contour point %v: %w", pts[j].S, err)
				}
				lu := utils.NewCLU(Z)
				X[j] = lu.SolveMatrix(V, false)
				XL[j] = lu.SolveMatrix(V, true)
			}
			return nil
		})
	if err != nil {
		return
	}
	var (
		center, rho = c.Center()
		moments     = make([]*utils.CMatrix, 2*K)
		left        = utils.NewCMatrix(n, p)
		scale       float64 // magnitude of the quadrature sum without cancellation
	)
	if rho <= 0 {
		rho = 1
	}
	for k := range moments {
		moments[k] = utils.NewCMatrix(n, p)
	}
	for j, pt := range pts {
		var (
			mu = (pt.S - center) / complex(rho, 0)
			wk = pt.W / (2i * math.Pi)
		)
		left.AddScaled(wk, XL[j]) // zeroth moment of Z^-T V
		for k := range moments {
			moments[k].AddScaled(wk, X[j])
			wk *= mu
		}
		scale += cmplx.Abs(pt.W) * X[j].MaxAbs() / (2 * math.Pi)
	}
	B0, B1 := hankel(moments, K, n, p)
	Q, sv, rank, err := utils.ComplexRangeBasis(B0, opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("moment matrix on %s: %w", c.Name(), err)
	}
	if len(sv) > 0 && sv[0] <= opts.Threshold*scale {
		rank = 0 // only rounding noise, nothing enclosed
	}
	res = &EstimateResult{
		Requested:      K * p,
		Rank:           rank,
		Saturated:      rank > 0 && rank == K*p,
		SingularValues: sv,
	}
	if rank > 0 {
		// B = D E^-1, with E Hermitian
		var (
			Qh = Q.ConjTranspose()
			C  = Qh.Mul(B0)
			Ch = C.ConjTranspose()
			D  = Qh.Mul(B1).Mul(Ch)
			E  = C.Mul(Ch)
			B  = utils.NewCLU(E).SolveMatrix(D.ConjTranspose(), false).ConjTranspose()
		)
		vals, Y, ok := utils.ComplexEigen(B)
		if !ok {
			return nil, fmt.Errorf("eigen decomposition of the %d x %d reduced problem failed", rank, rank)
		}
		var (
			Qtop = Q.Slice(0, n, 0, rank)
			VR   = utils.NewCMatrix(n, rank)
		)
		for i := range vals {
			vr := Qtop.MulVec(Y.Col(i))
			if nrm := utils.CNorm(vr); nrm > 0 {
				utils.CScale(complex(1/nrm, 0), vr)
			}
			VR.SetCol(i, vr)
		}
		VL := leftVectors(left, VR, V)
		for i, mu := range vals {
			est := Estimate{
				S:       center + complex(rho, 0)*mu,
				Vr:      VR.Col(i),
				Contour: c.Name(),
				Rule:    len(pts),
			}
			if VL != nil {
				est.Vl = VL.Col(i)
			}
			if c.Contains(est.S) {
				res.Estimates = append(res.Estimates, est)
			} else {
				res.Discarded = append(res.Discarded, est)
			}
		}
		sortByImag(res.Estimates)
		sortByImag(res.Discarded)
	}
	fmt.Fprintf(log, "Contour %s: %d points, rank %d of %d, %d estimates inside, %d outside, %v\n",
		c.Name(), len(pts), res.Rank, res.Requested, len(res.Estimates), len(res.Discarded), time.Since(start))
	return
}

// leftVectors recovers left eigenvectors from the zeroth moment of Z^-T V.
// Near a simple pole Z^-T ~ vl vr^T/(s - s_k), so the moment is VL G with
// G = VR^T V; VL is its least squares solution, columns scaled to unit norm.
// It returns nil when the probes cannot separate the rank poles.
func leftVectors(A, VR, V *utils.CMatrix) (VL *utils.CMatrix) {
	var (
		_, p = V.Dims()
		_, r = VR.Dims()
	)
	if r > p {
		return nil
	}
	// VL = A G^H (G G^H)^-1
	var (
		G  = VR.Transpose().Mul(V)
		Gh = G.ConjTranspose()
		R  = A.Mul(Gh)
		lu = utils.NewCLU(G.Mul(Gh))
	)
	if lu.Perturbed {
		return nil
	}
	VL = lu.SolveMatrix(R.Transpose(), true).Transpose()
	if !VL.IsFinite() {
		return nil
	}
	_, nc := VL.Dims()
	for j := 0; j < nc; j++ {
		VL.SetCol(j, unit(VL.Col(j)))
	}
	return
}

// probes is a seeded block of complex normal columns.
func probes(n, p int, seed uint64) (V *utils.CMatrix) {
	var (
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	)
	V = utils.NewCMatrix(n, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			V.Set(i, j, complex(rng.NormFloat64(), rng.NormFloat64()))
		}
	}
	return
}

// hankel assembles the block Hankel matrices B0[i,j] = A[i+j] and
// B1[i,j] = A[i+j+1], both (K n) x (K p).
func hankel(A []*utils.CMatrix, K, n, p int) (B0, B1 *utils.CMatrix) {
	B0, B1 = utils.NewCMatrix(K*n, K*p), utils.NewCMatrix(K*n, K*p)
	for bi := 0; bi < K; bi++ {
		for bj := 0; bj < K; bj++ {
			a0, a1 := A[bi+bj], A[bi+bj+1]
			for i := 0; i < n; i++ {
				for j := 0; j < p; j++ {
					B0.Set(bi*n+i, bj*p+j, a0.At(i, j))
					B1.Set(bi*n+i, bj*p+j, a1.At(i, j))
				}
			}
		}
	}
	return
}

func sortByImag(est []Estimate) {
	sort.SliceStable(est, func(i, j int) bool { return imag(est[i].S) < imag(est[j].S) })
}

// LinearisedEstimate solves the quasi-static problem s^2 L v + S v = 0 with
// Z(s) ~ s L + S/s split at s0, keeping the n roots of smallest magnitude
// with positive imaginary part.
func LinearisedEstimate(op operator.Linearisable, s0 complex128, n int) (est []Estimate, err error) {
	var (
		L, S *utils.CMatrix
	)
	if L, S, err = op.Parts(s0); err != nil {
		return
	}
	lu := utils.NewCLU(L)
	if lu.Perturbed {
		return nil, fmt.Errorf("linearised estimate at %v: inductive part is singular", s0)
	}
	M := lu.SolveMatrix(S, false).Scale(-1)
	vals, vecs, ok := utils.ComplexEigen(M)
	if !ok {
		return nil, fmt.Errorf("linearised estimate at %v: eigen decomposition failed", s0)
	}
	est = make([]Estimate, len(vals))
	for i, lambda := range vals {
		s := cmplx.Sqrt(lambda)
		if imag(s) < 0 || (imag(s) == 0 && real(s) > 0) {
			s = -s
		}
		est[i] = Estimate{S: s, Vr: vecs.Col(i), Contour: "linearised"}
	}
	sort.SliceStable(est, func(i, j int) bool { return cmplx.Abs(est[i].S) < cmplx.Abs(est[j].S) })
	if n < len(est) {
		est = est[:n]
	}
	return
}
