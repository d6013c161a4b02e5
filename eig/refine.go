package eig

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"time"

	"github.com/notargets/gomodes/contour"
	"github.com/notargets/gomodes/modes"
	"github.com/notargets/gomodes/operator"
	"github.com/notargets/gomodes/utils"
)

type RefineOptions struct {
	RelTol  float64
	MaxIter int // hard cap, zero iterations converge nothing
	Workers int
	Log     io.Writer

	// Region, when set, drops modes that refine to a frequency outside it.
	Region contour.Contour
}

func DefaultRefineOptions() RefineOptions {
	return RefineOptions{RelTol: 1.e-6, MaxIter: 200}
}

// Failure records an estimate that did not survive refinement.
type Failure struct {
	Index      int
	Estimate   Estimate
	Iterations int
	Err        error
}

// RefineResult holds the accepted modes. Modes.Len() plus len(Dropped) is the
// number of estimates.
type RefineResult struct {
	Modes   *modes.ModeSet
	Dropped []Failure
}

type refined struct {
	mode  modes.Mode
	iters int
	err   error
}

// Refine polishes every estimate by nonlinear inverse iteration on Z(s).
// Estimates that do not converge within MaxIter, meet a singular derivative,
// go non-finite or leave Region are dropped and listed in the result, as is
// an estimate that converges onto the vector of another at the same pole.
func Refine(op operator.Operator, est []Estimate, opts RefineOptions) (res *RefineResult) {
	var (
		start = time.Now()
		out   = make([]refined, len(est))
		log   = opts.Log
	)
	if log == nil {
		log = io.Discard
	}
	// every slot is written by exactly one worker, no error aborts the group
	_ = utils.RunPartitioned(context.Background(), opts.Workers, len(est),
		func(ctx context.Context, bucket, kMin, kMax int) error {
			for i := kMin; i < kMax; i++ {
				m, iters, err := refineOne(op, est[i], opts.RelTol, opts.MaxIter)
				out[i] = refined{mode: m, iters: iters, err: err}
			}
			return nil
		})
	for i := range out {
		r := &out[i]
		if r.err == nil && opts.Region != nil && !opts.Region.Contains(r.mode.S) {
			r.err = fmt.Errorf("%w: refined to %v outside %s", ErrConvergence, r.mode.S, opts.Region.Name())
		}
	}
	separateDegenerate(op, out, clusterTol(opts.RelTol))
	var accepted []modes.Mode
	res = &RefineResult{}
	for i, r := range out {
		switch {
		case r.err != nil:
			res.Dropped = append(res.Dropped, Failure{Index: i, Estimate: est[i], Iterations: r.iters, Err: r.err})
			fmt.Fprintf(log, "Estimate %d at %+.6e %+.6ei dropped after %d iterations: %v\n",
				i, real(est[i].S), imag(est[i].S), r.iters, r.err)
		default:
			accepted = append(accepted, r.mode)
			fmt.Fprintf(log, "Estimate %d converged after %d iterations\n%+.6e %+.6ei (estimate)\n%+.6e %+.6ei (refined)\n",
				i, r.iters, real(est[i].S), imag(est[i].S), real(r.mode.S), imag(r.mode.S))
		}
	}
	res.Modes = modes.NewModeSet(accepted)
	fmt.Fprintf(log, "Refined %d of %d estimates in %v\n", res.Modes.Len(), len(est), time.Since(start))
	return
}

func refineOne(op operator.Operator, est Estimate, relTol float64, maxIter int) (m modes.Mode, iters int, err error) {
	var (
		n         = op.Size()
		s         = est.S
		v         = startVector(est.Vr, n)
		converged bool
	)
	for iters < maxIter && !converged {
		iters++
		var Z, dZ *utils.CMatrix
		if Z, err = op.Impedance(s); err != nil {
			return
		}
		if dZ, err = operator.DerivativeOf(op, s); err != nil {
			return
		}
		x := utils.NewCLU(Z).Solve(dZ.MulVec(v), false)
		j := utils.ArgMaxAbs(x)
		if x[j] == 0 || !utils.CIsFinite(x) {
			return m, iters, fmt.Errorf("%w: singular update at s = %v", ErrConvergence, s)
		}
		delta := v[j] / x[j]
		s -= delta
		v = utils.CScale(1/x[j], x)
		if cmplx.IsNaN(s) || cmplx.IsInf(s) {
			return m, iters, fmt.Errorf("%w: frequency went non-finite", ErrConvergence)
		}
		converged = cmplx.Abs(delta) <= relTol*cmplx.Abs(s)
	}
	if !converged {
		return m, iters, fmt.Errorf("%w: %d iterations", ErrConvergence, iters)
	}
	m, err = normalise(op, s, v, est.Vl)
	return
}

// startVector is the estimate's vector, or all ones when it has none.
func startVector(vr []complex128, n int) (v []complex128) {
	v = make([]complex128, n)
	if len(vr) == n && utils.CNorm(vr) > 0 {
		copy(v, vr)
	} else {
		for i := range v {
			v[i] = 1
		}
	}
	return utils.CScale(1/v[utils.ArgMaxAbs(v)], v)
}

// normalise polishes the right vector, finds the left vector by inverse
// iteration on Z^T, started from vl0 when it fits, and scales both so that
// vl . Z'(s) . vr = 1.
func normalise(op operator.Operator, s complex128, v, vl0 []complex128) (m modes.Mode, err error) {
	var (
		Z, dZ *utils.CMatrix
	)
	if Z, err = op.Impedance(s); err != nil {
		return
	}
	if dZ, err = operator.DerivativeOf(op, s); err != nil {
		return
	}
	lu := utils.NewCLU(Z)
	var (
		vr = unit(lu.Solve(v, false))
		vl = vr
	)
	if len(vl0) == len(vr) && utils.CNorm(vl0) > 0 && utils.CIsFinite(vl0) {
		vl = unit(append([]complex128(nil), vl0...))
	}
	for k := 0; k < 3; k++ {
		vl = unit(lu.Solve(vl, true))
	}
	scale := utils.DotU(vl, dZ.MulVec(vr))
	if scale == 0 || !utils.CIsFinite(vr) || !utils.CIsFinite(vl) || cmplx.IsNaN(scale) || cmplx.IsInf(scale) {
		return m, fmt.Errorf("%w: left and right vectors are orthogonal through Z' at s = %v", ErrConvergence, s)
	}
	root := 1 / cmplx.Sqrt(scale)
	m = modes.Mode{S: s, Vr: utils.CScale(root, vr), Vl: utils.CScale(root, vl)}
	return
}

func unit(v []complex128) []complex128 {
	if nrm := utils.CNorm(v); nrm > 0 {
		utils.CScale(complex(1/nrm, 0), v)
	}
	return v
}

// clusterTol is the relative distance below which refined frequencies are
// taken as one degenerate pole.
func clusterTol(relTol float64) float64 {
	return math.Max(100*relTol, 1.e-10)
}

// separateDegenerate makes the modes of a degenerate pole independent.
// Within each cluster of equal frequencies the right vectors are
// orthonormalised in estimate order, a vector already spanned by earlier
// ones is dropped as a duplicate, and the left vectors are recombined so that
// vl_i . Z' . vr_j = delta_ij over the cluster.
func separateDegenerate(op operator.Operator, out []refined, tol float64) {
	done := make([]bool, len(out))
	for i := range out {
		if done[i] || out[i].err != nil {
			continue
		}
		cluster := []int{i}
		for j := i + 1; j < len(out); j++ {
			if !done[j] && out[j].err == nil &&
				cmplx.Abs(out[j].mode.S-out[i].mode.S) <= tol*cmplx.Abs(out[i].mode.S) {
				cluster = append(cluster, j)
			}
		}
		for _, j := range cluster {
			done[j] = true
		}
		if len(cluster) > 1 {
			biorthogonalise(op, out, cluster)
		}
	}
}

func biorthogonalise(op operator.Operator, out []refined, cluster []int) {
	var (
		s    = out[cluster[0]].mode.S
		kept []int
		q    [][]complex128
	)
	for _, i := range cluster {
		res := append([]complex128(nil), out[i].mode.Vr...)
		for _, b := range q {
			proj := utils.DotC(b, res)
			for k := range res {
				res[k] -= proj * b[k]
			}
		}
		if utils.CNorm(res) <= 1.e-3*utils.CNorm(out[i].mode.Vr) {
			out[i].err = fmt.Errorf("%w: collapsed onto the mode at %v", ErrConvergence, s)
			continue
		}
		kept = append(kept, i)
		q = append(q, unit(res))
	}
	if len(kept) < 2 {
		return
	}
	Z, err := op.Impedance(s)
	if err == nil {
		var dZ *utils.CMatrix
		if dZ, err = operator.DerivativeOf(op, s); err == nil {
			err = recombine(Z, dZ, out, kept, q)
		}
	}
	if err != nil {
		for _, i := range kept[1:] {
			out[i].err = fmt.Errorf("%w: degenerate pair at %v: %v", ErrConvergence, s, err)
		}
	}
}

// recombine sets the right vectors of the kept modes to q and their left
// vectors to VL M^-T with M = VL^T Z' VR.
func recombine(Z, dZ *utils.CMatrix, out []refined, kept []int, q [][]complex128) error {
	var (
		n, k = len(q[0]), len(kept)
		lu   = utils.NewCLU(Z)
		VR   = utils.NewCMatrix(n, k)
		VL   = utils.NewCMatrix(n, k)
	)
	for c, i := range kept {
		VR.SetCol(c, q[c])
		vl := unit(append([]complex128(nil), out[i].mode.Vl...))
		for it := 0; it < 3; it++ {
			vl = unit(lu.Solve(vl, true))
		}
		VL.SetCol(c, vl)
	}
	mlu := utils.NewCLU(VL.Transpose().Mul(dZ).Mul(VR))
	if mlu.Perturbed {
		return fmt.Errorf("left vectors are dependent")
	}
	// VL M^-T = (M^-1 VL^T)^T
	VL = mlu.SolveMatrix(VL.Transpose(), false).Transpose()
	if !VL.IsFinite() {
		return fmt.Errorf("left vectors are not finite")
	}
	for c, i := range kept {
		out[i].mode.Vr = VR.Col(c)
		out[i].mode.Vl = VL.Col(c)
	}
	return nil
}

// Search estimates the poles inside c and refines them, dropping any mode
// that refines to a frequency outside c.
func Search(op operator.Operator, c contour.Contour, est EstimateOptions, ref RefineOptions) (er *EstimateResult, rr *RefineResult, err error) {
	if er, err = EstimatePoles(op, c, est); err != nil {
		return
	}
	if ref.Region == nil {
		ref.Region = c
	}
	rr = Refine(op, er.Estimates, ref)
	return
}
