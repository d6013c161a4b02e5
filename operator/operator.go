package operator

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/notargets/gomodes/utils"
)

var ErrNoDerivative = errors.New("operator: derivative is not finite")

// Operator is a frequency dependent impedance matrix Z(s).
type Operator interface {
	Size() int
	Impedance(s complex128) (*utils.CMatrix, error)
}

// Differentiable operators supply dZ/ds analytically.
type Differentiable interface {
	Operator
	Derivative(s complex128) (*utils.CMatrix, error)
}

// Linearisable operators split Z(s) = s L + S/s about s.
type Linearisable interface {
	Operator
	Parts(s complex128) (L, S *utils.CMatrix, err error)
}

// DerivativeOf returns dZ/ds, analytic when op is Differentiable and a
// central difference otherwise.
func DerivativeOf(op Operator, s complex128) (*utils.CMatrix, error) {
	if d, ok := op.(Differentiable); ok {
		return d.Derivative(s)
	}
	return FiniteDifference(op, s)
}

// FiniteDifference is the central difference of Z along the real axis. Z is
// analytic, so this is the complex derivative.
func FiniteDifference(op Operator, s complex128) (dZ *utils.CMatrix, err error) {
	var (
		h      = 1.e-6 * math.Max(1, cmplx.Abs(s))
		zp, zm *utils.CMatrix
	)
	if zp, err = op.Impedance(s + complex(h, 0)); err != nil {
		return
	}
	if zm, err = op.Impedance(s - complex(h, 0)); err != nil {
		return
	}
	dZ = zp.AddScaled(-1, zm).Scale(complex(1/(2*h), 0))
	if !dZ.IsFinite() {
		return nil, fmt.Errorf("%w: s = %v", ErrNoDerivative, s)
	}
	return
}

// Diagonal is Z(s) = diag(s - Poles[i]), with eigenvalues Poles and
// standard basis eigenvectors.
type Diagonal struct {
	Poles []complex128
}

func (d *Diagonal) Size() int { return len(d.Poles) }

func (d *Diagonal) Impedance(s complex128) (*utils.CMatrix, error) {
	diag := make([]complex128, len(d.Poles))
	for i, p := range d.Poles {
		diag[i] = s - p
	}
	return utils.NewCDiagonal(diag), nil
}

func (d *Diagonal) Derivative(s complex128) (*utils.CMatrix, error) {
	return utils.NewCIdentity(len(d.Poles)), nil
}

// Shifted is Z(s) = A - sI, whose poles are the eigenvalues of A.
type Shifted struct {
	A *utils.CMatrix
}

func (sh *Shifted) Size() int {
	n, _ := sh.A.Dims()
	return n
}

func (sh *Shifted) Impedance(s complex128) (*utils.CMatrix, error) {
	return sh.A.Copy().AddScaled(-s, utils.NewCIdentity(sh.Size())), nil
}

func (sh *Shifted) Derivative(s complex128) (*utils.CMatrix, error) {
	return utils.NewCIdentity(sh.Size()).Scale(-1), nil
}

// Pencil is Z(s) = s L + S/s, the form of a lossless lumped circuit.
type Pencil struct {
	L, S *utils.CMatrix
}

func (p *Pencil) Size() int {
	n, _ := p.L.Dims()
	return n
}

func (p *Pencil) Impedance(s complex128) (*utils.CMatrix, error) {
	if s == 0 {
		return nil, fmt.Errorf("pencil operator is singular at s = 0")
	}
	return p.L.Copy().Scale(s).AddScaled(1/s, p.S), nil
}

func (p *Pencil) Derivative(s complex128) (*utils.CMatrix, error) {
	if s == 0 {
		return nil, fmt.Errorf("%w: s = 0", ErrNoDerivative)
	}
	return p.L.Copy().AddScaled(-1/(s*s), p.S), nil
}

func (p *Pencil) Parts(s complex128) (L, S *utils.CMatrix, err error) {
	return p.L.Copy(), p.S.Copy(), nil
}
