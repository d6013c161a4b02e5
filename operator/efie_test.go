package operator

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/geometry"
	"github.com/notargets/gomodes/singular"
)

func octahedronEFIE(t *testing.T, opts ...EFIEOption) *EFIE {
	t.Helper()
	b, err := basis.NewDivRWG(geometry.Octahedron(1))
	require.NoError(t, err)
	e, err := NewEFIE(b, singular.NewCache(singular.WithLog(nil)), opts...)
	require.NoError(t, err)
	return e
}

func TestEFIE(t *testing.T) {
	var (
		e = octahedronEFIE(t, WithTerms(2), WithRelTol(1.e-4), WithWorkers(2))
		s = complex(-0.05, 1.2) * SpeedOfLight
	)
	assert.Equal(t, 12, e.Size())
	Z, err := e.Impedance(s)
	require.NoError(t, err)
	{ // Galerkin symmetry up to the quadrature of touching pairs
		ZT := Z.Transpose()
		assert.Less(t, maxDiff(Z, ZT), 1.e-3*Z.MaxAbs())
	}
	{ // Linearised parts reproduce the impedance
		L, S, err := e.Parts(s)
		require.NoError(t, err)
		assert.Less(t, maxDiff(Z, L.Scale(s).AddScaled(1/s, S)), 1.e-12*Z.MaxAbs())
	}
	{ // Analytic frequency derivative
		dZ, err := e.Derivative(s)
		require.NoError(t, err)
		fd, err := FiniteDifference(e, s)
		require.NoError(t, err)
		assert.Less(t, maxDiff(dZ, fd), 1.e-6*dZ.MaxAbs())
	}
	{ // The result does not depend on the worker count
		e1 := octahedronEFIE(t, WithTerms(2), WithRelTol(1.e-4), WithWorkers(1))
		Z1, err := e1.Impedance(s)
		require.NoError(t, err)
		assert.Equal(t, Z.Data(), Z1.Data())
	}
	{ // More extracted terms change only the split, not the operator
		e3 := octahedronEFIE(t, WithTerms(3), WithRelTol(1.e-4))
		Z3, err := e3.Impedance(s)
		require.NoError(t, err)
		assert.Less(t, maxDiff(Z, Z3), 1.e-3*Z.MaxAbs())
	}
	_, err = e.Impedance(0)
	assert.Error(t, err)
}

func TestEFIEKernel(t *testing.T) {
	var (
		e     = &EFIE{numTerms: 2, c: SpeedOfLight}
		gamma = complex(0.3, 2.1)
	)
	direct := func(R float64) (g complex128) {
		rc := complex(R, 0)
		g = cmplx.Exp(-gamma*rc)/rc - 1/rc - gamma*gamma/2*rc
		return
	}
	{ // Series branch agrees with the closed form where both are accurate
		for _, R := range []float64{0.05, 0.1, 0.2, 0.23} {
			g, _ := e.kernel(gamma, R, true, false)
			want := direct(R)
			assert.InDelta(t, 0., cmplx.Abs(g-want), 1.e-13*cmplx.Abs(want))
		}
		// Both sides of the branch switch
		Rs := 0.5 / cmplx.Abs(gamma)
		gl, _ := e.kernel(gamma, Rs*(1-1.e-9), true, false)
		gh, _ := e.kernel(gamma, Rs*(1+1.e-9), true, false)
		assert.InDelta(t, 0., cmplx.Abs(gl-gh), 1.e-8*cmplx.Abs(gl))
	}
	{ // Coincident points leave the first odd remainder term
		g, dg := e.kernel(gamma, 0, true, true)
		assert.Equal(t, -gamma, g)
		assert.Equal(t, complex(-1/SpeedOfLight, 0), dg)
	}
	{ // Full kernel away from touching pairs
		R := 1.5
		g, dg := e.kernel(gamma, R, false, true)
		assert.InDelta(t, 0., cmplx.Abs(g-cmplx.Exp(-gamma*complex(R, 0))/complex(R, 0)), 1.e-15)
		assert.InDelta(t, 0., cmplx.Abs(dg+cmplx.Exp(-gamma*complex(R, 0))/SpeedOfLight), 1.e-15/SpeedOfLight)
	}
	{ // Term coefficients
		c1, dc1 := e.termCoefficient(gamma, 1)
		assert.InDelta(t, 0., cmplx.Abs(c1-gamma*gamma/2), 1.e-13)
		assert.InDelta(t, 0., cmplx.Abs(dc1-gamma/SpeedOfLight), 1.e-13/SpeedOfLight)
	}
}
