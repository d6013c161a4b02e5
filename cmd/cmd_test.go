package cmd

import (
	"bytes"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gomodes/InputParameters"
	"github.com/notargets/gomodes/operator"
)

func octahedronSearch(t *testing.T, extra string) *InputParameters.SearchParameters {
	sp := InputParameters.Defaults()
	require.NoError(t, sp.Parse([]byte(`
Title: octahedron
Geometry: octahedron
Radius: 1
Scale: 299792458
Contour:
  Type: rectangular
  SMin: [-2.0, 0.2]
  SMax: [-0.05, 2.5]
  Points: 8
Probes: 4
Moments: 2
RelTol: 1.e-6
MaxIter: 50
SingularTerms: 2
SingularRelTol: 1.e-3
`+extra)))
	return sp
}

func TestRunSingular(t *testing.T) {
	var (
		sp  = InputParameters.Defaults()
		log bytes.Buffer
	)
	sp.Geometry = "octahedron"
	sp.SingularRelTol = 1.e-3
	require.NoError(t, RunSingular(sp, 2, &log))
	out := log.String()
	for _, label := range []string{"T_EFIE", "T_MFIE", "N_MFIE"} {
		assert.True(t, strings.Contains(out, label), label)
	}
	// each octahedron triangle touches all but the opposite one
	assert.True(t, strings.Contains(out, fmt.Sprintf("%-8s %8d pairs", "T_EFIE", 56)))
	assert.True(t, strings.Contains(out, fmt.Sprintf("%-8s %8d pairs", "T_MFIE", 48)))
	assert.True(t, strings.Contains(out, "12 RWG functions"))
}

func TestRunSingularGmsh(t *testing.T) {
	msh := `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Elements
2
1 2 2 0 1 1 2 3
2 2 2 0 1 1 3 4
$EndElements
`
	file := filepath.Join(t.TempDir(), "square.msh")
	require.NoError(t, os.WriteFile(file, []byte(msh), 0644))
	var (
		sp  = InputParameters.Defaults()
		log bytes.Buffer
	)
	sp.Geometry = file
	require.NoError(t, RunSingular(sp, 1, &log))
	assert.True(t, strings.Contains(log.String(), "1 RWG functions"))

	sp.Geometry = filepath.Join(t.TempDir(), "missing.msh")
	assert.Error(t, RunSingular(sp, 1, &log))
}

func TestRunPoles(t *testing.T) {
	for _, linearised := range []bool{false, true} {
		var (
			sp  = octahedronSearch(t, "AddConjugates: true\n")
			log bytes.Buffer
		)
		ms, err := RunPoles(sp, &PoleSearch{Linearised: linearised, Workers: 2}, &log)
		require.NoError(t, err)
		require.NotNil(t, ms)
		out := log.String()
		assert.True(t, strings.Contains(out, "12 RWG functions"))
		assert.True(t, strings.Contains(out, "modes\n"))
		assert.True(t, strings.Contains(out, "Pole search finished"))
		// conjugate completion leaves no unpaired mode
		assert.Equal(t, ms.Len(), ms.AddConjugates(1.e-3).Len())
		if linearised {
			continue
		}
		c, err := sp.BuildContour()
		require.NoError(t, err)
		var dipole int
		for _, s := range ms.Frequencies() {
			if imag(s) < 0 {
				s = cmplx.Conj(s)
			}
			// modes refined off the contour, such as real axis roots, are dropped
			assert.Truef(t, c.Contains(s), "mode at %v outside the contour", s)
			if cmplx.Abs(s/operator.SpeedOfLight-(-0.752+1.258i)) < 0.01 {
				dipole++
			}
		}
		// the dipole mode, possibly degenerate, with its conjugates
		assert.GreaterOrEqual(t, dipole, 2, out)
		assert.Equal(t, 0, dipole%2)
	}
	{ // Bad contour
		sp := octahedronSearch(t, "")
		sp.Contour.Type = "spiral"
		var log bytes.Buffer
		_, err := RunPoles(sp, &PoleSearch{}, &log)
		assert.Error(t, err)
	}
}
