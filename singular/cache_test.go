package singular

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/geometry"
)

// pointBasis is a basis with no linear triangle representation.
type pointBasis struct {
	mesh *geometry.SurfaceMesh
}

func (pb pointBasis) Kind() string                { return "POINT" }
func (pb pointBasis) ID() uuid.UUID               { return uuid.Nil }
func (pb pointBasis) Mesh() *geometry.SurfaceMesh { return pb.mesh }
func (pb pointBasis) Len() int                    { return len(pb.mesh.Nodes) }

func octahedronBasis(t *testing.T) *basis.DivRWG {
	t.Helper()
	b, err := basis.NewDivRWG(geometry.Octahedron(1))
	require.NoError(t, err)
	return b
}

func TestSingularImpedanceRWG(t *testing.T) {
	var (
		b       = octahedronBasis(t)
		mesh    = b.Mesh()
		normals = mesh.Normals()
		log     bytes.Buffer
		cache   = NewCache(WithWorkers(3), WithLog(&log))
	)
	terms, err := cache.SingularImpedanceRWG(b, 2, 1.e-3, normals)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	assert.Contains(t, log.String(), "8 triangles, 2 terms")
	efie, mfie, nmfie := terms[LabelEFIE], terms[LabelMFIE], terms[LabelNMFIE]
	require.NotNil(t, efie)
	require.NotNil(t, mfie)
	require.NotNil(t, nmfie)
	assert.Equal(t, OrderF, efie.Order)
	{ // Pattern is the node sharing union; MFIE tables exclude the self pairs
		for p := 0; p < mesh.NumTriangles(); p++ {
			sharing := mesh.SharingTriangles(p)
			var cols, mcols []int
			for nz := efie.Indptr[p]; nz < efie.Indptr[p+1]; nz++ {
				cols = append(cols, efie.Indices[nz])
			}
			for nz := mfie.Indptr[p]; nz < mfie.Indptr[p+1]; nz++ {
				mcols = append(mcols, mfie.Indices[nz])
			}
			assert.Equal(t, sharing, cols)
			assert.NotContains(t, mcols, p)
			assert.Len(t, mcols, len(sharing)-1)
			_, ok := efie.Lookup(p, p)
			assert.True(t, ok)
			_, ok = nmfie.Lookup(p, p)
			assert.False(t, ok)
		}
		assert.Equal(t, 8*7, efie.NNZ())
	}
	{ // All self terms of the regular octahedron agree, and phi is symmetric between neighbours
		self0, _ := efie.Element(0, 0, SubPhi, 0)
		for p := 1; p < 8; p++ {
			val, _ := efie.Element(p, p, SubPhi, 0)
			assert.InDelta(t, self0, val, 1.e-12)
		}
		for _, it := range efie.Items() {
			other, ok := efie.Lookup(it.Col, it.Row)
			require.True(t, ok)
			for k := 0; k < 2; k++ {
				assert.InEpsilon(t, other[0][k], it.Values[0][k], 1.e-3)
			}
		}
	}
	{ // Cache hit returns the stored tables
		again, err := cache.SingularImpedanceRWG(b, 2, 1.e-3, normals)
		require.NoError(t, err)
		assert.Same(t, efie, again[LabelEFIE])
		assert.Equal(t, 1, cache.Len())
		// the caller's map is a copy, the stored entry keeps every label
		delete(again, LabelEFIE)
		again[LabelMFIE] = nil
		third, err := cache.SingularImpedanceRWG(b, 2, 1.e-3, normals)
		require.NoError(t, err)
		assert.Same(t, efie, third[LabelEFIE])
		assert.Same(t, mfie, third[LabelMFIE])
		got, ok := cache.Lookup(Key{
			Kind:        basis.KindRWG,
			BasisID:     b.ID(),
			Terms:       2,
			RelTol:      1.e-3,
			NormalsHash: geometry.Fingerprint(normals),
		})
		require.True(t, ok)
		assert.Same(t, mfie, got[LabelMFIE])
	}
	{ // Any key difference is a miss, and recomputation is deterministic
		other, err := cache.SingularImpedanceRWG(b, 2, 2.e-3, normals)
		require.NoError(t, err)
		assert.Equal(t, 2, cache.Len())
		assert.NotSame(t, efie, other[LabelEFIE])
		fewer, err := cache.SingularImpedanceRWG(b, 1, 1.e-3, normals)
		require.NoError(t, err)
		assert.Equal(t, 3, cache.Len())
		assert.NotSame(t, efie, fewer[LabelEFIE])
		assert.Equal(t, []int{1}, fewer[LabelEFIE].Subs[0].Shape)
		fresh := NewCache(WithWorkers(1), WithLog(nil))
		again, err := fresh.SingularImpedanceRWG(b, 2, 1.e-3, normals)
		require.NoError(t, err)
		assert.Equal(t, efie.Data, again[LabelEFIE].Data)
		assert.Equal(t, mfie.Data, again[LabelMFIE].Data)
		assert.Equal(t, nmfie.Data, again[LabelNMFIE].Data)
		assert.Equal(t, efie.Indptr, again[LabelEFIE].Indptr)
	}
	{ // Flipped normals change the key and the normal MFIE term
		flipped := make([][3]float64, len(normals))
		for k, n := range normals {
			flipped[k] = geometry.Scale(-1, n)
		}
		ft, err := cache.SingularImpedanceRWG(b, 2, 1.e-3, flipped)
		require.NoError(t, err)
		assert.Equal(t, 4, cache.Len())
		a, _ := nmfie.Element(0, 1, SubA, 0, 1, 2)
		fa, _ := ft[LabelNMFIE].Element(0, 1, SubA, 0, 1, 2)
		assert.InDelta(t, -a, fa, 1.e-14)
	}
}

func TestSingularImpedanceRWGErrors(t *testing.T) {
	var (
		b     = octahedronBasis(t)
		cache = NewCache(WithLog(nil))
		norms = b.Mesh().Normals()
	)
	{ // Unsupported kind is rejected before any work
		_, err := cache.SingularImpedanceRWG(pointBasis{mesh: b.Mesh()}, 2, 1.e-3, norms)
		assert.True(t, errors.Is(err, ErrUnsupportedBasisKind))
	}
	{ // Invalid arguments
		_, err := cache.SingularImpedanceRWG(b, 0, 1.e-3, norms)
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = cache.SingularImpedanceRWG(b, 2, 0, norms)
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = cache.SingularImpedanceRWG(b, 2, 1.e-3, norms[:3])
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	{ // A degenerate triangle fails the whole computation and stores nothing
		m, err := geometry.NewSurfaceMesh(
			[][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {2, 0, 0}},
			[][3]int{{0, 1, 2}, {1, 0, 3}})
		require.NoError(t, err)
		db, err := basis.NewDivRWG(m)
		require.NoError(t, err)
		_, err = cache.SingularImpedanceRWG(db, 1, 1.e-3, m.Normals())
		assert.ErrorIs(t, err, ErrQuadratureFailure)
	}
	assert.Equal(t, 0, cache.Len())
}

func TestSingularImpedanceRWGConcurrent(t *testing.T) {
	var (
		b       = octahedronBasis(t)
		cache   = NewCache(WithLog(nil))
		normals = b.Mesh().Normals()
		wg      sync.WaitGroup
		results = make([]Terms, 6)
		errs    = make([]error, 6)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.SingularImpedanceRWG(b, 1, 1.e-3, normals)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0][LabelEFIE], results[i][LabelEFIE])
	}
	assert.Equal(t, 1, cache.Len())
}
