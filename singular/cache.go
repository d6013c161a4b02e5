package singular

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/geometry"
	"github.com/notargets/gomodes/quadrature"
	"github.com/notargets/gomodes/utils"
)

const (
	LabelEFIE  = "T_EFIE"
	LabelMFIE  = "T_MFIE"
	LabelNMFIE = "N_MFIE"

	SubPhi = "phi"
	SubA   = "A"
)

// Key identifies one set of singular terms. Entries are reused only on an
// exact match of every field.
type Key struct {
	Kind        string
	BasisID     uuid.UUID
	Terms       int
	RelTol      float64
	NormalsHash string
}

func (k Key) String() string {
	return k.Kind + "/" + k.BasisID.String() + "/" + strconv.Itoa(k.Terms) + "/" +
		strconv.FormatFloat(k.RelTol, 'g', -1, 64) + "/" + k.NormalsHash
}

// Terms maps LabelEFIE, LabelMFIE and LabelNMFIE to their compressed
// tables. T_EFIE holds phi [terms] and A [terms,3,3] per triangle pair,
// the MFIE tables hold A [terms,3,3] and exclude the self pairs.
type Terms map[string]*Compressed

// clone copies the label map; the tables are shared.
func (t Terms) clone() (c Terms) {
	c = make(Terms, len(t))
	for label, table := range t {
		c[label] = table
	}
	return
}

// Cache holds the singular terms computed in one session. Entries are never
// evicted or modified once stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Terms
	group   singleflight.Group
	workers int
	log     io.Writer
}

type CacheOption func(*Cache)

// WithWorkers sets the number of goroutines filling observer rows, zero for
// one per CPU.
func WithWorkers(n int) CacheOption {
	return func(c *Cache) { c.workers = n }
}

func WithLog(w io.Writer) CacheOption {
	return func(c *Cache) { c.log = w }
}

func NewCache(opts ...CacheOption) (c *Cache) {
	c = &Cache{
		entries: make(map[Key]Terms),
		log:     os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = io.Discard
	}
	return
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns a copy of the stored label map, sharing its tables.
func (c *Cache) Lookup(k Key) (t Terms, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok = c.entries[k]; ok {
		t = t.clone()
	}
	return
}

// loadOrStore keeps the first stored entry for a key.
func (c *Cache) loadOrStore(k Key, t Terms) Terms {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[k]; ok {
		return old
	}
	c.entries[k] = t
	return t
}

// SingularImpedanceRWG returns the extracted singular terms R^(2k-1),
// k = 0..numTerms-1, for every pair of triangles sharing at least one node.
// Results are cached under the basis identity, term count, tolerance and a
// fingerprint of the normals.
func (c *Cache) SingularImpedanceRWG(b basis.Basis, numTerms int, relTol float64,
	normals [][3]float64) (Terms, error) {
	if _, ok := b.(basis.LinearTriangle); !ok {
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedBasisKind, b.Kind())
	}
	mesh := b.Mesh()
	switch {
	case numTerms < 1:
		return nil, fmt.Errorf("%w: %d terms", ErrInvalidInput, numTerms)
	case !(relTol > 0):
		return nil, fmt.Errorf("%w: tolerance %g", ErrInvalidInput, relTol)
	case len(normals) != mesh.NumTriangles():
		return nil, fmt.Errorf("%w: %d normals for %d triangles", ErrInvalidInput, len(normals), mesh.NumTriangles())
	}
	key := Key{
		Kind:        basis.KindRWG,
		BasisID:     b.ID(),
		Terms:       numTerms,
		RelTol:      relTol,
		NormalsHash: geometry.Fingerprint(normals),
	}
	if t, ok := c.Lookup(key); ok {
		return t, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if t, ok := c.Lookup(key); ok {
			return t, nil
		}
		t, err := c.compute(mesh, numTerms, relTol, normals)
		if err != nil {
			return nil, err
		}
		return c.loadOrStore(key, t), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Terms).clone(), nil
}

type rowBlock struct {
	efie, mfie, nmfie *MultiSparse
}

func newRowBlock(numTerms int) rowBlock {
	var (
		phi = SubArray{Name: SubPhi, Shape: []int{numTerms}}
		A   = SubArray{Name: SubA, Shape: []int{numTerms, 3, 3}}
	)
	return rowBlock{
		efie:  NewMultiSparse([]SubArray{phi, A}),
		mfie:  NewMultiSparse([]SubArray{A}),
		nmfie: NewMultiSparse([]SubArray{A}),
	}
}

func (c *Cache) compute(mesh *geometry.SurfaceMesh, numTerms int, relTol float64,
	normals [][3]float64) (t Terms, err error) {
	var (
		start   = time.Now()
		nTri    = mesh.NumTriangles()
		tris    = make([]triangle, nTri)
		rule    = quadrature.NewTriangleRule(quadrature.OrderForTolerance(relTol))
		workers = utils.Workers(c.workers)
		blocks  = make([]rowBlock, workers)
	)
	for k := range tris {
		tris[k] = newTriangle(mesh.TriangleNodes(k))
	}
	mesh.TrianglesSharingNodes() // build adjacency before fanning out
	err = utils.RunPartitioned(context.Background(), workers, nTri,
		func(ctx context.Context, bucket, kMin, kMax int) error {
			rb := newRowBlock(numTerms)
			for p := kMin; p < kMax; p++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				v := tris[p].v
				pts, w := rule.Points(v[0], v[1], v[2], tris[p].area)
				for _, q := range mesh.SharingTriangles(p) {
					pi, ok := integratePair(&tris[p], &tris[q], normals[p], numTerms, pts, w, q != p)
					if !ok {
						return fmt.Errorf("%w: observer %d, source %d", ErrQuadratureFailure, p, q)
					}
					if err := rb.efie.Insert(p, q, pi.Phi, pi.AEFIE); err != nil {
						return err
					}
					if q == p {
						continue
					}
					if err := rb.mfie.Insert(p, q, pi.AMFIE); err != nil {
						return err
					}
					if err := rb.nmfie.Insert(p, q, pi.NMFIE); err != nil {
						return err
					}
				}
			}
			blocks[bucket] = rb
			return nil
		})
	if err != nil {
		return nil, err
	}
	all := newRowBlock(numTerms)
	for _, rb := range blocks { // buckets hold ascending row ranges
		if rb.efie == nil {
			continue
		}
		if err = all.efie.Merge(rb.efie); err != nil {
			return nil, err
		}
		if err = all.mfie.Merge(rb.mfie); err != nil {
			return nil, err
		}
		if err = all.nmfie.Merge(rb.nmfie); err != nil {
			return nil, err
		}
	}
	t = Terms{
		LabelEFIE:  all.efie.ToCSR(nTri, OrderF),
		LabelMFIE:  all.mfie.ToCSR(nTri, OrderF),
		LabelNMFIE: all.nmfie.ToCSR(nTri, OrderF),
	}
	fmt.Fprintf(c.log, "Singular terms: %d triangles, %d terms, relTol %g, %d pairs, %d points per observer, %v\n",
		nTri, numTerms, relTol, all.efie.Len(), rule.Len(), time.Since(start))
	return
}
