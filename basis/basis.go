package basis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/notargets/gomodes/geometry"
)

const KindRWG = "RWG"

var ErrNonManifold = errors.New("basis: edge shared by more than two triangles")

// Basis is a set of current basis functions defined over a surface mesh.
type Basis interface {
	Kind() string
	ID() uuid.UUID
	Mesh() *geometry.SurfaceMesh
	Len() int
}

// Contribution is the restriction of one basis function to one triangle:
// Sign*Length/(2A) * (r - r_Vertex), with surface divergence Sign*Length/A.
type Contribution struct {
	Function int
	Vertex   int // local vertex index 0..2 of the free vertex
	Sign     float64
	Length   float64
}

// LinearTriangle is a basis whose functions are linear vector functions on
// flat triangles, the representation the singular integrals are derived for.
type LinearTriangle interface {
	Basis
	TriangleFunctions() [][]Contribution
}

// Edge is an interior edge carrying one RWG function.
type Edge struct {
	Nodes       [2]int // mesh nodes, ascending
	Plus, Minus int    // triangles
	FreePlus    int    // local index of the vertex opposite the edge in Plus
	FreeMinus   int
	Length      float64
}

// DivRWG is the divergence conforming RWG basis, one function per interior
// edge, positive on the triangle with the smaller index.
type DivRWG struct {
	Edges   []Edge
	mesh    *geometry.SurfaceMesh
	id      uuid.UUID
	triFunc [][]Contribution
}

func NewDivRWG(m *geometry.SurfaceMesh) (b *DivRWG, err error) {
	type side struct{ tri, free int }
	var (
		edgeTris = make(map[[2]int][]side)
		keys     [][2]int
	)
	for k, tri := range m.Triangles {
		for i := 0; i < 3; i++ {
			a, c := tri[(i+1)%3], tri[(i+2)%3]
			key := [2]int{a, c}
			if c < a {
				key = [2]int{c, a}
			}
			if _, ok := edgeTris[key]; !ok {
				keys = append(keys, key)
			}
			edgeTris[key] = append(edgeTris[key], side{tri: k, free: i})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	b = &DivRWG{
		mesh:    m,
		id:      uuid.NewSHA1(m.ID, []byte(KindRWG)),
		triFunc: make([][]Contribution, len(m.Triangles)),
	}
	for _, key := range keys {
		sides := edgeTris[key]
		switch len(sides) {
		case 1: // boundary edge
			continue
		case 2:
		default:
			return nil, fmt.Errorf("%w: edge %v has %d triangles", ErrNonManifold, key, len(sides))
		}
		plus, minus := sides[0], sides[1]
		if minus.tri < plus.tri {
			plus, minus = minus, plus
		}
		e := Edge{
			Nodes:     key,
			Plus:      plus.tri,
			Minus:     minus.tri,
			FreePlus:  plus.free,
			FreeMinus: minus.free,
			Length:    geometry.Distance(m.Nodes[key[0]], m.Nodes[key[1]]),
		}
		fn := len(b.Edges)
		b.Edges = append(b.Edges, e)
		b.triFunc[e.Plus] = append(b.triFunc[e.Plus],
			Contribution{Function: fn, Vertex: e.FreePlus, Sign: 1, Length: e.Length})
		b.triFunc[e.Minus] = append(b.triFunc[e.Minus],
			Contribution{Function: fn, Vertex: e.FreeMinus, Sign: -1, Length: e.Length})
	}
	return
}

func (b *DivRWG) Kind() string                        { return KindRWG }
func (b *DivRWG) ID() uuid.UUID                       { return b.id }
func (b *DivRWG) Mesh() *geometry.SurfaceMesh         { return b.mesh }
func (b *DivRWG) Len() int                            { return len(b.Edges) }
func (b *DivRWG) TriangleFunctions() [][]Contribution { return b.triFunc }

// Eval returns the value of function fn at the point r of triangle tri, zero
// if the function is not supported there.
func (b *DivRWG) Eval(fn, tri int, r [3]float64) (f [3]float64) {
	var (
		areas = b.mesh.Areas()
	)
	for _, c := range b.triFunc[tri] {
		if c.Function != fn {
			continue
		}
		free := b.mesh.Nodes[b.mesh.Triangles[tri][c.Vertex]]
		f = geometry.Scale(c.Sign*c.Length/(2*areas[tri]), geometry.Sub(r, free))
	}
	return
}
