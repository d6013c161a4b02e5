package geometry

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var ErrInvalidMesh = errors.New("geometry: invalid surface mesh")

// SurfaceMesh is a triangulated surface. Triangles index into Nodes, and the
// node order of each triangle fixes its normal by the right hand rule.
type SurfaceMesh struct {
	Nodes     [][3]float64
	Triangles [][3]int
	ID        uuid.UUID

	sharingOnce sync.Once
	sharing     [][]int
}

func NewSurfaceMesh(nodes [][3]float64, triangles [][3]int) (m *SurfaceMesh, err error) {
	for k, tri := range triangles {
		for _, n := range tri {
			if n < 0 || n >= len(nodes) {
				err = fmt.Errorf("%w: triangle %d references node %d of %d", ErrInvalidMesh, k, n, len(nodes))
				return
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			err = fmt.Errorf("%w: triangle %d repeats a node %v", ErrInvalidMesh, k, tri)
			return
		}
	}
	m = &SurfaceMesh{
		Nodes:     nodes,
		Triangles: triangles,
		ID:        uuid.New(),
	}
	return
}

func (m *SurfaceMesh) NumTriangles() int { return len(m.Triangles) }

func (m *SurfaceMesh) TriangleNodes(k int) (v0, v1, v2 [3]float64) {
	tri := m.Triangles[k]
	return m.Nodes[tri[0]], m.Nodes[tri[1]], m.Nodes[tri[2]]
}

// TrianglesSharingNodes lists, for every node, the triangles touching it in
// ascending order. Computed on first use and cached.
func (m *SurfaceMesh) TrianglesSharingNodes() [][]int {
	m.sharingOnce.Do(func() {
		m.sharing = make([][]int, len(m.Nodes))
		for k, tri := range m.Triangles {
			for _, n := range tri {
				m.sharing[n] = append(m.sharing[n], k)
			}
		}
	})
	return m.sharing
}

// SharingTriangles is the ascending union of the triangles touching any node
// of triangle p, p included.
func (m *SurfaceMesh) SharingTriangles(p int) (tris []int) {
	var (
		sharing = m.TrianglesSharingNodes()
		seen    = make(map[int]struct{})
	)
	for _, n := range m.Triangles[p] {
		for _, k := range sharing[n] {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				tris = append(tris, k)
			}
		}
	}
	sort.Ints(tris)
	return
}

// Normals returns the unit normal of every triangle.
func (m *SurfaceMesh) Normals() (normals [][3]float64) {
	normals = make([][3]float64, len(m.Triangles))
	for k := range m.Triangles {
		v0, v1, v2 := m.TriangleNodes(k)
		normals[k] = Unit(Cross(Sub(v1, v0), Sub(v2, v0)))
	}
	return
}

func (m *SurfaceMesh) Areas() (areas []float64) {
	areas = make([]float64, len(m.Triangles))
	for k := range m.Triangles {
		v0, v1, v2 := m.TriangleNodes(k)
		areas[k] = 0.5 * Norm(Cross(Sub(v1, v0), Sub(v2, v0)))
	}
	return
}

func (m *SurfaceMesh) Centroids() (c [][3]float64) {
	c = make([][3]float64, len(m.Triangles))
	for k := range m.Triangles {
		v0, v1, v2 := m.TriangleNodes(k)
		c[k] = Scale(1./3., Add(Add(v0, v1), v2))
	}
	return
}

// MaxEdgeLength is the longest triangle edge in the mesh.
func (m *SurfaceMesh) MaxEdgeLength() (max float64) {
	for k := range m.Triangles {
		v0, v1, v2 := m.TriangleNodes(k)
		max = math.Max(max, math.Max(Distance(v0, v1), math.Max(Distance(v1, v2), Distance(v2, v0))))
	}
	return
}

// Fingerprint is the hex SHA-1 of the little-endian float64 bytes of a
// normals array, identifying the normals for cache lookups.
func Fingerprint(normals [][3]float64) string {
	var (
		h   = sha1.New()
		buf [8]byte
	)
	for _, n := range normals {
		for _, val := range n {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(val))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
