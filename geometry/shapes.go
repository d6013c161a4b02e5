package geometry

// Octahedron returns the closed octahedral surface of the given circumradius
// with outward normals.
func Octahedron(radius float64) *SurfaceMesh {
	var (
		r     = radius
		nodes = [][3]float64{
			{r, 0, 0}, {-r, 0, 0},
			{0, r, 0}, {0, -r, 0},
			{0, 0, r}, {0, 0, -r},
		}
		tris = [][3]int{
			{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
			{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
		}
	)
	m, err := NewSurfaceMesh(nodes, tris)
	if err != nil {
		panic(err)
	}
	return m
}

// Sphere subdivides an octahedron levels times, each triangle into four,
// projecting the new nodes onto the sphere.
func Sphere(radius float64, levels int) *SurfaceMesh {
	var (
		oct   = Octahedron(radius)
		nodes = oct.Nodes
		tris  = oct.Triangles
	)
	for l := 0; l < levels; l++ {
		var (
			midpoint = make(map[[2]int]int)
			newTris  = make([][3]int, 0, 4*len(tris))
		)
		mid := func(a, b int) int {
			key := [2]int{a, b}
			if b < a {
				key = [2]int{b, a}
			}
			if n, ok := midpoint[key]; ok {
				return n
			}
			p := Scale(radius, Unit(Scale(0.5, Add(nodes[a], nodes[b]))))
			nodes = append(nodes, p)
			midpoint[key] = len(nodes) - 1
			return len(nodes) - 1
		}
		for _, tri := range tris {
			a, b, c := tri[0], tri[1], tri[2]
			ab, bc, ca := mid(a, b), mid(b, c), mid(c, a)
			newTris = append(newTris,
				[3]int{a, ab, ca}, [3]int{ab, b, bc},
				[3]int{ca, bc, c}, [3]int{ab, bc, ca})
		}
		tris = newTris
	}
	m, err := NewSurfaceMesh(nodes, tris)
	if err != nil {
		panic(err)
	}
	return m
}
