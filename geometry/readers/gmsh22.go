package readers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gomodes/geometry"
)

var ErrUnsupportedFormat = errors.New("readers: unsupported mesh format")

const gmshTriangle = 2 // 3-node triangle element type

// ReadGmsh22 reads the triangles of a Gmsh MSH 2.2 ASCII file as a surface
// mesh. Other element types are skipped.
func ReadGmsh22(filename string) (*geometry.SurfaceMesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseGmsh22(file)
}

func ParseGmsh22(r io.Reader) (*geometry.SurfaceMesh, error) {
	var (
		scanner   = bufio.NewScanner(r)
		nodes     [][3]float64
		nodeIndex = make(map[int]int)
		triangles [][3]int
		err       error
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "$MeshFormat":
			if err = readMeshFormat22(scanner); err != nil {
				return nil, err
			}

		case "$Nodes":
			if nodes, err = readNodes22(scanner, nodeIndex); err != nil {
				return nil, err
			}

		case "$Elements":
			if triangles, err = readTriangles22(scanner, nodeIndex); err != nil {
				return nil, err
			}

		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				// Skip sections not needed for a surface mesh
				endMarker := "$End" + line[1:]
				for scanner.Scan() {
					if strings.TrimSpace(scanner.Text()) == endMarker {
						break
					}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %v", err)
	}
	return geometry.NewSurfaceMesh(nodes, triangles)
}

func readMeshFormat22(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}

	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}
	if !strings.HasPrefix(parts[0], "2.") {
		return fmt.Errorf("%w: version %s", ErrUnsupportedFormat, parts[0])
	}
	if fileType, _ := strconv.Atoi(parts[1]); fileType == 1 {
		return fmt.Errorf("%w: binary files", ErrUnsupportedFormat)
	}

	// Skip to end
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndMeshFormat" {
			break
		}
	}
	return nil
}

func readNodes22(scanner *bufio.Scanner, nodeIndex map[int]int) (nodes [][3]float64, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Nodes")
	}

	numNodes, _ := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	nodes = make([][3]float64, 0, numNodes)

	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading nodes")
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) < 4 {
			return nil, fmt.Errorf("invalid node line: %s", scanner.Text())
		}

		nodeID, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q: %v", parts[0], err)
		}
		var x [3]float64
		for d := 0; d < 3; d++ {
			if x[d], err = strconv.ParseFloat(parts[1+d], 64); err != nil {
				return nil, fmt.Errorf("node %d: %v", nodeID, err)
			}
		}
		nodeIndex[nodeID] = len(nodes)
		nodes = append(nodes, x)
	}

	// Skip to end
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndNodes" {
			break
		}
	}
	return
}

func readTriangles22(scanner *bufio.Scanner, nodeIndex map[int]int) (tris [][3]int, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Elements")
	}

	numElements, _ := strconv.Atoi(strings.TrimSpace(scanner.Text()))

	for i := 0; i < numElements; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading elements")
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) < 5 {
			return nil, fmt.Errorf("invalid element line")
		}

		elemID, _ := strconv.Atoi(parts[0])
		elemType, _ := strconv.Atoi(parts[1])
		numTags, _ := strconv.Atoi(parts[2])
		if elemType != gmshTriangle {
			continue
		}

		nodeStart := 3 + numTags
		if len(parts) < nodeStart+3 {
			return nil, fmt.Errorf("element %d: expected 3 nodes, got %d",
				elemID, len(parts)-nodeStart)
		}
		var tri [3]int
		for j := 0; j < 3; j++ {
			nodeID, _ := strconv.Atoi(parts[nodeStart+j])
			ind, ok := nodeIndex[nodeID]
			if !ok {
				return nil, fmt.Errorf("element %d: unknown node %d", elemID, nodeID)
			}
			tri[j] = ind
		}
		tris = append(tris, tri)
	}

	// Skip to end
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndElements" {
			break
		}
	}
	return
}
