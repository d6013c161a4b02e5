package readers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create temporary test files
func createTempMshFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.msh")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}

const squareMsh = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
1
2 1 "plate"
$EndPhysicalNames
$Nodes
4
10 0 0 0
20 1 0 0
30 1 1 0
40 0 1 0
$EndNodes
$Elements
4
1 1 2 1 1 10 20
2 15 2 1 1 10
3 2 2 1 1 10 20 30
4 2 2 1 1 10 30 40
$EndElements
`

func TestReadGmsh22(t *testing.T) {
	{ // Triangles only, node ids remapped to indices
		m, err := ReadGmsh22(createTempMshFile(t, squareMsh))
		require.NoError(t, err)
		assert.Len(t, m.Nodes, 4)
		assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, m.Triangles)
		assert.Equal(t, [3]float64{1, 1, 0}, m.Nodes[2])
		assert.InDeltaSlice(t, []float64{0.5, 0.5}, m.Areas(), 1.e-15)
	}
	{ // Binary files are rejected
		content := strings.Replace(squareMsh, "2.2 0 8", "2.2 1 8", 1)
		_, err := ParseGmsh22(strings.NewReader(content))
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	}
	{ // Newer formats are rejected
		content := strings.Replace(squareMsh, "2.2 0 8", "4.1 0 8", 1)
		_, err := ParseGmsh22(strings.NewReader(content))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	}
	{ // Unknown node reference
		content := strings.Replace(squareMsh, "4 2 2 1 1 10 30 40", "4 2 2 1 1 10 30 50", 1)
		_, err := ParseGmsh22(strings.NewReader(content))
		assert.Error(t, err)
	}
	{ // Missing file
		_, err := ReadGmsh22(filepath.Join(t.TempDir(), "missing.msh"))
		assert.Error(t, err)
	}
}
