package InputParameters

import (
	"fmt"
	"io"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/gomodes/contour"
)

// Parameters obtained from the YAML input file. Complex values are written
// as [real, imag] pairs in units of Scale rad/s.
type SearchParameters struct {
	Title          string            `json:"Title"`
	Geometry       string            `json:"Geometry"` // "sphere", "octahedron" or a gmsh .msh file
	Radius         float64           `json:"Radius"`
	Refinement     int               `json:"Refinement"`
	Scale          float64           `json:"Scale"`
	Contour        ContourParameters `json:"Contour"`
	Probes         int               `json:"Probes"`
	Moments        int               `json:"Moments"`
	Threshold      float64           `json:"Threshold"`
	Seed           uint64            `json:"Seed"`
	RelTol         float64           `json:"RelTol"`
	MaxIter        int               `json:"MaxIter"`
	SingularTerms  int               `json:"SingularTerms"`
	SingularRelTol float64           `json:"SingularRelTol"`
	AddConjugates  bool              `json:"AddConjugates"`
}

type ContourParameters struct {
	Type        string     `json:"Type"` // "rectangular" or "external"
	SMin        [2]float64 `json:"SMin"`
	SMax        [2]float64 `json:"SMax"`
	Corner      [2]float64 `json:"Corner"`
	Overlap     float64    `json:"Overlap"`
	AvoidOrigin float64    `json:"AvoidOrigin"`
	Points      int        `json:"Points"`
}

const ExampleFile = `
########################################
Title: "PEC sphere"
Geometry: sphere # or octahedron, or a gmsh 2.2 .msh file
Radius: 0.01
Refinement: 1
Scale: 3.0e+10 # c/Radius
Contour:
  Type: rectangular
  SMin: [-2.0, 0.2]
  SMax: [0.0, 2.5]
  Points: 30
Probes: 8
Moments: 2
RelTol: 1.e-6
MaxIter: 200
SingularTerms: 2
SingularRelTol: 1.e-4
AddConjugates: true
########################################
`

func Defaults() *SearchParameters {
	return &SearchParameters{
		Geometry:       "sphere",
		Radius:         1,
		Refinement:     1,
		Scale:          1,
		Contour:        ContourParameters{Type: "rectangular", Points: 30},
		Probes:         8,
		Moments:        2,
		Threshold:      1.e-10,
		Seed:           1,
		RelTol:         1.e-6,
		MaxIter:        200,
		SingularTerms:  2,
		SingularRelTol: 1.e-4,
	}
}

// Parse overlays the file on the receiver's current values.
func (sp *SearchParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, sp); err != nil {
		return err
	}
	if sp.Scale == 0 {
		sp.Scale = 1
	}
	return nil
}

func (sp *SearchParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", sp.Title)
	fmt.Fprintf(w, "[%s]\t\t= Geometry\n", sp.Geometry)
	fmt.Fprintf(w, "%8.5g\t\t= Radius\n", sp.Radius)
	fmt.Fprintf(w, "[%d]\t\t\t= Refinement\n", sp.Refinement)
	fmt.Fprintf(w, "%8.5g\t\t= Scale\n", sp.Scale)
	cp := sp.Contour
	switch strings.ToLower(cp.Type) {
	case "external":
		fmt.Fprintf(w, "[external] corner %v, overlap %g, avoid origin %g, %d points\t= Contour\n",
			cp.Corner, cp.Overlap, cp.AvoidOrigin, cp.Points)
	default:
		fmt.Fprintf(w, "[%s] %v -> %v, %d points\t= Contour\n", cp.Type, cp.SMin, cp.SMax, cp.Points)
	}
	fmt.Fprintf(w, "[%d x %d]\t\t= Probes x Moments\n", sp.Probes, sp.Moments)
	fmt.Fprintf(w, "%8.2e\t\t= Threshold\n", sp.Threshold)
	fmt.Fprintf(w, "%8.2e\t\t= RelTol\n", sp.RelTol)
	fmt.Fprintf(w, "[%d]\t\t\t= MaxIter\n", sp.MaxIter)
	fmt.Fprintf(w, "[%d] %8.2e\t\t= Singular terms, tolerance\n", sp.SingularTerms, sp.SingularRelTol)
	fmt.Fprintf(w, "%v\t\t\t= AddConjugates\n", sp.AddConjugates)
}

func (sp *SearchParameters) complexOf(v [2]float64) complex128 {
	return complex(v[0]*sp.Scale, v[1]*sp.Scale)
}

// BuildContour returns the search contour in rad/s.
func (sp *SearchParameters) BuildContour() (contour.Contour, error) {
	cp := sp.Contour
	switch strings.ToLower(cp.Type) {
	case "rectangular", "":
		return contour.NewRectangular(sp.complexOf(cp.SMin), sp.complexOf(cp.SMax), cp.Points)
	case "external":
		return contour.NewExternal(sp.complexOf(cp.Corner), cp.Overlap*sp.Scale, cp.AvoidOrigin*sp.Scale, cp.Points)
	default:
		return nil, fmt.Errorf("%w: unknown contour type %q", contour.ErrInvalidContour, cp.Type)
	}
}
