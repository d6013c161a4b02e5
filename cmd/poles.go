/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gomodes/InputParameters"
	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/eig"
	"github.com/notargets/gomodes/geometry"
	"github.com/notargets/gomodes/geometry/readers"
	"github.com/notargets/gomodes/modes"
	"github.com/notargets/gomodes/operator"
	"github.com/notargets/gomodes/singular"
	"github.com/notargets/gomodes/utils"
)

type PoleSearch struct {
	ICFile     string
	GridFile   string
	Linearised bool
	Workers    int
}

// PolesCmd represents the poles command
var PolesCmd = &cobra.Command{
	Use:   "poles",
	Short: "Find the resonant modes of a conducting surface inside a contour",
	Long: `
Estimates the poles of the EFIE impedance operator enclosed by the contour of
the input file and refines them, printing each mode's complex frequency.

gomodes poles -I search.yaml [-F surface.msh]`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		ps := &PoleSearch{Workers: viper.GetInt("workers")}
		if ps.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		if ps.GridFile, err = cmd.Flags().GetString("gridFile"); err != nil {
			panic(err)
		}
		ps.Linearised, _ = cmd.Flags().GetBool("linearised")
		sp := processInput(ps.ICFile)
		if len(ps.GridFile) != 0 {
			sp.Geometry = ps.GridFile
		}
		if _, err = RunPoles(sp, ps, os.Stdout); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(PolesCmd)
	PolesCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for search parameters like:\n\t- geometry\n\t- contour\n\t- tolerances")
	PolesCmd.Flags().StringP("gridFile", "F", "", "Surface mesh in gmsh 2.2 (.msh) format, replaces the input file geometry")
	PolesCmd.Flags().BoolP("linearised", "l", false, "start from the quasi-static estimate at the contour centre instead of the contour integral")
}

func processInput(icFile string) (sp *InputParameters.SearchParameters) {
	var (
		err  error
		data []byte
	)
	sp = InputParameters.Defaults()
	if len(icFile) == 0 {
		fmt.Printf("error: %s\n", fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)"))
		fmt.Printf("Example File:%s\n", InputParameters.ExampleFile)
		os.Exit(1)
	}
	if data, err = os.ReadFile(icFile); err != nil {
		panic(err)
	}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	return
}

// buildMesh resolves the geometry name to a built-in shape or a gmsh file.
func buildMesh(sp *InputParameters.SearchParameters) (*geometry.SurfaceMesh, error) {
	switch strings.ToLower(sp.Geometry) {
	case "sphere", "":
		return geometry.Sphere(sp.Radius, sp.Refinement), nil
	case "octahedron":
		return geometry.Octahedron(sp.Radius), nil
	default:
		return readers.ReadGmsh22(sp.Geometry)
	}
}

func newOperator(sp *InputParameters.SearchParameters, workers int, log io.Writer) (e *operator.EFIE, err error) {
	var (
		mesh *geometry.SurfaceMesh
		rwg  *basis.DivRWG
	)
	if mesh, err = buildMesh(sp); err != nil {
		return
	}
	if rwg, err = basis.NewDivRWG(mesh); err != nil {
		return
	}
	fmt.Fprintf(log, "%d triangles, %d RWG functions\n", mesh.NumTriangles(), rwg.Len())
	cache := singular.NewCache(singular.WithWorkers(workers), singular.WithLog(log))
	return operator.NewEFIE(rwg, cache,
		operator.WithTerms(sp.SingularTerms),
		operator.WithRelTol(sp.SingularRelTol),
		operator.WithWorkers(workers))
}

func RunPoles(sp *InputParameters.SearchParameters, ps *PoleSearch, log io.Writer) (ms *modes.ModeSet, err error) {
	var (
		start = time.Now()
		efie  *operator.EFIE
		est   []eig.Estimate
	)
	sp.Print(log)
	if efie, err = newOperator(sp, ps.Workers, log); err != nil {
		return
	}
	c, err := sp.BuildContour()
	if err != nil {
		return
	}
	if ps.Linearised {
		center, _ := c.Center()
		if est, err = eig.LinearisedEstimate(efie, center, efie.Size()); err != nil {
			return
		}
		// keep the quasi-static roots the contour asks for
		var inside []eig.Estimate
		for _, e := range est {
			if c.Contains(e.S) {
				inside = append(inside, e)
			}
		}
		est = inside
		fmt.Fprintf(log, "%d linearised estimates inside %s\n", len(est), c.Name())
	} else {
		eo := eig.EstimateOptions{
			Probes:    sp.Probes,
			Moments:   sp.Moments,
			Threshold: sp.Threshold,
			Seed:      sp.Seed,
			Workers:   ps.Workers,
			Log:       log,
		}
		var er *eig.EstimateResult
		if er, err = eig.EstimatePoles(efie, c, eo); err != nil {
			return
		}
		est = er.Estimates
		if er.Saturated {
			fmt.Fprintf(log, "warning: rank %d fills the probe capacity, the contour may enclose more poles; increase Probes or Moments\n",
				er.Rank)
		}
	}
	rr := eig.Refine(efie, est, eig.RefineOptions{
		RelTol:  sp.RelTol,
		MaxIter: sp.MaxIter,
		Workers: ps.Workers,
		Log:     log,
		Region:  c,
	})
	ms = rr.Modes
	if sp.AddConjugates {
		ms = ms.AddConjugates(math.Sqrt(sp.RelTol))
	}
	printModes(log, ms, sp.Radius)
	if len(rr.Dropped) != 0 {
		fmt.Fprintf(log, "%d of %d estimates did not converge inside %s\n", len(rr.Dropped), len(est), c.Name())
	}
	fmt.Fprintf(log, "Pole search finished in %v, %s\n", time.Since(start), utils.GetMemUsage())
	return
}

func printModes(w io.Writer, ms *modes.ModeSet, radius float64) {
	fmt.Fprintf(w, "%d modes\n", ms.Len())
	fmt.Fprintf(w, "%4s %14s %14s %12s %12s %10s\n", "#", "Re(s)", "Im(s)", "Re(sa/c)", "Im(sa/c)", "Q")
	for i, s := range ms.Frequencies() {
		var (
			norm = s * complex(radius/operator.SpeedOfLight, 0)
			q    = math.Inf(1)
		)
		if real(s) != 0 {
			q = math.Abs(imag(s)) / (-2 * real(s))
		}
		fmt.Fprintf(w, "%4d %+14.6e %+14.6e %+12.6f %+12.6f %10.3f\n", i, real(s), imag(s), real(norm), imag(norm), q)
	}
}
