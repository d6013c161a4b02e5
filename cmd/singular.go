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
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gomodes/InputParameters"
	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/singular"
)

// SingularCmd represents the singular command
var SingularCmd = &cobra.Command{
	Use:   "singular",
	Short: "Compute the singular quadrature terms of a surface mesh",
	Long: `
Computes the singular and near singular EFIE and MFIE terms of every pair of
triangles sharing a node and reports the size of each compressed term.

gomodes singular -F surface.msh -t 3 -r 1.e-6`,
	Run: func(cmd *cobra.Command, args []string) {
		sp := InputParameters.Defaults()
		if gf, _ := cmd.Flags().GetString("gridFile"); len(gf) != 0 {
			sp.Geometry = gf
		} else {
			sp.Geometry, _ = cmd.Flags().GetString("geometry")
		}
		sp.Radius, _ = cmd.Flags().GetFloat64("radius")
		sp.Refinement, _ = cmd.Flags().GetInt("refinement")
		sp.SingularTerms, _ = cmd.Flags().GetInt("terms")
		sp.SingularRelTol, _ = cmd.Flags().GetFloat64("relTol")
		if err := RunSingular(sp, viper.GetInt("workers"), os.Stdout); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(SingularCmd)
	SingularCmd.Flags().StringP("gridFile", "F", "", "Surface mesh in gmsh 2.2 (.msh) format")
	SingularCmd.Flags().StringP("geometry", "g", "sphere", "built-in geometry when no grid file is given: sphere or octahedron")
	SingularCmd.Flags().Float64("radius", 1, "radius of the built-in geometry")
	SingularCmd.Flags().Int("refinement", 1, "subdivision levels of the built-in sphere")
	SingularCmd.Flags().IntP("terms", "t", 2, "number of singular expansion terms")
	SingularCmd.Flags().Float64P("relTol", "r", 1.e-4, "relative tolerance of the singular integration")
}

func RunSingular(sp *InputParameters.SearchParameters, workers int, log io.Writer) error {
	mesh, err := buildMesh(sp)
	if err != nil {
		return err
	}
	rwg, err := basis.NewDivRWG(mesh)
	if err != nil {
		return err
	}
	var (
		cache = singular.NewCache(singular.WithWorkers(workers), singular.WithLog(log))
	)
	terms, err := cache.SingularImpedanceRWG(rwg, sp.SingularTerms, sp.SingularRelTol, mesh.Normals())
	if err != nil {
		return err
	}
	labels := make([]string, 0, len(terms))
	for label := range terms {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	fmt.Fprintf(log, "%d triangles, %d RWG functions, mesh %s\n", mesh.NumTriangles(), rwg.Len(), mesh.ID)
	for _, label := range labels {
		c := terms[label]
		fmt.Fprintf(log, "%-8s %8d pairs, order %s,", label, c.NNZ(), c.Order)
		for _, sub := range c.Subs {
			fmt.Fprintf(log, " %s%v", sub.Name, sub.Shape)
		}
		fmt.Fprintln(log)
	}
	return nil
}
