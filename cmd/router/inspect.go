package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/graph"
)

func newInspectCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print node and edge counts, bounds, road classes and components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.loadGraph()
			if err != nil {
				return err
			}

			b := g.Bounds()
			p := g.Profile()
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "nodes\t%d\n", g.NumNodes)
			fmt.Fprintf(w, "edges\t%d\n", g.NumEdges)
			fmt.Fprintf(w, "bounds\tlat [%.6f, %.6f] lon [%.6f, %.6f]\n", b.Min.Lat(), b.Max.Lat(), b.Min.Lon(), b.Max.Lon())
			fmt.Fprintf(w, "profile\t%s\n", p.Name)

			fmt.Fprintln(w, "\nclass\tedges\tweight")
			counts := make(map[uint8]int)
			for _, c := range g.Class {
				counts[c]++
			}
			classes := make([]uint8, 0, len(counts))
			for c := range counts {
				classes = append(classes, c)
			}
			sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
			for _, c := range classes {
				weight := "excluded"
				if !p.Excludes(c) {
					weight = fmt.Sprintf("%.3f", p.Weight(c))
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", graph.ClassName(c), counts[c], weight)
			}

			comps := graph.Components(g)
			fmt.Fprintf(w, "\ncomponents\t%d\n", comps.Count)
			if g.NumNodes > 0 {
				fmt.Fprintf(w, "largest\t%d (%.1f%%)\n", comps.Largest(), float64(comps.Largest())/float64(g.NumNodes)*100)
			}
			for i, s := range comps.Sizes {
				if i == 0 || i >= top {
					continue
				}
				fmt.Fprintf(w, "  #%d\t%d\n", i+1, s)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of component sizes to list")
	return cmd
}
