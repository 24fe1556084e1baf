package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/graph"
	"github.com/azybler/tour_router/pkg/timing"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		in, out string
		largest bool
		text    bool
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a graph file into a binary snapshot",
		Long: `Read a graph in either format and write it as a binary snapshot, or as
text with --text. --largest-component keeps only the biggest weakly
connected component, so every pair of nodes in the output is connected
when ignoring one-way restrictions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				in = a.cfg.Graph.Path
			}
			if in == "" {
				return errors.New("convert: --in is required")
			}
			if out == "" {
				return errors.New("convert: --out is required")
			}

			total := timing.New()
			g, err := a.loadGraphFrom(in)
			if err != nil {
				return err
			}

			if largest {
				nodes := graph.LargestComponent(g)
				a.log.Info("largest component",
					"nodes", len(nodes),
					"share", fmt.Sprintf("%.1f%%", float64(len(nodes))/float64(max(g.NumNodes, 1))*100))
				g = graph.FilterToComponent(g, nodes)
				a.log.Info("filtered graph", "nodes", g.NumNodes, "edges", g.NumEdges)
			}

			a.log.Info("writing graph", "path", out, "text", text)
			if text {
				err = writeTextFile(out, g)
			} else {
				err = graph.WriteBinary(out, g)
			}
			if err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return err
			}
			total.Lap()
			a.log.Info("done",
				"path", out,
				"mb", fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)),
				"elapsed", total.Format(2))
			fmt.Fprintf(a.stdout, "wrote %s: %d nodes, %d edges\n", out, g.NumNodes, g.NumEdges)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in, "in", "", "input graph file (defaults to graph.path)")
	f.StringVar(&out, "out", "", "output file")
	f.BoolVar(&largest, "largest-component", false, "keep only the largest weakly connected component")
	f.BoolVar(&text, "text", false, "write the text format instead of a snapshot")
	return cmd
}

func writeTextFile(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := graph.WriteText(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
