package main

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/metrics"
	"github.com/azybler/tour_router/pkg/routing"
	"github.com/azybler/tour_router/pkg/spatial"
	"github.com/azybler/tour_router/pkg/timing"
)

func newRouteCmd(a *app) *cobra.Command {
	var (
		fromLat, fromLon float64
		toLat, toLon     float64
		out              string
	)
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Shortest path between two positions",
		Long: `Snap both positions to their nearest nodes and run one shortest-path
query. Prints cost, length, hop count and timing; --out also writes the
path as a GeoJSON LineString feature. An unreachable target prints
"no route found" and is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.loadGraph()
			if err != nil {
				return err
			}
			grid, err := a.buildGrid(g)
			if err != nil {
				return err
			}

			from, ok := grid.Nearest(fromLat, fromLon)
			if !ok {
				a.metrics.SnapFailed()
				return fmt.Errorf("origin: %w: %.6f, %.6f", spatial.ErrOutsideGrid, fromLat, fromLon)
			}
			to, ok := grid.Nearest(toLat, toLon)
			if !ok {
				a.metrics.SnapFailed()
				return fmt.Errorf("destination: %w: %.6f, %.6f", spatial.ErrOutsideGrid, toLat, toLon)
			}

			engine := routing.NewEngine(g, a.engineOptions()...)
			sw := timing.New()
			found, err := engine.PathFromTo(from, to)
			if err != nil {
				return err
			}
			sw.Lap()
			stats := engine.LastStats()
			a.log.Debug("path query", "from", from, "to", to, "found", found,
				"extracted", stats.Extracted, "stale", stats.Stale, "settled", stats.Settled, "relaxed", stats.Relaxed)

			if !found {
				a.metrics.ObserveQuery(metrics.ResultUnreachable, stats.Settled, sw.Last())
				fmt.Fprintf(a.stdout, "no route found from node %d to node %d (%s)\n", from, to, sw.Format(4))
				return nil
			}
			a.metrics.ObserveQuery(metrics.ResultFound, stats.Settled, sw.Last())

			nodes, err := engine.Route(to)
			if err != nil {
				return err
			}
			cost, err := engine.TotalCost(to)
			if err != nil {
				return err
			}
			meters, err := engine.PathMeters(nodes)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "route %d -> %d: cost %d, %d m, %d hops, %d settled in %s\n",
				from, to, cost, meters, len(nodes)-1, stats.Settled, sw.Format(4))

			if out == "" {
				return nil
			}
			f := geojson.NewFeature(routing.LineString(g, nodes))
			f.Properties["from"] = from
			f.Properties["to"] = to
			f.Properties["cost"] = cost
			f.Properties["meters"] = meters
			fc := geojson.NewFeatureCollection().Append(f)
			return writeGeoJSON(out, fc)
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&fromLat, "from-lat", 0, "origin latitude")
	fl.Float64Var(&fromLon, "from-lon", 0, "origin longitude")
	fl.Float64Var(&toLat, "to-lat", 0, "destination latitude")
	fl.Float64Var(&toLon, "to-lon", 0, "destination longitude")
	fl.StringVar(&out, "out", "", "write the path as GeoJSON to this file")
	for _, name := range []string{"from-lat", "from-lon", "to-lat", "to-lon"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
