package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/geo"
	"github.com/azybler/tour_router/pkg/spatial"
	"github.com/azybler/tour_router/pkg/timing"
)

func newNearestCmd(a *app) *cobra.Command {
	var lat, lon, radius float64
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the nearest routable node to a position",
		Long: `Find the routable node closest to --lat/--lon. With a POI file configured
the nearest point of interest within pois.max_snap_meters is printed too.
--radius lists how many nodes lie within that many meters.`,
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
			pois, err := a.openPOIs()
			if err != nil {
				return err
			}

			sw := timing.New()
			node, ok := grid.Nearest(lat, lon)
			sw.Lap()
			if !ok {
				a.metrics.SnapFailed()
				return fmt.Errorf("%w: %.6f, %.6f", spatial.ErrOutsideGrid, lat, lon)
			}
			d := geo.Haversine(lat, lon, g.NodeLat[node], g.NodeLon[node])
			fmt.Fprintf(a.stdout, "node %d at %.6f, %.6f (%.1f m) in %s\n",
				node, g.NodeLat[node], g.NodeLon[node], d, sw.Format(6))

			if radius > 0 {
				within := grid.WithinRadius(lat, lon, radius)
				fmt.Fprintf(a.stdout, "%d nodes within %.0f m\n", len(within), radius)
			}

			if pois != nil {
				if p, pd, ok := pois.Nearest(lat, lon, a.cfg.POIs.MaxSnapMeters); ok {
					fmt.Fprintf(a.stdout, "poi %q (%s) at %.6f, %.6f (%.1f m)\n",
						p.Name, p.Category, p.Position.Lat(), p.Position.Lon(), pd)
				} else {
					fmt.Fprintf(a.stdout, "no poi within %.0f m\n", a.cfg.POIs.MaxSnapMeters)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "latitude")
	f.Float64Var(&lon, "lon", 0, "longitude")
	f.Float64Var(&radius, "radius", 0, "also count nodes within this many meters")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
