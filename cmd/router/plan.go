package main

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/planner"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		waypointsPath      string
		order              string
		startLat, startLon float64
		roundTrip          bool
		out                string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a multi-stop itinerary",
		Long: `Plan an itinerary over the waypoints in a YAML file.

Orders:
  user           - visit waypoints as listed
  chronological  - visit waypoints by their time, ties as listed
  shortest       - always move to the cheapest unvisited waypoint, then return

Flags override the file's order, round_trip and start. Waypoints that fall
outside the graph or cannot be reached are listed as issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if waypointsPath == "" {
				return errors.New("plan: --waypoints is required")
			}
			wf, err := readWaypointFile(waypointsPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("order") || wf.Order == "" {
				wf.Order = order
			}
			o, err := planner.ParseOrder(wf.Order)
			if err != nil {
				return err
			}
			req := planner.Request{Order: o, RoundTrip: roundTrip}
			if wf.RoundTrip != nil && !flags.Changed("round-trip") {
				req.RoundTrip = *wf.RoundTrip
			}
			switch {
			case flags.Changed("start-lat") != flags.Changed("start-lon"):
				return errors.New("plan: --start-lat and --start-lon go together")
			case flags.Changed("start-lat"):
				req.Start = &orb.Point{startLon, startLat}
			case wf.Start != nil:
				req.Start = &orb.Point{wf.Start.Lon, wf.Start.Lat}
			}

			pois, err := a.openPOIs()
			if err != nil {
				return err
			}
			if req.Waypoints, err = wf.resolve(pois); err != nil {
				return err
			}

			g, err := a.loadGraph()
			if err != nil {
				return err
			}
			grid, err := a.buildGrid(g)
			if err != nil {
				return err
			}

			p := planner.New(g, grid,
				planner.WithLogger(a.log),
				planner.WithMetrics(a.metrics),
				planner.WithEngineOptions(a.engineOptions()...))
			it, err := p.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}

			printItinerary(a, it)
			if out == "" {
				return nil
			}
			if err := writeGeoJSON(out, it.GeoJSON()); err != nil {
				return err
			}
			a.log.Info("itinerary written", "path", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&waypointsPath, "waypoints", "", "YAML waypoint file")
	f.StringVar(&order, "order", "user", "visit order: user, chronological, shortest")
	f.Float64Var(&startLat, "start-lat", 0, "starting position latitude")
	f.Float64Var(&startLon, "start-lon", 0, "starting position longitude")
	f.BoolVar(&roundTrip, "round-trip", true, "return to the first stop (user and chronological orders)")
	f.StringVar(&out, "out", "", "write the itinerary as GeoJSON to this file")
	return cmd
}

func printItinerary(a *app, it *planner.Itinerary) {
	fmt.Fprintf(a.stdout, "order %s, %d stops\n", it.Order, len(it.Stops))
	for i, s := range it.Stops {
		fmt.Fprintf(a.stdout, "  %d. %s (node %d)\n", i+1, s.Name(), s.Node)
	}
	for _, seg := range it.Segments {
		fmt.Fprintf(a.stdout, "  %s -> %s: cost %d, %d m, %d nodes\n",
			it.Stops[seg.From].Name(), it.Stops[seg.To].Name(), seg.Cost, seg.Meters, len(seg.Nodes))
	}
	for _, iss := range it.Issues {
		fmt.Fprintf(a.stdout, "  issue %s\n", iss)
	}
	fmt.Fprintf(a.stdout, "total cost %d, %d m\n", it.TotalCost, it.TotalMeters)
}
