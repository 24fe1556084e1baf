package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/azybler/tour_router/pkg/config"
	"github.com/azybler/tour_router/pkg/graph"
	"github.com/azybler/tour_router/pkg/logging"
	"github.com/azybler/tour_router/pkg/metrics"
	"github.com/azybler/tour_router/pkg/poi"
	"github.com/azybler/tour_router/pkg/routing"
	"github.com/azybler/tour_router/pkg/spatial"
	"github.com/azybler/tour_router/pkg/timing"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	stdout, stderr io.Writer

	// persistent flags
	configPath  string
	logLevel    string
	logJSON     bool
	dumpMetrics bool
	graphPath   string
	poiPath     string
	weighted    bool

	cfg     config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "router",
		Short: "Shortest paths and tour itineraries over a road graph",
		Long: `router loads a road graph (text format or binary snapshot) and answers
queries against it.

Subcommands:
  convert  - Convert a text graph into a binary snapshot
  inspect  - Print graph statistics
  nearest  - Find the nearest routable node (and point of interest)
  route    - Shortest path between two positions
  plan     - Multi-stop itinerary from a waypoint file

Examples:
  router convert --in stuttgart.txt --out stuttgart.bin
  router route --graph stuttgart.bin --from-lat 48.78 --from-lon 9.18 --to-lat 48.79 --to-lon 9.19
  router plan --config router.yaml --waypoints tour.yaml --order shortest --out tour.geojson`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.finish()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&a.logJSON, "log-json", false, "log JSON records instead of text")
	pf.BoolVar(&a.dumpMetrics, "metrics", false, "print collected metrics on exit")
	pf.StringVar(&a.graphPath, "graph", "", "graph file (overrides graph.path)")
	pf.StringVar(&a.poiPath, "pois", "", "points-of-interest file (overrides pois.path)")
	pf.BoolVar(&a.weighted, "weighted", false, "cost edges by class-weighted distance (overrides profile.weighted)")

	root.AddCommand(
		newConvertCmd(a),
		newInspectCmd(a),
		newNearestCmd(a),
		newRouteCmd(a),
		newPlanCmd(a),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger and metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = a.logJSON
	}
	if flags.Changed("graph") {
		cfg.Graph.Path = a.graphPath
	}
	if flags.Changed("pois") {
		cfg.POIs.Path = a.poiPath
	}
	if flags.Changed("weighted") {
		cfg.Profile.Weighted = a.weighted
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON,
		Service: "router",
		Output:  a.stderr,
	})
	a.reg = prometheus.NewRegistry()
	a.metrics = metrics.New(a.reg)
	return nil
}

func (a *app) finish() error {
	if !a.dumpMetrics || a.reg == nil {
		return nil
	}
	return metrics.WriteText(a.stdout, a.reg)
}

var errNoGraph = errors.New("no graph file: set --graph or graph.path")

// loadGraph loads the configured graph and applies a configured profile.
func (a *app) loadGraph() (*graph.Graph, error) {
	path := a.cfg.Graph.Path
	if path == "" {
		return nil, errNoGraph
	}
	return a.loadGraphFrom(path)
}

func (a *app) loadGraphFrom(path string) (*graph.Graph, error) {
	sw := timing.New()
	a.log.Info("loading graph", "path", path)
	g, err := graph.Load(path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Profile.Custom() {
		p, err := a.cfg.BuildProfile()
		if err != nil {
			return nil, err
		}
		g = g.WithProfile(p)
	}
	sw.Lap()
	a.log.Info("graph loaded",
		"nodes", g.NumNodes,
		"edges", g.NumEdges,
		"profile", g.Profile().Name,
		"elapsed", sw.Format(3))
	return g, nil
}

func (a *app) buildGrid(g *graph.Graph) (*spatial.Grid, error) {
	sw := timing.New()
	grid, err := spatial.FromGraph(g,
		spatial.WithDensity(a.cfg.Spatial.NodesPerCell),
		spatial.WithExtraRings(a.cfg.Spatial.ExtraRings))
	if err != nil {
		return nil, err
	}
	sw.Lap()
	rows, cols := grid.Dims()
	a.log.Info("grid built", "rows", rows, "cols", cols, "elapsed", sw.Format(3))
	return grid, nil
}

// openPOIs returns nil when no POI file is configured.
func (a *app) openPOIs() (*poi.Index, error) {
	if a.cfg.POIs.Path == "" {
		return nil, nil
	}
	idx, err := poi.Open(a.cfg.POIs.Path)
	if err != nil {
		return nil, err
	}
	a.log.Info("pois loaded", "path", a.cfg.POIs.Path, "count", idx.Len())
	return idx, nil
}

func (a *app) engineOptions() []routing.Option {
	opts := []routing.Option{routing.WithWeighted(a.cfg.Profile.Weighted)}
	if a.cfg.Routing.QueueCapacity > 0 {
		opts = append(opts, routing.WithQueueCapacity(a.cfg.Routing.QueueCapacity))
	}
	return opts
}
