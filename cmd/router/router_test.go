package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/tour_router/pkg/planner"
	"github.com/azybler/tour_router/pkg/spatial"
)

// testGraph is a four-node two-way street plus a two-node island:
//
//	0 ══100══ 1 ══100══ 2 ══100══ 3
//
//	4 ══50══ 5
const testGraph = `6
8
0 48.70 9.10 240
1 48.70 9.11 241
2 48.70 9.12 242
3 48.70 9.13 243
4 48.71 9.10
5 48.71 9.11
0 1 100 8
1 0 100 8
1 2 100 8
2 1 100 8
2 3 100 8
3 2 100 8
4 5 50 8
5 4 50 8
`

const testPOIs = `# tourism
48.7001 9.1300 attraction Old Tower
48.7100 9.1050 viewpoint Island View
`

type fixture struct {
	dir   string
	graph string
	pois  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:   dir,
		graph: filepath.Join(dir, "graph.txt"),
		pois:  filepath.Join(dir, "pois.txt"),
	}
	require.NoError(t, os.WriteFile(f.graph, []byte(testGraph), 0o644))
	require.NoError(t, os.WriteFile(f.pois, []byte(testPOIs), 0o644))
	return f
}

func (f fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestConvertAndInspect(t *testing.T) {
	f := newFixture(t)
	bin := filepath.Join(f.dir, "graph.bin")

	out, err := run(t, "convert", "--in", f.graph, "--out", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "6 nodes, 8 edges")

	out, err = run(t, "inspect", "--graph", bin)
	require.NoError(t, err)
	assert.Regexp(t, `nodes\s+6`, out)
	assert.Regexp(t, `edges\s+8`, out)
	assert.Regexp(t, `residential\s+8\s+2\.222`, out)
	assert.Regexp(t, `components\s+2`, out)
	assert.Regexp(t, `largest\s+4 \(66\.7%\)`, out)
}

func TestConvertLargestComponentToText(t *testing.T) {
	f := newFixture(t)
	dst := filepath.Join(f.dir, "main.txt")

	out, err := run(t, "convert", "--in", f.graph, "--out", dst, "--largest-component", "--text")
	require.NoError(t, err)
	assert.Contains(t, out, "4 nodes, 6 edges")

	out, err = run(t, "inspect", "--graph", dst)
	require.NoError(t, err)
	assert.Regexp(t, `components\s+1`, out)
}

func TestConvertRequiresOut(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, "convert", "--in", f.graph)
	assert.ErrorContains(t, err, "--out")
}

func TestRoute(t *testing.T) {
	f := newFixture(t)
	geo := filepath.Join(f.dir, "route.geojson")

	out, err := run(t, "route", "--graph", f.graph,
		"--from-lat", "48.70", "--from-lon", "9.10",
		"--to-lat", "48.70", "--to-lon", "9.13",
		"--out", geo)
	require.NoError(t, err)
	assert.Contains(t, out, "route 0 -> 3: cost 300, 300 m, 3 hops")

	data, err := os.ReadFile(geo)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
}

func TestRouteUnreachable(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "route", "--graph", f.graph,
		"--from-lat", "48.70", "--from-lon", "9.10",
		"--to-lat", "48.71", "--to-lon", "9.11")
	require.NoError(t, err)
	assert.Contains(t, out, "no route found")
}

func TestRouteOutsideGraph(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, "route", "--graph", f.graph,
		"--from-lat", "52.5", "--from-lon", "13.4",
		"--to-lat", "48.70", "--to-lon", "9.11")
	assert.ErrorIs(t, err, spatial.ErrOutsideGrid)
}

func TestRouteWithExcludingProfile(t *testing.T) {
	f := newFixture(t)
	cfg := f.write(t, "router.yaml", "graph:\n  path: "+f.graph+"\nprofile:\n  excluded: [residential]\n")

	out, err := run(t, "route", "--config", cfg,
		"--from-lat", "48.70", "--from-lon", "9.10",
		"--to-lat", "48.70", "--to-lon", "9.13")
	require.NoError(t, err)
	assert.Contains(t, out, "no route found")
}

func TestNearestWithPOI(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "nearest", "--graph", f.graph, "--pois", f.pois,
		"--lat", "48.7001", "--lon", "9.1299", "--radius", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "node 3 at 48.700000, 9.130000")
	assert.Contains(t, out, `poi "Old Tower" (attraction)`)
	assert.Contains(t, out, "2 nodes within 1000 m")
}

func TestPlan(t *testing.T) {
	f := newFixture(t)
	wps := f.write(t, "tour.yaml", `order: user
waypoints:
  - label: Gate
    lat: 48.70
    lon: 9.10
  - poi: old tower
  - label: Market
    lat: 48.70
    lon: 9.12
  - label: Island
    lat: 48.71
    lon: 9.10
`)
	geo := filepath.Join(f.dir, "tour.geojson")

	out, err := run(t, "plan", "--graph", f.graph, "--pois", f.pois, "--metrics",
		"--waypoints", wps, "--order", "shortest", "--out", geo)
	require.NoError(t, err)

	assert.Contains(t, out, "order shortest, 3 stops")
	assert.Contains(t, out, "Gate -> Market: cost 200")
	assert.Contains(t, out, "Market -> Old Tower: cost 100")
	assert.Contains(t, out, "Old Tower -> Gate: cost 300")
	assert.Contains(t, out, "issue unreachable: Island from Old Tower")
	assert.Contains(t, out, "total cost 600, 600 m")
	assert.Contains(t, out, "tour_router_plans_total")

	data, err := os.ReadFile(geo)
	require.NoError(t, err)
	var doc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Features, 3+3)
}

func TestPlanUserOrderWithoutRoundTrip(t *testing.T) {
	f := newFixture(t)
	wps := f.write(t, "tour.yaml", `round_trip: false
start: {lat: 48.70, lon: 9.13}
waypoints:
  - lat: 48.70
    lon: 9.10
  - lat: 48.70
    lon: 9.11
`)
	out, err := run(t, "plan", "--graph", f.graph, "--waypoints", wps)
	require.NoError(t, err)
	assert.Contains(t, out, "start -> waypoint 0: cost 300")
	assert.Contains(t, out, "waypoint 0 -> waypoint 1: cost 100")
	assert.Contains(t, out, "total cost 400")

	// A start and a single waypoint are not enough.
	one := f.write(t, "short.yaml", "start: {lat: 48.70, lon: 9.13}\nwaypoints:\n  - {lat: 48.70, lon: 9.10}\n")
	_, err = run(t, "plan", "--graph", f.graph, "--waypoints", one)
	assert.ErrorIs(t, err, planner.ErrInsufficientWaypoints)
}

func TestPlanErrors(t *testing.T) {
	f := newFixture(t)

	one := f.write(t, "one.yaml", "waypoints:\n  - {lat: 48.70, lon: 9.10}\n")
	_, err := run(t, "plan", "--graph", f.graph, "--waypoints", one)
	assert.ErrorContains(t, err, "at least two waypoints")

	two := f.write(t, "two.yaml", "waypoints:\n  - {lat: 48.70, lon: 9.10}\n  - {lat: 48.70, lon: 9.11}\n")
	_, err = run(t, "plan", "--graph", f.graph, "--waypoints", two, "--order", "scenic")
	assert.ErrorContains(t, err, "unknown visit order")

	poiOnly := f.write(t, "poi.yaml", "waypoints:\n  - poi: Old Tower\n  - {lat: 48.70, lon: 9.11}\n")
	_, err = run(t, "plan", "--graph", f.graph, "--waypoints", poiOnly)
	assert.ErrorContains(t, err, "no poi file")

	_, err = run(t, "plan", "--graph", f.graph, "--pois", f.pois, "--waypoints", poiOnly[:len(poiOnly)-1])
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	f := newFixture(t)
	cfg := f.write(t, "bad.yaml", "logging:\n  level: loud\n")
	_, err := run(t, "inspect", "--config", cfg, "--graph", f.graph)
	assert.ErrorContains(t, err, "invalid config")

	_, err = run(t, "inspect")
	assert.ErrorIs(t, err, errNoGraph)
}
