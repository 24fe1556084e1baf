package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/tour_router/pkg/graph"
	"github.com/azybler/tour_router/pkg/logging"
	"github.com/azybler/tour_router/pkg/metrics"
	"github.com/azybler/tour_router/pkg/spatial"
)

// buildLine creates four nodes on a line plus a separate island:
//
//	0 ══1══ 1 ══1══ 2 ══1══ 3
//
//	4 ══1══ 5
//
// Every road is two-way with unit length.
func buildLine(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for i := range 4 {
		b.AddNode(1.300, 103.800+float64(i)*0.01, 0)
	}
	b.AddNode(1.301, 103.800, 0)
	b.AddNode(1.301, 103.801, 0)
	for i := range uint32(3) {
		b.AddRoad(i, i+1, 1, graph.ClassPrimary)
	}
	b.AddRoad(4, 5, 1, graph.ClassPrimary)
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func newPlanner(t *testing.T, opts ...Option) (*Planner, *graph.Graph) {
	t.Helper()
	g := buildLine(t)
	grid, err := spatial.FromGraph(g)
	require.NoError(t, err)
	return New(g, grid, opts...), g
}

func at(g *graph.Graph, nodes ...uint32) []Waypoint {
	wps := make([]Waypoint, len(nodes))
	for i, u := range nodes {
		wps[i] = Waypoint{Position: orb.Point{g.NodeLon[u], g.NodeLat[u]}}
	}
	return wps
}

func inputs(it *Itinerary) []int {
	out := make([]int, len(it.Stops))
	for i, s := range it.Stops {
		out[i] = s.Input
	}
	return out
}

func TestGreedyStraightLine(t *testing.T) {
	p, g := newPlanner(t)
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 1, 2, 3), Order: ShortestGreedy})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, inputs(it))
	require.Len(t, it.Segments, 4)
	assert.Equal(t, int64(2*3), it.TotalCost)
	assert.Equal(t, uint64(6), it.TotalMeters)
	assert.Empty(t, it.Issues)

	closing := it.Segments[3]
	assert.Equal(t, 3, closing.From)
	assert.Equal(t, 0, closing.To)
	assert.Equal(t, []uint32{3, 2, 1, 0}, closing.Nodes)
	assert.Equal(t, int64(3), closing.Cost)
	assert.Len(t, closing.Path, 4)
}

func TestGreedyTiesFollowInputOrder(t *testing.T) {
	p, g := newPlanner(t)
	// From node 2, nodes 3 and 1 are both one step away; node 3 comes
	// first in the input.
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 2, 0, 3, 1), Order: ShortestGreedy})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3, 1}, inputs(it))
	assert.Equal(t, int64(6), it.TotalCost)
}

func TestGreedyFromStart(t *testing.T) {
	p, g := newPlanner(t)
	start := orb.Point{g.NodeLon[2], g.NodeLat[2]}
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 3), Start: &start, Order: ShortestGreedy})
	require.NoError(t, err)

	assert.Equal(t, []int{-1, 1, 0}, inputs(it))
	assert.Equal(t, "start", it.Stops[0].Name())
	assert.Equal(t, int64(1+3+2), it.TotalCost)
}

func TestGreedyDropsUnreachable(t *testing.T) {
	p, g := newPlanner(t)
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 5, 1), Order: ShortestGreedy})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, inputs(it))
	assert.Equal(t, int64(2), it.TotalCost)
	require.Len(t, it.Issues, 1)
	iss := it.Issues[0]
	assert.Equal(t, ReasonUnreachable, iss.Reason)
	assert.Equal(t, 1, iss.Stop.Input)
	require.NotNil(t, iss.From)
	assert.Equal(t, 2, iss.From.Input, "reported from the last visited stop")
}

func TestUserOrder(t *testing.T) {
	p, g := newPlanner(t)

	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 3, 1), Order: UserOrder})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, inputs(it))
	require.Len(t, it.Segments, 2)
	assert.Equal(t, int64(3+2), it.TotalCost)

	it, err = p.Plan(context.Background(), Request{Waypoints: at(g, 0, 3, 1), Order: UserOrder, RoundTrip: true})
	require.NoError(t, err)
	require.Len(t, it.Segments, 3)
	assert.Equal(t, 2, it.Segments[2].From)
	assert.Equal(t, 0, it.Segments[2].To)
	assert.Equal(t, int64(3+2+1), it.TotalCost)
}

func TestUserOrderSkipsUnreachableLegs(t *testing.T) {
	p, g := newPlanner(t)
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 4, 5, 1), Order: UserOrder})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, inputs(it), "stops are kept")
	require.Len(t, it.Segments, 1)
	assert.Equal(t, 1, it.Segments[0].From)
	assert.Equal(t, 2, it.Segments[0].To)
	assert.Equal(t, int64(1), it.TotalCost)

	require.Len(t, it.Issues, 2)
	for _, iss := range it.Issues {
		assert.Equal(t, ReasonUnreachable, iss.Reason)
	}
	assert.Equal(t, "unreachable: waypoint 1 from waypoint 0", it.Issues[0].String())
}

func TestChronological(t *testing.T) {
	p, g := newPlanner(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	wps := at(g, 0, 1, 2, 3)
	wps[0].Time = base.Add(3 * time.Hour)
	wps[1].Time = base.Add(1 * time.Hour)
	wps[2].Time = base.Add(2 * time.Hour)
	wps[3].Time = base.Add(1 * time.Hour) // ties with waypoint 1

	it, err := p.Plan(context.Background(), Request{Waypoints: wps, Order: Chronological})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 0}, inputs(it))
	assert.Equal(t, int64(2+1+2), it.TotalCost)
	assert.Equal(t, base.Add(3*time.Hour), wps[0].Time, "request untouched")
}

func TestOutsideGraph(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p, g := newPlanner(t, WithMetrics(m))

	wps := at(g, 0, 1)
	wps = append(wps, Waypoint{Position: orb.Point{100.0, 2.0}, Label: "far away"})
	it, err := p.Plan(context.Background(), Request{Waypoints: wps, Order: UserOrder})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, inputs(it))
	require.Len(t, it.Issues, 1)
	assert.Equal(t, ReasonOutsideGraph, it.Issues[0].Reason)
	assert.Nil(t, it.Issues[0].From)
	assert.Equal(t, "outside_graph: far away", it.Issues[0].String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapFailures))
}

func TestPlanErrors(t *testing.T) {
	p, g := newPlanner(t)
	ctx := context.Background()

	_, err := p.Plan(ctx, Request{Waypoints: at(g, 0), Order: UserOrder})
	assert.ErrorIs(t, err, ErrInsufficientWaypoints)

	_, err = p.Plan(ctx, Request{Order: ShortestGreedy})
	assert.ErrorIs(t, err, ErrInsufficientWaypoints)

	start := orb.Point{g.NodeLon[3], g.NodeLat[3]}
	_, err = p.Plan(ctx, Request{Waypoints: at(g, 0), Start: &start, Order: UserOrder})
	assert.ErrorIs(t, err, ErrInsufficientWaypoints, "the start is not a waypoint")

	_, err = p.Plan(ctx, Request{Waypoints: at(g, 0, 1), Start: &start, Order: UserOrder})
	assert.NoError(t, err)

	_, err = p.Plan(ctx, Request{Waypoints: at(g, 0, 1), Order: Order(7)})
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestPlanCanceled(t *testing.T) {
	p, g := newPlanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Plan(ctx, Request{Waypoints: at(g, 0, 1, 2), Order: ShortestGreedy})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseOrder(t *testing.T) {
	for _, o := range []Order{UserOrder, Chronological, ShortestGreedy} {
		got, err := ParseOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOrder("scenic")
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Equal(t, "order(9)", Order(9).String())
}

func TestPlanMetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	p, g := newPlanner(t, WithMetrics(m), WithLogger(log))

	_, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 1, 2, 3), Order: ShortestGreedy})
	require.NoError(t, err)

	// 3 + 2 + 1 candidate searches, then the closing leg.
	var queries float64
	for _, r := range []string{metrics.ResultFound, metrics.ResultCached, metrics.ResultUnreachable} {
		queries += testutil.ToFloat64(m.Queries.WithLabelValues(r))
	}
	assert.Equal(t, 7.0, queries)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Queries.WithLabelValues(metrics.ResultUnreachable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Plans.WithLabelValues("shortest")))

	assert.Contains(t, buf.String(), "plan complete")
	assert.Contains(t, buf.String(), "path query")
}

// buildRing creates a one-way ring with a dead-end spur off node 0:
//
//	0 ──1──► 1 ──1──► 2 ──1──► 3 ──1──► 0
//	│
//	0
//	▼
//	4
func buildRing(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for i := range 4 {
		b.AddNode(1.300, 103.800+float64(i)*0.01, 0)
	}
	b.AddNode(1.301, 103.805, 0)
	b.AddEdge(0, 4, 0, graph.ClassPrimary)
	b.AddEdge(0, 1, 1, graph.ClassPrimary)
	b.AddEdge(1, 2, 1, graph.ClassPrimary)
	b.AddEdge(2, 3, 1, graph.ClassPrimary)
	b.AddEdge(3, 0, 1, graph.ClassPrimary)
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestGreedyOneWayRing(t *testing.T) {
	g := buildRing(t)
	grid, err := spatial.FromGraph(g)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	p := New(g, grid, WithMetrics(m))

	// Node 1 is reached by extraction from 0; nodes 2 and 3 are only
	// reachable through it.
	it, err := p.Plan(context.Background(), Request{Waypoints: at(g, 0, 1, 2, 3), Order: ShortestGreedy})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, inputs(it))
	assert.Empty(t, it.Issues)
	assert.Equal(t, int64(4), it.TotalCost)
	require.Len(t, it.Segments, 4)
	assert.Equal(t, []uint32{3, 0}, it.Segments[3].Nodes)

	var queries float64
	for _, r := range []string{metrics.ResultFound, metrics.ResultCached, metrics.ResultUnreachable} {
		queries += testutil.ToFloat64(m.Queries.WithLabelValues(r))
	}
	assert.Equal(t, 7.0, queries)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Queries.WithLabelValues(metrics.ResultUnreachable)))
}

func TestGeoJSON(t *testing.T) {
	p, g := newPlanner(t)
	wps := at(g, 0, 0, 2)
	wps[2].Label = "end"
	it, err := p.Plan(context.Background(), Request{Waypoints: wps, Order: UserOrder})
	require.NoError(t, err)

	fc := it.GeoJSON()
	require.Len(t, fc.Features, 3+2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, "stop", fc.Features[0].Properties["kind"])
	assert.Equal(t, "end", fc.Features[2].Properties["name"])

	same := fc.Features[3]
	assert.Equal(t, "LineString", same.Geometry.GeoJSONType())
	assert.Len(t, same.Geometry.(orb.LineString), 2, "zero-length leg still draws")
	assert.Equal(t, int64(0), same.Properties["cost"])

	leg := fc.Features[4]
	assert.Equal(t, "waypoint 1", leg.Properties["from"])
	assert.Equal(t, "end", leg.Properties["to"])
	assert.Equal(t, int64(2), leg.Properties["cost"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
