// Package planner orders a set of waypoints into an itinerary and routes
// each leg with a shortest-path engine.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/azybler/tour_router/pkg/graph"
	"github.com/azybler/tour_router/pkg/logging"
	"github.com/azybler/tour_router/pkg/metrics"
	"github.com/azybler/tour_router/pkg/routing"
	"github.com/azybler/tour_router/pkg/timing"
)

var (
	// ErrInsufficientWaypoints is returned when a request has fewer than
	// two waypoints. The optional start does not count.
	ErrInsufficientWaypoints = errors.New("planner: at least two waypoints required")
	// ErrUnknownOrder is returned for a visit order outside the known modes.
	ErrUnknownOrder = errors.New("planner: unknown visit order")
)

// Order selects how waypoints are sequenced.
type Order int

const (
	// UserOrder visits waypoints as given.
	UserOrder Order = iota
	// Chronological visits waypoints sorted by Time, ties in input order.
	Chronological
	// ShortestGreedy repeatedly moves to the cheapest unvisited waypoint
	// and finally returns to the start.
	ShortestGreedy
)

var orderNames = [...]string{"user", "chronological", "shortest"}

func (o Order) String() string {
	if o < 0 || int(o) >= len(orderNames) {
		return fmt.Sprintf("order(%d)", int(o))
	}
	return orderNames[o]
}

func (o Order) valid() bool { return o >= 0 && int(o) < len(orderNames) }

// ParseOrder resolves "user", "chronological" or "shortest".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "":
		return UserOrder, nil
	case "chronological", "time":
		return Chronological, nil
	case "shortest", "greedy":
		return ShortestGreedy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
}

// Waypoint is a place to visit.
type Waypoint struct {
	Position orb.Point
	Label    string
	Time     time.Time
}

// Request describes one itinerary.
type Request struct {
	Waypoints []Waypoint
	// Start, when set, is visited first and is not a waypoint itself.
	Start *orb.Point
	Order Order
	// RoundTrip closes UserOrder and Chronological tours back to the
	// first stop. ShortestGreedy tours are always closed.
	RoundTrip bool
}

// Stop is a waypoint mapped onto the graph.
type Stop struct {
	Waypoint
	// Input is the waypoint's index in the request, -1 for the start.
	Input int
	Node  uint32
}

// Name returns the label, or a positional name for unlabelled stops.
func (s Stop) Name() string {
	switch {
	case s.Label != "":
		return s.Label
	case s.Input < 0:
		return "start"
	default:
		return fmt.Sprintf("waypoint %d", s.Input)
	}
}

// Segment is one routed leg between two stops.
type Segment struct {
	// From and To index Itinerary.Stops.
	From, To int
	Nodes    []uint32
	Path     orb.LineString
	Cost     int64
	Meters   uint64
}

// Issue reasons.
const (
	ReasonOutsideGraph = "outside_graph"
	ReasonUnreachable  = "unreachable"
)

// Issue records a stop that could not be mapped or reached. Planning
// continues past issues.
type Issue struct {
	Reason string
	Stop   Stop
	// From is the stop the search started at, for unreachable legs.
	From *Stop
}

func (i Issue) String() string {
	if i.From != nil {
		return fmt.Sprintf("%s: %s from %s", i.Reason, i.Stop.Name(), i.From.Name())
	}
	return fmt.Sprintf("%s: %s", i.Reason, i.Stop.Name())
}

// Itinerary is the result of Plan.
type Itinerary struct {
	Order Order
	// Stops are the mapped stops in visiting order.
	Stops       []Stop
	Segments    []Segment
	Issues      []Issue
	TotalCost   int64
	TotalMeters uint64
}

// Locator maps a position to the nearest graph node.
type Locator interface {
	Nearest(lat, lon float64) (uint32, bool)
}

type options struct {
	log        *slog.Logger
	metrics    *metrics.Metrics
	engineOpts []routing.Option
}

// Option configures a Planner.
type Option func(*options)

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records queries and plans into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEngineOptions configures the planner's shortest-path engine.
func WithEngineOptions(opts ...routing.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// Planner plans itineraries over one graph. It owns a single engine, so a
// Planner must not be used by concurrent callers; create one per goroutine
// over the shared graph and locator.
type Planner struct {
	g       *graph.Graph
	loc     Locator
	engine  *routing.Engine
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a planner for g snapping through loc.
func New(g *graph.Graph, loc Locator, opts ...Option) *Planner {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Planner{
		g:       g,
		loc:     loc,
		engine:  routing.NewEngine(g, o.engineOpts...),
		log:     logging.OrDiscard(o.log),
		metrics: o.metrics,
	}
}

// Engine exposes the planner's engine, for statistics.
func (p *Planner) Engine() *routing.Engine { return p.engine }

// Plan snaps the request's stops and routes them in the requested order.
// Unmapped and unreachable stops are reported as issues. The context is
// checked between shortest-path queries.
func (p *Planner) Plan(ctx context.Context, req Request) (*Itinerary, error) {
	if !req.Order.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, req.Order)
	}
	if n := len(req.Waypoints); n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientWaypoints, n)
	}

	total := timing.New()
	it := &Itinerary{Order: req.Order}
	stops := p.snap(it, sequence(req))

	var err error
	switch req.Order {
	case ShortestGreedy:
		err = p.planGreedy(ctx, it, stops)
	default:
		err = p.planSequence(ctx, it, stops, req.RoundTrip)
	}
	if err != nil {
		return nil, err
	}

	for _, s := range it.Segments {
		it.TotalCost += s.Cost
		it.TotalMeters += s.Meters
	}
	total.Lap()
	p.metrics.ObservePlan(req.Order.String(), total.Last())
	p.log.Info("plan complete",
		"order", req.Order.String(),
		"stops", len(it.Stops),
		"segments", len(it.Segments),
		"issues", len(it.Issues),
		"cost", it.TotalCost,
		"meters", it.TotalMeters,
		"elapsed", total.Format(3))
	return it, nil
}

// sequence lists the request's stops before snapping: the start first,
// then the waypoints, time-sorted for Chronological.
func sequence(req Request) []Stop {
	stops := make([]Stop, 0, len(req.Waypoints)+1)
	if req.Start != nil {
		stops = append(stops, Stop{Waypoint: Waypoint{Position: *req.Start}, Input: -1})
	}
	first := len(stops)
	for i, w := range req.Waypoints {
		stops = append(stops, Stop{Waypoint: w, Input: i})
	}
	if req.Order == Chronological {
		wps := stops[first:]
		sort.SliceStable(wps, func(i, j int) bool { return wps[i].Time.Before(wps[j].Time) })
	}
	return stops
}

// snap maps stops to nodes, dropping and reporting those outside the graph.
func (p *Planner) snap(it *Itinerary, stops []Stop) []Stop {
	mapped := stops[:0]
	for _, s := range stops {
		node, ok := p.loc.Nearest(s.Position.Lat(), s.Position.Lon())
		if !ok {
			p.metrics.SnapFailed()
			p.log.Warn("stop outside graph", "stop", s.Name(), "lat", s.Position.Lat(), "lon", s.Position.Lon())
			it.Issues = append(it.Issues, Issue{Reason: ReasonOutsideGraph, Stop: s})
			continue
		}
		s.Node = node
		mapped = append(mapped, s)
	}
	return mapped
}

// planSequence routes consecutive stops in the given order. Legs that
// cannot be routed are reported and skipped; a stop stays in the tour
// even if the leg into it failed.
func (p *Planner) planSequence(ctx context.Context, it *Itinerary, stops []Stop, roundTrip bool) error {
	it.Stops = stops
	if len(stops) < 2 {
		return nil
	}
	legs := len(stops) - 1
	if roundTrip {
		legs++
	}
	for i := 0; i < legs; i++ {
		from, to := i, (i+1)%len(stops)
		seg, ok, err := p.leg(ctx, stops, from, to)
		if err != nil {
			return err
		}
		if !ok {
			it.Issues = append(it.Issues, unreachable(stops[from], stops[to]))
			continue
		}
		it.Segments = append(it.Segments, seg)
	}
	return nil
}

// planGreedy builds a nearest-neighbour tour from the first stop. A
// candidate unreachable from the current stop may still be picked from a
// later one; candidates reachable from no visited stop are dropped when
// nothing else remains.
func (p *Planner) planGreedy(ctx context.Context, it *Itinerary, stops []Stop) error {
	if len(stops) == 0 {
		return nil
	}
	it.Stops = append(it.Stops, stops[0])
	remaining := append([]Stop(nil), stops[1:]...)

	for len(remaining) > 0 {
		cur := it.Stops[len(it.Stops)-1]
		best, bestCost := -1, int64(0)
		for i, c := range remaining {
			ok, cost, err := p.query(ctx, cur.Node, c.Node)
			if err != nil {
				return err
			}
			if ok && (best < 0 || cost < bestCost) {
				best, bestCost = i, cost
			}
		}
		if best < 0 {
			for _, c := range remaining {
				it.Issues = append(it.Issues, unreachable(cur, c))
			}
			break
		}

		// Every candidate was searched from cur, so the engine still
		// holds the tree rooted there.
		next := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)
		it.Stops = append(it.Stops, next)
		seg, err := p.segment(len(it.Stops)-2, len(it.Stops)-1, next.Node)
		if err != nil {
			return err
		}
		it.Segments = append(it.Segments, seg)
	}

	if len(it.Stops) < 2 {
		return nil
	}
	last := len(it.Stops) - 1
	seg, ok, err := p.leg(ctx, it.Stops, last, 0)
	if err != nil {
		return err
	}
	if !ok {
		it.Issues = append(it.Issues, unreachable(it.Stops[last], it.Stops[0]))
		return nil
	}
	it.Segments = append(it.Segments, seg)
	return nil
}

// leg routes stops[from] to stops[to].
func (p *Planner) leg(ctx context.Context, stops []Stop, from, to int) (Segment, bool, error) {
	ok, _, err := p.query(ctx, stops[from].Node, stops[to].Node)
	if err != nil || !ok {
		return Segment{}, false, err
	}
	seg, err := p.segment(from, to, stops[to].Node)
	return seg, err == nil, err
}

// query runs one timed shortest-path search and returns the cost when a
// path exists.
func (p *Planner) query(ctx context.Context, from, to uint32) (bool, int64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	sw := timing.New()
	found, err := p.engine.PathFromTo(from, to)
	if err != nil {
		return false, 0, err
	}
	sw.Lap()

	stats := p.engine.LastStats()
	result := metrics.ResultUnreachable
	switch {
	case found && stats.Cached:
		result = metrics.ResultCached
	case found:
		result = metrics.ResultFound
	}
	p.metrics.ObserveQuery(result, stats.Settled, sw.Last())
	p.log.Debug("path query",
		"from", from,
		"to", to,
		"result", result,
		"settled", stats.Settled,
		"elapsed", sw.Format(4))

	if !found {
		return false, 0, nil
	}
	cost, err := p.engine.TotalCost(to)
	if err != nil {
		return false, 0, err
	}
	return true, cost, nil
}

// segment reconstructs the leg ending at node from the engine's current
// search tree.
func (p *Planner) segment(from, to int, node uint32) (Segment, error) {
	nodes, err := p.engine.Route(node)
	if err != nil {
		return Segment{}, err
	}
	cost, err := p.engine.TotalCost(node)
	if err != nil {
		return Segment{}, err
	}
	meters, err := p.engine.PathMeters(nodes)
	if err != nil {
		return Segment{}, err
	}
	return Segment{
		From:   from,
		To:     to,
		Nodes:  nodes,
		Path:   routing.LineString(p.g, nodes),
		Cost:   cost,
		Meters: meters,
	}, nil
}

func unreachable(from, to Stop) Issue {
	f := from
	return Issue{Reason: ReasonUnreachable, Stop: to, From: &f}
}
