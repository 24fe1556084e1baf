package graph

import (
	"math"

	"github.com/paulmach/orb"
)

// NoNode is the sentinel for "no node".
const NoNode = ^uint32(0)

// Excluded is the cost returned for edges whose road class is switched off
// by the active profile. Callers must skip such edges.
const Excluded = int64(-1)

// Graph represents an immutable directed road graph in CSR (Compressed
// Sparse Row) format. All slices are shared read-only by every query;
// nothing mutates them after construction.
type Graph struct {
	NumNodes  uint32
	NumEdges  uint32
	FirstOut  []uint32  // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head      []uint32  // len: NumEdges; target node for each edge
	Distance  []uint32  // len: NumEdges; physical length in meters
	Class     []uint8   // len: NumEdges; road class code
	NodeLat   []float64 // len: NumNodes
	NodeLon   []float64 // len: NumNodes
	Elevation []int32   // len: NumNodes; 0 when the source had no elevation

	profile Profile
	bounds  orb.Bound
}

// Arc is one outgoing edge as seen from its source node.
type Arc struct {
	Head     uint32
	Distance uint32
	Class    uint8
}

// newGraph wires the parallel arrays into a Graph and derives the bounding
// rectangle. Elevation is zero-filled when absent.
func newGraph(firstOut, head, dist []uint32, class []uint8, lat, lon []float64, elev []int32, p Profile) *Graph {
	n := uint32(len(lat))
	if elev == nil {
		elev = make([]int32, n)
	}
	g := &Graph{
		NumNodes:  n,
		NumEdges:  uint32(len(head)),
		FirstOut:  firstOut,
		Head:      head,
		Distance:  dist,
		Class:     class,
		NodeLat:   lat,
		NodeLon:   lon,
		Elevation: elev,
		profile:   p,
	}
	g.bounds = computeBounds(lat, lon)
	return g
}

func computeBounds(lat, lon []float64) orb.Bound {
	if len(lat) == 0 {
		return orb.Bound{}
	}
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i := range lat {
		minLat = math.Min(minLat, lat[i])
		maxLat = math.Max(maxLat, lat[i])
		minLon = math.Min(minLon, lon[i])
		maxLon = math.Max(maxLon, lon[i])
	}
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Neighbors returns the outgoing edges of node u in storage order.
func (g *Graph) Neighbors(u uint32) ([]Arc, error) {
	if err := g.checkNode(u); err != nil {
		return nil, err
	}
	start, end := g.EdgesFrom(u)
	arcs := make([]Arc, 0, end-start)
	for e := start; e < end; e++ {
		arcs = append(arcs, Arc{Head: g.Head[e], Distance: g.Distance[e], Class: g.Class[e]})
	}
	return arcs, nil
}

// Degree returns the out-degree of node u.
func (g *Graph) Degree(u uint32) (uint32, error) {
	if err := g.checkNode(u); err != nil {
		return 0, err
	}
	return g.FirstOut[u+1] - g.FirstOut[u], nil
}

// ArcCost returns the travel cost of edge e: the raw distance, or the
// distance scaled by the class weight when weighted is set. Edges whose class
// the profile excludes cost Excluded in both modes.
func (g *Graph) ArcCost(e uint32, weighted bool) int64 {
	w := g.profile.Weight(g.Class[e])
	if w < 0 {
		return Excluded
	}
	if !weighted {
		return int64(g.Distance[e])
	}
	return int64(math.Round(float64(g.Distance[e]) * w))
}

// EdgeCost is ArcCost addressed by the i-th outgoing edge of from.
func (g *Graph) EdgeCost(from, i uint32, weighted bool) (int64, error) {
	if err := g.checkNode(from); err != nil {
		return 0, err
	}
	start, end := g.EdgesFrom(from)
	if i >= end-start {
		return 0, &BoundsError{What: "edge", Index: i, Limit: end - start}
	}
	return g.ArcCost(start+i, weighted), nil
}

// FindEdge scans from's adjacency for an edge to to and returns its
// distance. Absence (including an unknown from) is reported through ok.
func (g *Graph) FindEdge(from, to uint32) (distance uint32, ok bool) {
	e := g.edgeIndex(from, to)
	if e == NoNode {
		return 0, false
	}
	return g.Distance[e], true
}

// edgeIndex finds the first edge from source to target.
func (g *Graph) edgeIndex(source, target uint32) uint32 {
	if source >= g.NumNodes {
		return NoNode
	}
	start, end := g.EdgesFrom(source)
	for e := start; e < end; e++ {
		if g.Head[e] == target {
			return e
		}
	}
	return NoNode
}

// Position returns node u as an orb point (X = lon, Y = lat).
func (g *Graph) Position(u uint32) (orb.Point, error) {
	if err := g.checkNode(u); err != nil {
		return orb.Point{}, err
	}
	return orb.Point{g.NodeLon[u], g.NodeLat[u]}, nil
}

// Bounds returns the rectangle enclosing every node.
func (g *Graph) Bounds() orb.Bound {
	return g.bounds
}

// Profile returns the active travel profile.
func (g *Graph) Profile() Profile {
	return g.profile
}

// WithProfile returns a graph sharing every array with g but costing edges
// with p. g itself is not modified.
func (g *Graph) WithProfile(p Profile) *Graph {
	view := *g
	view.profile = p
	return &view
}

func (g *Graph) checkNode(u uint32) error {
	if u >= g.NumNodes {
		return &BoundsError{What: "node", Index: u, Limit: g.NumNodes}
	}
	return nil
}

// Validate checks the CSR invariants: FirstOut has NumNodes+1 entries, is
// non-decreasing, ends at NumEdges, and every head is a valid node.
func (g *Graph) Validate() error {
	return validateCSR(g.FirstOut, g.Head, g.NumNodes)
}
