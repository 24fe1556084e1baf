package routing

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/azybler/tour_router/pkg/graph"
)

// LineString converts a node sequence into a polyline of node coordinates.
func LineString(g *graph.Graph, nodes []uint32) orb.LineString {
	if len(nodes) == 0 {
		return nil
	}
	ls := make(orb.LineString, 0, len(nodes))
	for _, u := range nodes {
		ls = append(ls, orb.Point{g.NodeLon[u], g.NodeLat[u]})
	}
	return ls
}

// PathMeters returns the physical length of a node sequence returned by
// Route. Between consecutive nodes it takes the edge the engine would have
// chosen: the cheapest one under the engine's costing.
func (e *Engine) PathMeters(nodes []uint32) (uint64, error) {
	var total uint64
	for i := 0; i+1 < len(nodes); i++ {
		d, ok := e.cheapestEdge(nodes[i], nodes[i+1])
		if !ok {
			return 0, fmt.Errorf("%w: no usable edge %d -> %d", ErrNoPath, nodes[i], nodes[i+1])
		}
		total += uint64(d)
	}
	return total, nil
}

// cheapestEdge returns the distance of the cheapest usable u->v edge.
func (e *Engine) cheapestEdge(u, v uint32) (uint32, bool) {
	if u >= e.g.NumNodes {
		return 0, false
	}
	best := int64(-1)
	var dist uint32
	start, end := e.g.EdgesFrom(u)
	for i := start; i < end; i++ {
		if e.g.Head[i] != v {
			continue
		}
		c := e.g.ArcCost(i, e.weighted)
		if c < 0 {
			continue
		}
		if best < 0 || c < best {
			best, dist = c, e.g.Distance[i]
		}
	}
	return dist, best >= 0
}
