package graph

import (
	"fmt"
	"sort"
)

// Builder accumulates nodes and edges in any order and packs them into a
// CSR Graph. It is used by converters and tests; the file loaders build
// their arrays directly.
type Builder struct {
	lat, lon []float64
	elev     []int32
	edges    []builderEdge
	profile  Profile
}

type builderEdge struct {
	from, to uint32
	distance uint32
	class    uint8
}

// NewBuilder returns an empty builder using the car profile.
func NewBuilder() *Builder {
	return &Builder{profile: DefaultProfile()}
}

// SetProfile sets the profile attached to the built graph.
func (b *Builder) SetProfile(p Profile) *Builder {
	b.profile = p
	return b
}

// AddNode appends a node and returns its id.
func (b *Builder) AddNode(lat, lon float64, elevation int32) uint32 {
	id := uint32(len(b.lat))
	b.lat = append(b.lat, lat)
	b.lon = append(b.lon, lon)
	b.elev = append(b.elev, elevation)
	return id
}

// AddEdge appends a directed edge.
func (b *Builder) AddEdge(from, to, distance uint32, class uint8) {
	b.edges = append(b.edges, builderEdge{from: from, to: to, distance: distance, class: class})
}

// AddRoad appends edges in both directions.
func (b *Builder) AddRoad(u, v, distance uint32, class uint8) {
	b.AddEdge(u, v, distance, class)
	b.AddEdge(v, u, distance, class)
}

// Build packs the collected data. Edges keep their insertion order within
// each source node.
func (b *Builder) Build() (*Graph, error) {
	numNodes := uint32(len(b.lat))
	for i, e := range b.edges {
		if e.from >= numNodes || e.to >= numNodes {
			return nil, fmt.Errorf("edge %d (%d->%d) references a node outside [0, %d)", i, e.from, e.to, numNodes)
		}
	}

	edges := make([]builderEdge, len(b.edges))
	copy(edges, b.edges)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].from < edges[j].from
	})

	numEdges := uint32(len(edges))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	dist := make([]uint32, numEdges)
	class := make([]uint8, numEdges)

	for i, e := range edges {
		head[i] = e.to
		dist[i] = e.distance
		class[i] = e.class
	}

	// Build FirstOut via counting.
	for _, e := range edges {
		firstOut[e.from+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	lat := append([]float64{}, b.lat...)
	lon := append([]float64{}, b.lon...)
	elev := append([]int32{}, b.elev...)
	return newGraph(firstOut, head, dist, class, lat, lon, elev, b.profile), nil
}
