package graph

import "sort"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// ComponentSummary describes the weakly connected components of a graph.
type ComponentSummary struct {
	Count uint32
	// Sizes lists component sizes, largest first.
	Sizes []uint32
}

// Largest returns the size of the biggest component, or 0 for an empty graph.
func (s ComponentSummary) Largest() uint32 {
	if len(s.Sizes) == 0 {
		return 0
	}
	return s.Sizes[0]
}

// connect unions every edge, treating the directed graph as undirected.
// Edges excluded by the profile do not connect anything.
func connect(g *Graph) *UnionFind {
	uf := NewUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			if g.profile.Excludes(g.Class[e]) {
				continue
			}
			uf.Union(u, g.Head[e])
		}
	}
	return uf
}

// Components counts the weakly connected components of g. Isolated nodes
// count as components of size one.
func Components(g *Graph) ComponentSummary {
	uf := connect(g)
	var sizes []uint32
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == i {
			sizes = append(sizes, uf.size[i])
		}
	}
	sort.Slice(sizes, func(a, b int) bool { return sizes[a] > sizes[b] })
	return ComponentSummary{Count: uint32(len(sizes)), Sizes: sizes}
}

// LargestComponent returns the node indices belonging to the largest
// weakly connected component, in ascending order.
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}
	uf := connect(g)

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new graph containing only the specified nodes,
// renumbered in the given order. Edges leaving the set are dropped.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	b := NewBuilder().SetProfile(g.profile)
	for _, oldIdx := range nodes {
		b.AddNode(g.NodeLat[oldIdx], g.NodeLon[oldIdx], g.Elevation[oldIdx])
	}
	for _, oldU := range nodes {
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			if newV, ok := oldToNew[g.Head[e]]; ok {
				b.AddEdge(oldToNew[oldU], newV, g.Distance[e], g.Class[e])
			}
		}
	}
	// Every endpoint was remapped into range, so Build cannot fail.
	filtered, _ := b.Build()
	return filtered
}
