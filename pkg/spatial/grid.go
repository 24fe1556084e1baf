// Package spatial answers nearest-node queries over a uniform grid laid out
// on the graph's bounding rectangle.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/azybler/tour_router/pkg/geo"
	"github.com/azybler/tour_router/pkg/graph"
)

const (
	defaultNodesPerCell = 4.0
	defaultExtraRings   = 2
)

// Grid buckets node ids by cell. Cell c holds
// bucketMembers[bucketOffset[c]:bucketOffset[c+1]]. It never changes after
// construction, so concurrent lookups are safe.
type Grid struct {
	lat, lon []float64
	bound    orb.Bound

	rows, cols       int
	cellLat, cellLon float64 // cell size in degrees; 0 on a degenerate axis

	bucketOffset  []uint32
	bucketMembers []uint32

	extraRings int
	// maxAbsLat feeds the ring lower bound: longitude degrees are shortest
	// at the latitude farthest from the equator.
	maxAbsLat float64
}

type options struct {
	nodesPerCell float64
	extraRings   int
}

// Option configures NewGrid.
type Option func(*options)

// WithDensity sets the target average number of nodes per cell.
func WithDensity(nodesPerCell float64) Option {
	return func(o *options) { o.nodesPerCell = nodesPerCell }
}

// WithExtraRings sets how many rings are searched past the ring that
// produced the current best candidate.
func WithExtraRings(k int) Option {
	return func(o *options) { o.extraRings = k }
}

// FromGraph indexes every node of g over g.Bounds().
func FromGraph(g *graph.Graph, opts ...Option) (*Grid, error) {
	return NewGrid(g.NodeLat, g.NodeLon, g.Bounds(), opts...)
}

// NewGrid indexes the points (lat[i], lon[i]); the slices are retained, not
// copied. bound must enclose every point.
func NewGrid(lat, lon []float64, bound orb.Bound, opts ...Option) (*Grid, error) {
	o := options{nodesPerCell: defaultNodesPerCell, extraRings: defaultExtraRings}
	for _, opt := range opts {
		opt(&o)
	}
	if len(lat) != len(lon) {
		return nil, fmt.Errorf("spatial: %d latitudes but %d longitudes", len(lat), len(lon))
	}
	if o.nodesPerCell <= 0 || math.IsNaN(o.nodesPerCell) {
		return nil, fmt.Errorf("spatial: nodes per cell must be positive, got %g", o.nodesPerCell)
	}
	if o.extraRings < 0 {
		return nil, fmt.Errorf("spatial: extra rings must be non-negative, got %d", o.extraRings)
	}

	g := &Grid{
		lat:        lat,
		lon:        lon,
		bound:      bound,
		extraRings: o.extraRings,
		maxAbsLat:  math.Max(math.Abs(bound.Min.Lat()), math.Abs(bound.Max.Lat())),
	}
	g.rows, g.cols = dimensions(len(lat), o.nodesPerCell, bound)
	g.cellLat = (bound.Max.Lat() - bound.Min.Lat()) / float64(g.rows)
	g.cellLon = (bound.Max.Lon() - bound.Min.Lon()) / float64(g.cols)

	for i := range lat {
		if !bound.Contains(orb.Point{lon[i], lat[i]}) {
			return nil, fmt.Errorf("spatial: point %d (%g, %g) outside bound", i, lat[i], lon[i])
		}
	}

	// Pass 1: count nodes per cell.
	cells := g.rows * g.cols
	g.bucketOffset = make([]uint32, cells+1)
	cellOf := make([]uint32, len(lat))
	for i := range lat {
		c := g.cell(lat[i], lon[i])
		cellOf[i] = uint32(c)
		g.bucketOffset[c+1]++
	}
	for c := 1; c <= cells; c++ {
		g.bucketOffset[c] += g.bucketOffset[c-1]
	}

	// Pass 2: counting-sort placement.
	g.bucketMembers = make([]uint32, len(lat))
	cursor := make([]uint32, cells)
	copy(cursor, g.bucketOffset[:cells])
	for i, c := range cellOf {
		g.bucketMembers[cursor[c]] = uint32(i)
		cursor[c]++
	}
	return g, nil
}

// dimensions picks rows x cols close to n/density cells whose shape
// follows the ground aspect ratio of bound.
func dimensions(n int, density float64, bound orb.Bound) (rows, cols int) {
	cells := math.Max(1, math.Ceil(float64(n)/density))
	height := bound.Max.Lat() - bound.Min.Lat()
	width := bound.Max.Lon() - bound.Min.Lon()

	switch {
	case height <= 0 && width <= 0:
		return 1, 1
	case height <= 0:
		return 1, int(cells)
	case width <= 0:
		return int(cells), 1
	}
	aspect := geo.GroundAspect(bound)
	rows = clampDim(math.Round(math.Sqrt(cells/aspect)), cells)
	cols = clampDim(math.Round(math.Sqrt(cells*aspect)), cells)
	return rows, cols
}

func clampDim(v, limit float64) int {
	return int(math.Max(1, math.Min(v, limit)))
}

// Len returns the number of indexed points.
func (g *Grid) Len() int { return len(g.lat) }

// Dims returns the grid size as rows (latitude) by columns (longitude).
func (g *Grid) Dims() (rows, cols int) { return g.rows, g.cols }

// Bound returns the indexed rectangle.
func (g *Grid) Bound() orb.Bound { return g.bound }

func (g *Grid) rowOf(lat float64) int {
	if g.cellLat <= 0 {
		return 0
	}
	return min(int((lat-g.bound.Min.Lat())/g.cellLat), g.rows-1)
}

func (g *Grid) colOf(lon float64) int {
	if g.cellLon <= 0 {
		return 0
	}
	return min(int((lon-g.bound.Min.Lon())/g.cellLon), g.cols-1)
}

// cell maps a coordinate inside the bound to its cell index. Coordinates
// on the max edge land in the last row or column.
func (g *Grid) cell(lat, lon float64) int {
	return g.rowOf(lat)*g.cols + g.colOf(lon)
}

// ErrOutsideGrid is reported by callers that need an error for a failed
// Nearest lookup.
var ErrOutsideGrid = errors.New("spatial: point outside indexed area")

// Nearest returns the node closest to (lat, lon) by haversine distance.
// ok is false when the point lies outside the indexed rectangle or the
// grid is empty.
//
// The search walks square rings of cells around the home cell. After the
// ring that produced the current best candidate it scans extraRings more
// rings, starting over whenever a better candidate turns up, and then keeps
// going only while the next ring could still hold a closer node. Once the
// ring index passes both axis cell counts the whole grid has been seen and
// the search ends.
func (g *Grid) Nearest(lat, lon float64) (node uint32, ok bool) {
	if len(g.lat) == 0 || !g.bound.Contains(orb.Point{lon, lat}) {
		return graph.NoNode, false
	}

	r0, c0 := g.rowOf(lat), g.colOf(lon)
	span := max(g.rows, g.cols)
	best, bestDist := graph.NoNode, math.Inf(1)
	found := false
	hysteresis := g.extraRings

	for ring := 0; ; ring++ {
		if g.scanRing(r0, c0, ring, lat, lon, &best, &bestDist) {
			found = true
			hysteresis = g.extraRings
		} else if found || ring >= span {
			hysteresis--
		}
		if !found && ring < span {
			continue
		}
		if hysteresis > 0 {
			continue
		}
		if ring >= span || g.ringLowerBound(ring+1) >= bestDist {
			break
		}
	}
	return best, best != graph.NoNode
}

// scanRing visits the cells at Chebyshev distance k from (r0, c0) and
// reports whether any of them improved the best candidate.
func (g *Grid) scanRing(r0, c0, k int, lat, lon float64, best *uint32, bestDist *float64) bool {
	improved := false
	visit := func(r, c int) {
		if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
			return
		}
		cell := r*g.cols + c
		for _, m := range g.bucketMembers[g.bucketOffset[cell]:g.bucketOffset[cell+1]] {
			d := geo.Haversine(lat, lon, g.lat[m], g.lon[m])
			if d < *bestDist {
				*best, *bestDist = m, d
				improved = true
			}
		}
	}

	if k == 0 {
		visit(r0, c0)
		return improved
	}
	cLo, cHi := max(c0-k, 0), min(c0+k, g.cols-1)
	for c := cLo; c <= cHi; c++ {
		visit(r0-k, c)
		visit(r0+k, c)
	}
	rLo, rHi := max(r0-k+1, 0), min(r0+k-1, g.rows-1)
	for r := rLo; r <= rHi; r++ {
		visit(r, c0-k)
		visit(r, c0+k)
	}
	return improved
}

// ringLowerBound is a lower bound on the ground distance from any point of
// the home cell to any node in ring k: such nodes are at least k-1 whole
// cells away along one axis.
func (g *Grid) ringLowerBound(k int) float64 {
	if k <= 1 {
		return 0
	}
	steps := float64(k - 1)
	lb := math.Inf(1)
	if g.cellLat > 0 {
		lb = geo.Haversine(0, 0, steps*g.cellLat, 0)
	}
	if g.cellLon > 0 {
		dLon := math.Min(steps*g.cellLon, 180) * math.Pi / 180
		cos := math.Cos(math.Min(g.maxAbsLat, 90) * math.Pi / 180)
		lonLB := 2 * geo.EarthRadius * math.Asin(math.Min(1, cos*math.Sin(dLon/2)))
		lb = math.Min(lb, lonLB)
	}
	return lb
}

// WithinRadius returns every node within meters of (lat, lon), nearest
// first. Only cells overlapping the radius box are scanned. The query point
// may lie outside the indexed rectangle.
func (g *Grid) WithinRadius(lat, lon, meters float64) []uint32 {
	if len(g.lat) == 0 || meters < 0 {
		return nil
	}
	type hit struct {
		node uint32
		dist float64
	}
	var hits []hit
	boxes := geo.WrapBound(geo.RadiusBound(lat, lon, meters))
	// Wrapped pieces can clamp onto the same cells.
	var scanned map[int]bool
	if len(boxes) > 1 {
		scanned = make(map[int]bool)
	}
	for _, box := range boxes {
		if !g.bound.Intersects(box) {
			continue
		}
		rLo := g.rowOf(math.Max(box.Min.Lat(), g.bound.Min.Lat()))
		rHi := g.rowOf(math.Min(box.Max.Lat(), g.bound.Max.Lat()))
		cLo := g.colOf(math.Max(box.Min.Lon(), g.bound.Min.Lon()))
		cHi := g.colOf(math.Min(box.Max.Lon(), g.bound.Max.Lon()))
		for r := rLo; r <= rHi; r++ {
			for c := cLo; c <= cHi; c++ {
				cell := r*g.cols + c
				if scanned != nil {
					if scanned[cell] {
						continue
					}
					scanned[cell] = true
				}
				for _, m := range g.bucketMembers[g.bucketOffset[cell]:g.bucketOffset[cell+1]] {
					if d := geo.Haversine(lat, lon, g.lat[m], g.lon[m]); d <= meters {
						hits = append(hits, hit{m, d})
					}
				}
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].node < hits[j].node
	})
	nodes := make([]uint32, len(hits))
	for i, h := range hits {
		nodes[i] = h.node
	}
	return nodes
}
