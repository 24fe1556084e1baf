// Package poi indexes points of interest: named, non-routable locations
// that itineraries are planned between.
package poi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/azybler/tour_router/pkg/geo"
)

// POI is one point of interest.
type POI struct {
	ID       int
	Position orb.Point
	Category string
	Name     string
}

// FormatError reports a malformed row in a POI file.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("poi line %d: %s", e.Line, e.Reason)
}

// Read parses rows of the form "<lat> <lon> <category> <name...>". Blank
// lines and lines starting with '#' are skipped. IDs follow row order.
func Read(r io.Reader) ([]POI, error) {
	var pois []POI
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("want lat lon category name, got %d fields", len(fields))}
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("bad latitude %q", fields[0])}
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("bad longitude %q", fields[1])}
		}
		pois = append(pois, POI{
			ID:       len(pois),
			Position: orb.Point{lon, lat},
			Category: fields[2],
			Name:     strings.Join(fields[3:], " "),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read poi: %w", err)
	}
	return pois, nil
}

// Index answers spatial and name lookups over a fixed POI set. It is
// read-only after construction and safe for concurrent use.
type Index struct {
	pois []POI
	tree rtree.RTreeG[int]
	// byName maps lower-cased names to POI ids in input order.
	byName map[string][]int
}

// NewIndex indexes pois. The slice is retained.
func NewIndex(pois []POI) *Index {
	idx := &Index{pois: pois, byName: make(map[string][]int, len(pois))}
	for i, p := range pois {
		pt := [2]float64{p.Position.Lon(), p.Position.Lat()}
		idx.tree.Insert(pt, pt, i)
		key := strings.ToLower(p.Name)
		idx.byName[key] = append(idx.byName[key], i)
	}
	return idx
}

// Open reads and indexes the POI file at path.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open poi file: %w", err)
	}
	defer f.Close()
	pois, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewIndex(pois), nil
}

// Len returns the number of indexed POIs.
func (x *Index) Len() int { return x.tree.Len() }

// All returns the indexed POIs in id order.
func (x *Index) All() []POI { return x.pois }

// ByName returns the POIs whose name matches case-insensitively.
func (x *Index) ByName(name string) []POI {
	ids := x.byName[strings.ToLower(strings.TrimSpace(name))]
	out := make([]POI, len(ids))
	for i, id := range ids {
		out[i] = x.pois[id]
	}
	return out
}

// WithinRadius returns the POIs within meters of (lat, lon), nearest
// first. The search wraps across the antimeridian.
func (x *Index) WithinRadius(lat, lon, meters float64) []POI {
	type hit struct {
		id   int
		dist float64
	}
	var hits []hit
	for _, b := range geo.WrapBound(geo.RadiusBound(lat, lon, meters)) {
		x.tree.Search(
			[2]float64{b.Min.Lon(), b.Min.Lat()},
			[2]float64{b.Max.Lon(), b.Max.Lat()},
			func(_, _ [2]float64, id int) bool {
				p := x.pois[id].Position
				if d := geo.Haversine(lat, lon, p.Lat(), p.Lon()); d <= meters {
					hits = append(hits, hit{id, d})
				}
				return true
			},
		)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id < hits[j].id
	})
	out := make([]POI, len(hits))
	for i, h := range hits {
		out[i] = x.pois[h.id]
	}
	return out
}

// Nearest returns the POI closest to (lat, lon) within maxMeters. The
// search box grows from a small radius so dense areas stay cheap.
func (x *Index) Nearest(lat, lon, maxMeters float64) (POI, float64, bool) {
	if x.Len() == 0 || maxMeters < 0 {
		return POI{}, 0, false
	}
	r := min(250, maxMeters)
	for {
		if hits := x.WithinRadius(lat, lon, r); len(hits) > 0 {
			p := hits[0].Position
			return hits[0], geo.Haversine(lat, lon, p.Lat(), p.Lon()), true
		}
		if r >= maxMeters {
			return POI{}, 0, false
		}
		r = min(r*4, maxMeters)
	}
}
