package planner

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON exports the itinerary: a Point feature per stop in visiting
// order, then a LineString feature per routed segment.
func (it *Itinerary) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, s := range it.Stops {
		f := geojson.NewFeature(s.Position)
		f.Properties["kind"] = "stop"
		f.Properties["seq"] = i
		f.Properties["name"] = s.Name()
		f.Properties["input"] = s.Input
		f.Properties["node"] = s.Node
		if !s.Time.IsZero() {
			f.Properties["time"] = s.Time.Format(time.RFC3339)
		}
		fc.Append(f)
	}

	for _, seg := range it.Segments {
		path := seg.Path
		if len(path) == 1 {
			// Both stops snapped to the same node.
			path = orb.LineString{path[0], path[0]}
		}
		f := geojson.NewFeature(path)
		f.Properties["kind"] = "segment"
		f.Properties["from"] = it.Stops[seg.From].Name()
		f.Properties["to"] = it.Stops[seg.To].Name()
		f.Properties["cost"] = seg.Cost
		f.Properties["meters"] = seg.Meters
		fc.Append(f)
	}
	return fc
}
