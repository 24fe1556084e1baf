package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/azybler/tour_router/pkg/planner"
	"github.com/azybler/tour_router/pkg/poi"
)

// waypointFile is the YAML document read by "plan":
//
//	order: shortest
//	round_trip: true
//	start: {lat: 48.7784, lon: 9.1800}
//	waypoints:
//	  - poi: Neues Schloss
//	  - label: Fernsehturm
//	    lat: 48.7557
//	    lon: 9.1903
//	    time: 2026-05-01T14:00:00Z
type waypointFile struct {
	Order     string          `yaml:"order"`
	RoundTrip *bool           `yaml:"round_trip"`
	Start     *position       `yaml:"start"`
	Waypoints []waypointEntry `yaml:"waypoints"`
}

type position struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type waypointEntry struct {
	Label string    `yaml:"label"`
	Lat   *float64  `yaml:"lat"`
	Lon   *float64  `yaml:"lon"`
	Time  time.Time `yaml:"time"`
	// POI names a point of interest to use for the position instead.
	POI string `yaml:"poi"`
}

func readWaypointFile(path string) (*waypointFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read waypoints: %w", err)
	}
	var wf waypointFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("%s: parse waypoints: %w", path, err)
	}
	return &wf, nil
}

// resolve turns entries into planner waypoints, looking up POI names in
// pois.
func (wf *waypointFile) resolve(pois *poi.Index) ([]planner.Waypoint, error) {
	out := make([]planner.Waypoint, 0, len(wf.Waypoints))
	for i, e := range wf.Waypoints {
		w := planner.Waypoint{Label: e.Label, Time: e.Time}
		switch {
		case e.POI != "":
			if pois == nil {
				return nil, fmt.Errorf("waypoint %d: poi %q given but no poi file is configured", i, e.POI)
			}
			matches := pois.ByName(e.POI)
			if len(matches) == 0 {
				return nil, fmt.Errorf("waypoint %d: unknown poi %q", i, e.POI)
			}
			w.Position = matches[0].Position
			if w.Label == "" {
				w.Label = matches[0].Name
			}
		case e.Lat != nil && e.Lon != nil:
			w.Position = orb.Point{*e.Lon, *e.Lat}
		default:
			return nil, fmt.Errorf("waypoint %d: needs lat and lon, or poi", i)
		}
		out = append(out, w)
	}
	return out, nil
}

func writeGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
