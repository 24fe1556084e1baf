package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean Earth radius in meters used by every distance helper.
const EarthRadius = 6_371_000.0

// metersPerDegree is the length of one degree of latitude (and of longitude
// at the equator) on the haversine sphere.
const metersPerDegree = math.Pi / 180 * EarthRadius

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// PointDistance is Haversine for orb points (X = lon, Y = lat).
func PointDistance(a, b orb.Point) float64 {
	return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// EquirectangularDist returns an approximate distance in meters.
// Use for candidate filtering and comparisons, not for final edge weights.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*math.Pi/180) * math.Pi / 180
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * EarthRadius
}

// GroundAspect returns the width/height ratio of a bounding rectangle in
// ground distance, using the longitude shrink factor at the rectangle's
// middle latitude. Returns 1 for degenerate rectangles.
func GroundAspect(b orb.Bound) float64 {
	height := b.Max.Lat() - b.Min.Lat()
	width := (b.Max.Lon() - b.Min.Lon()) * math.Cos((b.Min.Lat()+b.Max.Lat())/2*math.Pi/180)
	if height <= 0 || width <= 0 {
		return 1
	}
	return width / height
}

// RadiusBound returns a rectangle that encloses every point within meters
// of (lat, lon). The longitude extent grows toward the poles and is capped
// at the full range. Longitudes are not wrapped; pass the result through
// WrapBound before searching an index over [-180, 180].
func RadiusBound(lat, lon, meters float64) orb.Bound {
	dLat := meters / metersPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	dLon := 180.0
	if cos > 1e-9 {
		dLon = math.Min(180, dLat/cos)
	}
	return orb.Bound{
		Min: orb.Point{lon - dLon, lat - dLat},
		Max: orb.Point{lon + dLon, lat + dLat},
	}
}

// WrapBound splits a rectangle whose longitudes run past ±180 into at most
// two rectangles inside [-180, 180]. Rectangles already inside the range
// come back unchanged.
func WrapBound(b orb.Bound) []orb.Bound {
	minLon, maxLon := b.Min.Lon(), b.Max.Lon()
	minLat, maxLat := b.Min.Lat(), b.Max.Lat()
	switch {
	case maxLon-minLon >= 360:
		return []orb.Bound{{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}}
	case minLon < -180:
		return []orb.Bound{
			{Min: orb.Point{-180, minLat}, Max: orb.Point{maxLon, maxLat}},
			{Min: orb.Point{minLon + 360, minLat}, Max: orb.Point{180, maxLat}},
		}
	case maxLon > 180:
		return []orb.Bound{
			{Min: orb.Point{minLon, minLat}, Max: orb.Point{180, maxLat}},
			{Min: orb.Point{-180, minLat}, Max: orb.Point{maxLon - 360, maxLat}},
		}
	}
	return []orb.Bound{b}
}
