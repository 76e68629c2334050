// Package geo vends the geometric primitives of the discovery engine: great-circle distance, small offset
// math and hex-grid quantization.
//
// Offsets and the hex grid rely on an equirectangular approximation (111320 m per degree, scaled by
// cos(latitude) on the longitude axis). It is accurate for the tens-to-hundreds of meters the engine
// works with and breaks down near the poles, which is out of scope for the app.
package geo

import (
	"math"

	"github.com/paulmach/orb"

	md "wuyrush.io/serendipity/models"
)

const (
	EarthRadiusMeters = 6371000.0
	MetersPerDegree   = 111320.0
)

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b md.Location) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func MetersToLatDegrees(m float64) float64 {
	return m / MetersPerDegree
}

func MetersToLonDegrees(m, atLat float64) float64 {
	return m / (MetersPerDegree * math.Cos(toRadians(atLat)))
}

// Offset nudges l by the given meters towards north and east, e.g. to move a draft pin.
func Offset(l md.Location, northMeters, eastMeters float64) md.Location {
	return md.Location{
		Latitude:  l.Latitude + MetersToLatDegrees(northMeters),
		Longitude: l.Longitude + MetersToLonDegrees(eastMeters, l.Latitude),
	}
}

// Bound returns the bounding box of a circle of the given radius around l.
func Bound(l md.Location, radiusMeters float64) orb.Bound {
	dLat, dLon := MetersToLatDegrees(radiusMeters), MetersToLonDegrees(radiusMeters, l.Latitude)
	return orb.Bound{
		Min: orb.Point{l.Longitude - dLon, l.Latitude - dLat},
		Max: orb.Point{l.Longitude + dLon, l.Latitude + dLat},
	}
}
