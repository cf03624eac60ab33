package nudge

import (
	"math"

	"github.com/rshade/ecojourney/internal/refdata"
)

const earthRadiusMeters = 6_371_000.0

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// NearestStation returns the closest station within radiusMeters of loc.
func NearestStation(loc Location, stations []refdata.CupStation, radiusMeters float64) (refdata.CupStation, float64, bool) {
	var (
		best     refdata.CupStation
		bestDist = math.Inf(1)
	)
	for _, s := range stations {
		d := DistanceMeters(loc, Location{Latitude: s.Latitude, Longitude: s.Longitude})
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	if bestDist > radiusMeters {
		return refdata.CupStation{}, 0, false
	}
	return best, bestDist, true
}
