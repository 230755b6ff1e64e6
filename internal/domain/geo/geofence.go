// Package geo provides great-circle distance and geofence membership math.
package geo

import (
	"math"
	"sort"

	"github.com/osa030/hideseek/internal/domain/game"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// boundaryEpsilon absorbs float rounding so a point computed to lie exactly
// on the boundary is still inside.
const boundaryEpsilon = 1e-6

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the haversine distance between two coordinates in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// DistanceBetween is Distance over points.
func DistanceBetween(a, b Point) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// IsWithin reports whether p lies inside zone. The boundary is inclusive.
func IsWithin(zone game.Zone, p Point) bool {
	return Distance(zone.Lat, zone.Lon, p.Lat, p.Lon) <= zone.RadiusMeters+boundaryEpsilon
}

// Contains is IsWithin with "no zone" meaning no enforcement.
func Contains(zone *game.Zone, p Point) bool {
	if zone == nil {
		return true
	}
	return IsWithin(*zone, p)
}

// ResolveZone picks the zone that applies to a session.
// Precedence: the session's own zone, the district's active default zone,
// the first active district zone, then nil (no enforcement).
func ResolveZone(own *game.Zone, districtZones []game.Zone) *game.Zone {
	if own != nil {
		z := *own
		return &z
	}
	for _, z := range districtZones {
		if z.IsDefault && z.Active {
			z := z
			return &z
		}
	}
	for _, z := range districtZones {
		if z.Active {
			z := z
			return &z
		}
	}
	return nil
}

// Candidate is a participant position considered by Nearby.
type Candidate struct {
	ID    string
	Point Point
}

// Neighbor is a candidate within range together with its distance.
type Neighbor struct {
	ID             string
	Point          Point
	DistanceMeters float64
}

// Nearby returns the candidates within radius of origin, nearest first.
// Equal distances are ordered by ID.
func Nearby(origin Point, candidates []Candidate, radius float64) []Neighbor {
	result := make([]Neighbor, 0, len(candidates))
	for _, c := range candidates {
		d := DistanceBetween(origin, c.Point)
		if d <= radius+boundaryEpsilon {
			result = append(result, Neighbor{ID: c.ID, Point: c.Point, DistanceMeters: d})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceMeters != result[j].DistanceMeters {
			return result[i].DistanceMeters < result[j].DistanceMeters
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Offset returns the point reached by moving meters along bearing degrees
// (0 = north) from p on a spherical Earth.
func Offset(p Point, bearing, meters float64) Point {
	delta := meters / EarthRadiusMeters
	theta := toRadians(bearing)
	phi1 := toRadians(p.Lat)
	lambda1 := toRadians(p.Lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	return Point{Lat: toDegrees(phi2), Lon: normalizeLon(toDegrees(lambda2))}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
