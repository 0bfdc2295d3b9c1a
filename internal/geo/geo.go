// Package geo provides great-circle helpers shared by the batching core.
package geo

import (
	"delivery-batch-service/internal/domain"
	"math"
	"time"
)

// Mean earth radius in metres.
const earthRadius = 6371000.0

// Distance returns the haversine distance between a and b in metres.
func Distance(a, b domain.Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Bearing returns the initial bearing from a to b in degrees, north = 0.
func Bearing(a, b domain.Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// Centroid returns the arithmetic mean of the given points.
func Centroid(points []domain.Coordinates) domain.Coordinates {
	if len(points) == 0 {
		return domain.Coordinates{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	n := float64(len(points))
	return domain.Coordinates{Lat: sumLat / n, Lon: sumLon / n}
}

// MaxDistanceFrom returns the largest distance from center to any point.
func MaxDistanceFrom(center domain.Coordinates, points []domain.Coordinates) float64 {
	var maxDist float64
	for _, p := range points {
		if d := Distance(center, p); d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}

// TravelTime converts a distance into travel time at a constant speed.
func TravelTime(meters, speedKmh float64) time.Duration {
	if meters <= 0 || speedKmh <= 0 {
		return 0
	}
	seconds := meters * 3.6 / speedKmh
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// Offset moves p by the given metres north and east. It uses an
// equirectangular approximation, accurate enough for city-scale offsets.
func Offset(p domain.Coordinates, north, east float64) domain.Coordinates {
	dLat := north / earthRadius
	dLon := east / (earthRadius * math.Cos(toRadians(p.Lat)))
	return domain.Coordinates{
		Lat: p.Lat + toDegrees(dLat),
		Lon: p.Lon + toDegrees(dLon),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
