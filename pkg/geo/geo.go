// Package geo provides great-circle distance and proximity helpers for
// latitude/longitude coordinates expressed in degrees.
package geo

import "math"

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371e3

// Point is a coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite and within canonical bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Distance returns the Haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	phi1 := radians(a.Latitude)
	phi2 := radians(b.Latitude)
	dPhi := radians(b.Latitude - a.Latitude)
	dLambda := radians(b.Longitude - a.Longitude)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// Within reports whether b lies no farther than radius meters from a.
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// Box is a latitude/longitude rectangle in degrees.
type Box struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether p falls inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Latitude >= b.South && p.Latitude <= b.North &&
		p.Longitude >= b.West && p.Longitude <= b.East
}

// BoundingBox returns the rectangle enclosing a circle of radius meters around center.
// The box over-approximates the circle and is meant as a coarse prefilter
// ahead of an exact Distance check.
func BoundingBox(center Point, radius float64) Box {
	dLat := degrees(radius / EarthRadius)
	dLng := dLat / math.Cos(radians(center.Latitude))

	return Box{
		North: center.Latitude + dLat,
		South: center.Latitude - dLat,
		East:  center.Longitude + dLng,
		West:  center.Longitude - dLng,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
