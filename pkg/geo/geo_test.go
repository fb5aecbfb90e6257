package geo_test

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/terra/pkg/geo"
)

var nyc = geo.Point{Latitude: 40.7128, Longitude: -74.0060}

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	points := []geo.Point{
		nyc,
		{Latitude: 0, Longitude: 0},
		{Latitude: 90, Longitude: 180},
		{Latitude: -33.8688, Longitude: 151.2093},
	}

	for _, p := range points {
		assert.Zero(t, geo.Distance(p, p), "distance(%v, %v)", p, p)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]geo.Point{
		{nyc, {Latitude: 40.7218, Longitude: -74.0060}},
		{{Latitude: 51.5074, Longitude: -0.1278}, {Latitude: 48.8566, Longitude: 2.3522}},
		{{Latitude: -89.9, Longitude: 10}, {Latitude: 89.9, Longitude: -170}},
		{{Latitude: 0, Longitude: 179.9}, {Latitude: 0, Longitude: -179.9}},
	}

	for _, p := range pairs {
		assert.Equal(t, geo.Distance(p[0], p[1]), geo.Distance(p[1], p[0]))
	}
}

func TestDistanceMatchesS2(t *testing.T) {
	pairs := [][2]geo.Point{
		{nyc, {Latitude: 40.7218, Longitude: -74.0060}},
		{{Latitude: 51.5074, Longitude: -0.1278}, {Latitude: 48.8566, Longitude: 2.3522}},
		{{Latitude: 35.6762, Longitude: 139.6503}, {Latitude: 37.5665, Longitude: 126.9780}},
	}

	for _, p := range pairs {
		a := s2.LatLngFromDegrees(p[0].Latitude, p[0].Longitude)
		b := s2.LatLngFromDegrees(p[1].Latitude, p[1].Longitude)
		want := a.Distance(b).Radians() * geo.EarthRadius

		got := geo.Distance(p[0], p[1])
		assert.InDelta(t, want, got, want*1e-9+1e-6)
	}
}

func TestWithinHotspotRadius(t *testing.T) {
	tests := []struct {
		name  string
		point geo.Point
		want  bool
	}{
		{"same point", nyc, true},
		{"about 45m north", geo.Point{Latitude: 40.7132, Longitude: -74.0060}, true},
		{"about 1km north", geo.Point{Latitude: 40.7218, Longitude: -74.0060}, false},
		{"about 1km east", geo.Point{Latitude: 40.7128, Longitude: -73.9941}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geo.Within(tt.point, nyc, 100))
		})
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name  string
		point geo.Point
		want  bool
	}{
		{"origin", geo.Point{}, true},
		{"corners", geo.Point{Latitude: -90, Longitude: 180}, true},
		{"lat too high", geo.Point{Latitude: 90.0001, Longitude: 0}, false},
		{"lat too low", geo.Point{Latitude: -91, Longitude: 0}, false},
		{"lng too high", geo.Point{Latitude: 0, Longitude: 180.5}, false},
		{"lng too low", geo.Point{Latitude: 0, Longitude: -181}, false},
		{"nan lat", geo.Point{Latitude: math.NaN(), Longitude: 0}, false},
		{"nan lng", geo.Point{Latitude: 0, Longitude: math.NaN()}, false},
		{"inf lat", geo.Point{Latitude: math.Inf(1), Longitude: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.point.Valid())
		})
	}
}

func TestBoundingBoxContainsCircle(t *testing.T) {
	box := geo.BoundingBox(nyc, 100)

	assert.Greater(t, box.North, nyc.Latitude)
	assert.Less(t, box.South, nyc.Latitude)
	assert.Greater(t, box.East, nyc.Longitude)
	assert.Less(t, box.West, nyc.Longitude)

	edges := []geo.Point{
		{Latitude: box.North, Longitude: nyc.Longitude},
		{Latitude: box.South, Longitude: nyc.Longitude},
		{Latitude: nyc.Latitude, Longitude: box.East},
		{Latitude: nyc.Latitude, Longitude: box.West},
	}
	for _, e := range edges {
		assert.InDelta(t, 100, geo.Distance(nyc, e), 0.5)
		assert.True(t, box.Contains(e))
	}

	assert.False(t, box.Contains(geo.Point{Latitude: 40.7218, Longitude: -74.0060}))
}
