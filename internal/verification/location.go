package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/terra/internal/hotspots"
	"github.com/JaimeStill/terra/pkg/geo"
)

// DefaultRadius is the geofence radius in meters.
const DefaultRadius = 100.0

var (
	ErrHotspotMissing    = errors.New("hotspot not found")
	ErrHotspotUnlocated  = errors.New("hotspot missing location data")
	ErrOutsideHotspot    = errors.New("location outside hotspot radius")
	ErrLocationUnchecked = errors.New("location could not be verified")
)

// HotspotFinder looks up hotspots by id.
type HotspotFinder interface {
	Find(ctx context.Context, id string) (*hotspots.Hotspot, error)
}

// LocationVerifier geofences a submission against its hotspot.
type LocationVerifier struct {
	finder HotspotFinder
	radius float64
	logger *slog.Logger
}

// NewLocationVerifier creates a verifier accepting points within radius meters.
func NewLocationVerifier(finder HotspotFinder, radius float64, logger *slog.Logger) *LocationVerifier {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &LocationVerifier{
		finder: finder,
		radius: radius,
		logger: logger.With("system", "location"),
	}
}

// Verify reports whether point lies within the radius of the hotspot.
// A nil hotspotID passes. Every failure fails closed: the result is false
// and the error names the reason.
func (v *LocationVerifier) Verify(ctx context.Context, point *geo.Point, hotspotID *string) (bool, error) {
	if hotspotID == nil || *hotspotID == "" {
		return true, nil
	}
	if point == nil || !point.Valid() {
		return false, fmt.Errorf("%w: invalid user location", ErrLocationUnchecked)
	}

	h, err := v.finder.Find(ctx, *hotspotID)
	if errors.Is(err, hotspots.ErrNotFound) {
		v.logger.WarnContext(ctx, "hotspot not found", "hotspot_id", *hotspotID)
		return false, fmt.Errorf("%w: %s", ErrHotspotMissing, *hotspotID)
	}
	if err != nil {
		v.logger.ErrorContext(ctx, "hotspot lookup failed", "hotspot_id", *hotspotID, "error", err)
		return false, fmt.Errorf("%w: %w", ErrLocationUnchecked, err)
	}
	if h.Location == nil || !h.Location.Valid() {
		v.logger.WarnContext(ctx, "hotspot missing location data", "hotspot_id", *hotspotID)
		return false, fmt.Errorf("%w: %s", ErrHotspotUnlocated, *hotspotID)
	}

	d := geo.Distance(*point, *h.Location)
	if d > v.radius {
		v.logger.InfoContext(ctx, "outside hotspot radius",
			"hotspot_id", *hotspotID,
			"distance_m", d,
			"radius_m", v.radius,
		)
		return false, fmt.Errorf("%w: %.1fm from %s", ErrOutsideHotspot, d, *hotspotID)
	}
	return true, nil
}
