// Package hotspots provides read access to registered cleanup hotspots.
package hotspots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/JaimeStill/terra/pkg/geo"
	"github.com/JaimeStill/terra/pkg/query"
	"github.com/JaimeStill/terra/pkg/repository"
)

var (
	ErrNotFound     = errors.New("hotspot not found")
	ErrDuplicate    = errors.New("hotspot already exists")
	ErrInvalidPoint = errors.New("invalid query point")
)

// MapHTTPStatus maps hotspot domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPoint):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Hotspot is a registered cleanup site. Location is nil when the hotspot was
// registered without coordinates.
type Hotspot struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Location *geo.Point `json:"location,omitempty"`
}

// Nearby pairs a hotspot with its distance from a query point in meters.
type Nearby struct {
	Hotspot
	Distance float64 `json:"distance_m"`
}

// System defines read operations over hotspots.
type System interface {
	Handler() *Handler

	Find(ctx context.Context, id string) (*Hotspot, error)

	// Near returns hotspots within radius meters of p, closest first.
	Near(ctx context.Context, p geo.Point, radius float64) ([]Nearby, error)
}

var projection = query.
	NewProjectionMap("public", "hotspots", "h").
	Project("id", "ID").
	Project("name", "Name").
	Project("latitude", "Latitude").
	Project("longitude", "Longitude")

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Postgres-backed hotspot System.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "hotspots"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Find(ctx context.Context, id string) (*Hotspot, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	h, err := repository.QueryOne(ctx, r.db, q, args, scanHotspot)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &h, nil
}

func (r *repo) Near(ctx context.Context, p geo.Point, radius float64) ([]Nearby, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, p)
	}

	box := geo.BoundingBox(p, radius)
	q, args := query.NewBuilder(projection).
		WhereBetween("Latitude", box.South, box.North).
		WhereBetween("Longitude", box.West, box.East).
		Build()
	candidates, err := repository.QueryMany(ctx, r.db, q, args, scanHotspot)
	if err != nil {
		return nil, fmt.Errorf("query hotspots near %v: %w", p, err)
	}

	out := make([]Nearby, 0, len(candidates))
	for _, h := range candidates {
		if h.Location == nil {
			continue
		}
		d := geo.Distance(p, *h.Location)
		if d <= radius {
			out = append(out, Nearby{Hotspot: h, Distance: d})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func scanHotspot(s repository.Scanner) (Hotspot, error) {
	var (
		h        Hotspot
		lat, lng sql.NullFloat64
	)
	if err := s.Scan(&h.ID, &h.Name, &lat, &lng); err != nil {
		return h, err
	}
	if lat.Valid && lng.Valid {
		h.Location = &geo.Point{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return h, nil
}
