package hotspots

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/JaimeStill/terra/pkg/geo"
	"github.com/JaimeStill/terra/pkg/handlers"
	"github.com/JaimeStill/terra/pkg/routes"
)

// DefaultNearRadius is the search radius in meters when none is given.
const DefaultNearRadius = 1000.0

// MaxNearRadius bounds the search radius in meters.
const MaxNearRadius = 50000.0

// Handler provides HTTP endpoints for hotspot lookups.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "hotspots"),
	}
}

// Routes returns the route group definition for hotspot endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/hotspots",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/near", Handler: h.Near},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
		},
	}
}

// Find returns a single hotspot by id.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	hs, err := h.sys.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, hs)
}

// Near returns hotspots around ?lat=&lng=, closest first. ?radius= is in
// meters.
func (h *Handler) Near(w http.ResponseWriter, r *http.Request) {
	p, radius, err := nearQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	found, err := h.sys.Near(r.Context(), p, radius)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, found)
}

func nearQuery(values url.Values) (geo.Point, float64, error) {
	var p geo.Point

	lat, err := strconv.ParseFloat(values.Get("lat"), 64)
	if err != nil {
		return p, 0, fmt.Errorf("%w: lat", ErrInvalidPoint)
	}
	lng, err := strconv.ParseFloat(values.Get("lng"), 64)
	if err != nil {
		return p, 0, fmt.Errorf("%w: lng", ErrInvalidPoint)
	}
	p = geo.Point{Latitude: lat, Longitude: lng}

	radius := DefaultNearRadius
	if v := values.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 || radius > MaxNearRadius {
			return p, 0, fmt.Errorf("radius must be between 0 and %.0f meters", MaxNearRadius)
		}
	}

	return p, radius, nil
}
