package stats

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/terra/internal/badges"
	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/maintenance"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/pkg/handlers"
	"github.com/JaimeStill/terra/pkg/routes"
)

// Handler provides HTTP endpoints for statistics.
type Handler struct {
	profiles    Profiles
	submissions Submissions
	reductions  Reductions
	snapshots   Snapshots
	catalog     *badges.Catalog
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler. A nil catalog means badges.Default.
func NewHandler(
	profiles Profiles,
	subs Submissions,
	reductions Reductions,
	snapshots Snapshots,
	catalog *badges.Catalog,
	logger *slog.Logger,
) *Handler {
	if catalog == nil {
		catalog = badges.Default()
	}
	return &Handler{
		profiles:    profiles,
		submissions: subs,
		reductions:  reductions,
		snapshots:   snapshots,
		catalog:     catalog,
		logger:      logger.With("handler", "stats"),
		now:         time.Now,
	}
}

// Routes returns the route groups for stats endpoints. User stats hang off
// /users while the aggregate views live under /stats.
func (h *Handler) Routes() []routes.Group {
	return []routes.Group{
		{
			Prefix: "/users",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/{id}/stats", Handler: h.User},
			},
		},
		{
			Prefix: "/stats",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/verification", Handler: h.Verification},
				{Method: "GET", Pattern: "/analytics", Handler: h.Analytics},
			},
		},
	}
}

// User returns the profile and recent submissions for the path user id.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		handlers.RespondError(w, h.logger, ledger.MapHTTPStatus(err), err)
		return
	}

	recent, err := h.submissions.Recent(r.Context(), userID, RecentLimit)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	if recent == nil {
		recent = []submissions.Submission{}
	}

	handlers.RespondJSON(w, http.StatusOK, UserStats{
		Profile:           profile,
		Badges:            h.catalog.Resolve(profile.Badges),
		RecentSubmissions: recent,
	})
}

// Verification returns status counts and the average effectiveness
// recorded in the audit log over the last week.
func (h *Handler) Verification(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()

	counts, err := h.submissions.Counts(r.Context(), now)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	avg, err := h.reductions.AverageReduction(r.Context(), now.Add(-EffectivenessWindow))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, VerificationStats{
		Counts:               *counts,
		AverageEffectiveness: avg,
		GeneratedAt:          now,
	})
}

// Analytics returns the latest rollup snapshot.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Latest(r.Context())
	if errors.Is(err, maintenance.ErrNoSnapshot) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, err)
		return
	}
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}
