package submissions

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/handlers"
	"github.com/JaimeStill/terra/pkg/pagination"
	"github.com/JaimeStill/terra/pkg/routes"
)

// Handler provides HTTP endpoints for submission operations.
type Handler struct {
	sys        System
	notifier   Notifier
	logger     *slog.Logger
	pagination pagination.Config
}

// ReprocessRequest names the operator asking for a rerun.
type ReprocessRequest struct {
	RequestedBy string `json:"requested_by"`
}

// ReprocessResponse acknowledges a queued rerun.
type ReprocessResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Notified     bool      `json:"notified"`
}

// NewHandler creates a Handler. notifier may be nil, in which case reprocessed
// submissions are only reset and picked up by whichever trigger runs next.
func NewHandler(
	sys System,
	notifier Notifier,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		notifier:   notifier,
		logger:     logger.With("handler", "submissions"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for submission endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "/{id}/reprocess", Handler: h.Reprocess},
		},
	}
}

// List returns a paginated list of submissions with optional query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	if filters.Status != nil {
		if _, err := ParseStatus(*filters.Status); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single submission by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	s, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Reprocess resets an errored submission to pending and notifies the pipeline.
// Any other current status yields 409.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	var req ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if _, err := h.sys.Reprocess(r.Context(), id, req.RequestedBy); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	notified := false
	if h.notifier != nil {
		if err := h.notifier.NotifyReprocess(r.Context(), id); err != nil {
			h.logger.WarnContext(r.Context(), "reprocess notification failed", "id", id, "error", err)
		} else {
			notified = true
		}
	}

	handlers.RespondJSON(w, http.StatusAccepted, ReprocessResponse{
		Success:      true,
		Message:      "Submission queued for reprocessing",
		SubmissionID: id,
		Notified:     notified,
	})
}
