package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/votepay/backend/internal/models"
	"github.com/votepay/backend/internal/services"
)

// ResultsReader serves live vote results
type ResultsReader interface {
	GetResults(ctx context.Context, eventID uuid.UUID) (*models.EventResults, error)
}

type ResultsHandler struct {
	results ResultsReader
}

func NewResultsHandler(results ResultsReader) *ResultsHandler {
	return &ResultsHandler{results: results}
}

// GetResults returns the live tally for an event
// @Summary Live event results
// @Description Vote totals per candidate, served from a short-lived cache
// @Tags Results
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {object} models.EventResults
// @Failure 400 {object} services.ErrorResponse
// @Router /events/{eventId}/results [get]
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid event ID", http.StatusBadRequest, nil)
		return
	}

	results, err := h.results.GetResults(r.Context(), eventID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=5")
	services.SendJSON(w, http.StatusOK, results)
}
