package handlers

import (
	"net/http"

	"github.com/pwannenmacher/review-flow/internal/service"
)

// HistoryHandler exposes the event log of an assignment, which doubles as
// its audit trail
type HistoryHandler struct {
	svc *service.AssignmentService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(svc *service.AssignmentService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// ListEvents lists the events of an assignment with pagination
func (h *HistoryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := h.svc.AssignmentHistory(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

// GetReviewEdit reports the progress of an answer edit
func (h *HistoryHandler) GetReviewEdit(w http.ResponseWriter, r *http.Request) {
	saga, err := h.svc.ReviewEditStatus(r.Context(), r.PathValue("editID"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saga)
}
