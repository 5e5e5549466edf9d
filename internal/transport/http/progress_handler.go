package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"practice-engine/internal/app"
	"practice-engine/internal/domain"
)

// ProgressHandler exposes the record's read accessors (total, max, per-topic
// scores) for presentation layers.
type ProgressHandler struct {
	service *app.PracticeService
}

func NewProgressHandler(service *app.PracticeService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	assignmentID := r.URL.Query().Get("assignmentId")
	if learnerID == "" || assignmentID == "" {
		http.Error(w, "missing learnerId or assignmentId", http.StatusBadRequest)
		return
	}

	progress, err := h.service.Progress(r.Context(), learnerID, assignmentID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(progress)
}
