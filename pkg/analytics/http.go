package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/projects/{id}/analytics/summary", h.handleProjectSummary).Methods(http.MethodGet)
	r.HandleFunc("/lesions/{id}/analytics/change", h.handleLesionChange).Methods(http.MethodGet)
}

func (h *Handler) handleProjectSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ProjectSummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to compute project summary")
		http.Error(w, "failed to compute project summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleLesionChange(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	change, err := h.service.LesionChange(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLesionNotFound) {
			http.Error(w, "lesion not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to compute lesion change")
		http.Error(w, "failed to compute lesion change", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
