package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/common/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/projects", h.handleCreateProject).Methods(http.MethodPost)
	r.HandleFunc("/projects", h.handleListProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects", h.handleDeleteAllProjects).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}", h.handleGetProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.handleUpdateProject).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}", h.handleDeleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}/deep", h.handleGetProjectTree).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/subjects", h.handleCreateSubject).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/subjects", h.handleListSubjects).Methods(http.MethodGet)

	r.HandleFunc("/subjects/{id}", h.handleGetSubject).Methods(http.MethodGet)
	r.HandleFunc("/subjects/{id}", h.handleUpdateSubject).Methods(http.MethodPatch)
	r.HandleFunc("/subjects/{id}", h.handleDeleteSubject).Methods(http.MethodDelete)
	r.HandleFunc("/subjects/{id}/lesions", h.handleCreateLesion).Methods(http.MethodPost)
	r.HandleFunc("/subjects/{id}/lesions", h.handleListLesions).Methods(http.MethodGet)

	r.HandleFunc("/lesions/{id}", h.handleGetLesion).Methods(http.MethodGet)
	r.HandleFunc("/lesions/{id}", h.handleUpdateLesion).Methods(http.MethodPatch)
	r.HandleFunc("/lesions/{id}", h.handleDeleteLesion).Methods(http.MethodDelete)
	r.HandleFunc("/lesions/{id}/measurements", h.handleCreateMeasurement).Methods(http.MethodPost)
	r.HandleFunc("/lesions/{id}/measurements", h.handleListMeasurements).Methods(http.MethodGet)

	r.HandleFunc("/measurements/{id}", h.handleGetMeasurement).Methods(http.MethodGet)
	r.HandleFunc("/measurements/{id}", h.handleUpdateMeasurement).Methods(http.MethodPatch)
	r.HandleFunc("/measurements/{id}", h.handleDeleteMeasurement).Methods(http.MethodDelete)

	r.HandleFunc("/audit", h.handleListAudit).Methods(http.MethodGet)
}

// --- Projects ---

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Name) > 100 {
		http.Error(w, "name is required and must be at most 100 characters", http.StatusBadRequest)
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to get project")
		return
	}
	if project == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleGetProjectTree(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	tree, err := h.service.GetProjectTree(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to load project tree")
		return
	}
	if tree == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Name != nil && (*req.Name == "" || len(*req.Name) > 100) {
		http.Error(w, "name must be between 1 and 100 characters", http.StatusBadRequest)
		return
	}
	project, err := h.service.UpdateProject(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err, "failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProject(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAllProjects(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAllProjects(r.Context()); err != nil {
		h.writeError(w, err, "failed to delete projects")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Subjects ---

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.SubjectCode == "" || len(req.SubjectCode) > 50 {
		http.Error(w, "subject_code is required and must be at most 50 characters", http.StatusBadRequest)
		return
	}
	if msg := validateAge(req.AgeAtDiagnosis); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	subject, err := h.service.CreateSubject(r.Context(), projectID, req)
	if err != nil {
		h.writeError(w, err, "failed to create subject")
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r)
	if !ok {
		return
	}
	subjects, err := h.service.ListSubjects(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err, "failed to list subjects")
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	subject, err := h.service.GetSubject(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to get subject")
		return
	}
	if subject == nil {
		http.Error(w, "subject not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *Handler) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.UpdateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if msg := validateAge(req.AgeAtDiagnosis); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	subject, err := h.service.UpdateSubject(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err, "failed to update subject")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *Handler) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSubject(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to delete subject")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Lesions ---

func (h *Handler) handleCreateLesion(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.CreateLesionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.LesionLabel == "" || len(req.LesionLabel) > 50 {
		http.Error(w, "lesion_label is required and must be at most 50 characters", http.StatusBadRequest)
		return
	}
	lesion, err := h.service.CreateLesion(r.Context(), subjectID, req)
	if err != nil {
		h.writeError(w, err, "failed to create lesion")
		return
	}
	writeJSON(w, http.StatusCreated, lesion)
}

func (h *Handler) handleListLesions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseID(w, r)
	if !ok {
		return
	}
	lesions, err := h.service.ListLesions(r.Context(), subjectID)
	if err != nil {
		h.writeError(w, err, "failed to list lesions")
		return
	}
	writeJSON(w, http.StatusOK, lesions)
}

func (h *Handler) handleGetLesion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	lesion, err := h.service.GetLesion(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to get lesion")
		return
	}
	if lesion == nil {
		http.Error(w, "lesion not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lesion)
}

func (h *Handler) handleUpdateLesion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.UpdateLesionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	lesion, err := h.service.UpdateLesion(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err, "failed to update lesion")
		return
	}
	writeJSON(w, http.StatusOK, lesion)
}

func (h *Handler) handleDeleteLesion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteLesion(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to delete lesion")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Measurements ---

func (h *Handler) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	lesionID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.CreateMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if msg := validateMeasurement(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	measurement, err := h.service.CreateMeasurement(r.Context(), lesionID, req)
	if err != nil {
		h.writeError(w, err, "failed to create measurement")
		return
	}
	writeJSON(w, http.StatusCreated, measurement)
}

func (h *Handler) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	lesionID, ok := parseID(w, r)
	if !ok {
		return
	}
	measurements, err := h.service.ListMeasurements(r.Context(), lesionID)
	if err != nil {
		h.writeError(w, err, "failed to list measurements")
		return
	}
	writeJSON(w, http.StatusOK, measurements)
}

func (h *Handler) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	measurement, err := h.service.GetMeasurement(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to get measurement")
		return
	}
	if measurement == nil {
		http.Error(w, "measurement not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, measurement)
}

func (h *Handler) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.UpdateMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.LongestDiameterMM != nil && *req.LongestDiameterMM < 0 {
		http.Error(w, "longest_diameter_mm must be non-negative", http.StatusBadRequest)
		return
	}
	if req.ShortAxisMM != nil && *req.ShortAxisMM < 0 {
		http.Error(w, "short_axis_mm must be non-negative", http.StatusBadRequest)
		return
	}
	if req.VolumeMM3 != nil && *req.VolumeMM3 < 0 {
		http.Error(w, "volume_mm3 must be non-negative", http.StatusBadRequest)
		return
	}
	if req.SUVMax != nil && *req.SUVMax < 0 {
		http.Error(w, "suv_max must be non-negative", http.StatusBadRequest)
		return
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		http.Error(w, "confidence must be between 0 and 1", http.StatusBadRequest)
		return
	}
	measurement, err := h.service.UpdateMeasurement(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err, "failed to update measurement")
		return
	}
	writeJSON(w, http.StatusOK, measurement)
}

func (h *Handler) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMeasurement(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to delete measurement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Audit ---

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	entries, err := h.service.ListAuditEntries(r.Context(), limit)
	if err != nil {
		h.writeError(w, err, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func validateMeasurement(req *models.CreateMeasurementRequest) string {
	if req.Timepoint == "" || len(req.Timepoint) > 30 {
		return "timepoint is required and must be at most 30 characters"
	}
	if req.LongestDiameterMM < 0 {
		return "longest_diameter_mm must be non-negative"
	}
	if req.ShortAxisMM < 0 {
		return "short_axis_mm must be non-negative"
	}
	if req.VolumeMM3 != nil && *req.VolumeMM3 < 0 {
		return "volume_mm3 must be non-negative"
	}
	if req.SUVMax != nil && *req.SUVMax < 0 {
		return "suv_max must be non-negative"
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		return "confidence must be between 0 and 1"
	}
	return ""
}

func validateAge(age *int) string {
	if age != nil && (*age < 0 || *age > 120) {
		return "age_at_diagnosis must be between 0 and 120"
	}
	return ""
}

func (h *Handler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrLesionNotFound),
		errors.Is(err, ErrMeasurementNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateProjectName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDuplicateSubjectCode),
		errors.Is(err, ErrDuplicateLesionLabel),
		errors.Is(err, ErrDuplicateTimepoint):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error(logMsg)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
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
