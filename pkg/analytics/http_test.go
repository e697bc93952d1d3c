package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/common/models"
)

func newTestRouter(store Store) *mux.Router {
	logger.Init()
	service := NewService(NewEngine(store), nil, 0)
	router := mux.NewRouter()
	NewHandler(service).Register(router)
	return router
}

func TestSummaryEndpointMissingProject(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/projects/99/analytics/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSummaryEndpointInvalidID(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/projects/abc/analytics/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSummaryEndpointEmptyProjectBody(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1, Name: "Empty"}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/projects/1/analytics/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}

	// Absent aggregates serialize as explicit nulls, empty distributions as
	// empty arrays.
	if string(payload["avg_confidence"]) != "null" {
		t.Fatalf("expected avg_confidence null, got %s", payload["avg_confidence"])
	}
	if string(payload["modalities"]) != "[]" {
		t.Fatalf("expected empty modalities array, got %s", payload["modalities"])
	}
	var dateRange map[string]json.RawMessage
	if err := json.Unmarshal(payload["measured_at_range"], &dateRange); err != nil {
		t.Fatalf("invalid measured_at_range: %v", err)
	}
	if string(dateRange["start"]) != "null" || string(dateRange["end"]) != "null" {
		t.Fatalf("expected null range bounds, got %s / %s", dateRange["start"], dateRange["end"])
	}
}

func TestChangeEndpointEmptyLesionBody(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1}
	store.lesions[100] = models.Lesion{ID: 100, SubjectID: 10, LesionLabel: "T1"}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/lesions/100/analytics/change", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	for _, field := range []string{"baseline_measured_at", "baseline_longest_mm", "latest_measured_at", "latest_longest_mm", "pct_change_longest"} {
		raw, ok := payload[field]
		if !ok {
			t.Fatalf("expected field %q present in payload", field)
		}
		if string(raw) != "null" {
			t.Fatalf("expected %q to be null, got %s", field, raw)
		}
	}
	if string(payload["lesion_id"]) != "100" {
		t.Fatalf("expected lesion_id echoed, got %s", payload["lesion_id"])
	}
}

func TestChangeEndpointMissingLesion(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/lesions/5/analytics/change", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestChangeEndpointScenarioA(t *testing.T) {
	router := newTestRouter(scenarioA())

	req := httptest.NewRequest(http.MethodGet, "/lesions/100/analytics/change", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var change models.LesionChange
	if err := json.Unmarshal(rec.Body.Bytes(), &change); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if change.PctChangeLongest == nil || *change.PctChangeLongest != 20.0 {
		t.Fatalf("expected pct change 20.0, got %v", change.PctChangeLongest)
	}
}
