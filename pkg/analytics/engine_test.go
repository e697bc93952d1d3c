package analytics

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/oncotrack-ai/platform/pkg/common/models"
)

// fakeStore is an in-memory Store over a small fixture tree. Aggregates are
// computed naively on every call, and grouped counts are returned in
// insertion order so tests exercise the engine's own tie-breaking.
type fakeStore struct {
	projects     map[int64]models.Project
	subjects     map[int64]models.Subject
	lesions      map[int64]models.Lesion
	measurements []models.Measurement

	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: map[int64]models.Project{},
		subjects: map[int64]models.Subject{},
		lesions:  map[int64]models.Lesion{},
	}
}

func (f *fakeStore) lesionProject(lesionID int64) int64 {
	lesion, ok := f.lesions[lesionID]
	if !ok {
		return 0
	}
	return f.subjects[lesion.SubjectID].ProjectID
}

func (f *fakeStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if project, ok := f.projects[id]; ok {
		return &project, nil
	}
	return nil, nil
}

func (f *fakeStore) GetLesion(ctx context.Context, id int64) (*models.Lesion, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if lesion, ok := f.lesions[id]; ok {
		return &lesion, nil
	}
	return nil, nil
}

func (f *fakeStore) CountSubjects(ctx context.Context, projectID int64) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	var count int64
	for _, subject := range f.subjects {
		if subject.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountLesions(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	for id := range f.lesions {
		if f.lesionProject(id) == projectID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountMeasurements(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	for _, m := range f.measurements {
		if f.lesionProject(m.LesionID) == projectID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ModalityCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error) {
	counts := []models.CountByValue{}
	index := map[string]int{}
	var lesionIDs []int64
	for id := range f.lesions {
		lesionIDs = append(lesionIDs, id)
	}
	sort.Slice(lesionIDs, func(i, j int) bool { return lesionIDs[i] < lesionIDs[j] })
	for _, id := range lesionIDs {
		if f.lesionProject(id) != projectID {
			continue
		}
		key := "<nil>"
		if m := f.lesions[id].Modality; m != nil {
			key = *m
		}
		if at, ok := index[key]; ok {
			counts[at].Count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, models.CountByValue{Value: f.lesions[id].Modality, Count: 1})
	}
	return counts, nil
}

func (f *fakeStore) TimepointCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error) {
	counts := []models.CountByValue{}
	index := map[string]int{}
	for _, m := range f.measurements {
		if f.lesionProject(m.LesionID) != projectID {
			continue
		}
		if at, ok := index[m.Timepoint]; ok {
			counts[at].Count++
			continue
		}
		timepoint := m.Timepoint
		index[timepoint] = len(counts)
		counts = append(counts, models.CountByValue{Value: &timepoint, Count: 1})
	}
	return counts, nil
}

func (f *fakeStore) MeasuredAtBounds(ctx context.Context, projectID int64) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	for _, m := range f.measurements {
		if f.lesionProject(m.LesionID) != projectID {
			continue
		}
		at := m.MeasuredAt
		if start == nil || at.Before(*start) {
			start = &at
		}
		if end == nil || at.After(*end) {
			end = &at
		}
	}
	return start, end, nil
}

func (f *fakeStore) AvgConfidence(ctx context.Context, projectID int64) (*float64, error) {
	var sum float64
	var count int64
	for _, m := range f.measurements {
		if f.lesionProject(m.LesionID) == projectID {
			sum += m.Confidence
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	avg := sum / float64(count)
	return &avg, nil
}

func (f *fakeStore) MeasurementsOfLesion(ctx context.Context, lesionID int64) ([]models.Measurement, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var result []models.Measurement
	for _, m := range f.measurements {
		if m.LesionID == lesionID {
			result = append(result, m)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].MeasuredAt.Before(result[j].MeasuredAt) })
	return result, nil
}

func strPtr(s string) *string { return &s }

func at(day int) time.Time {
	return time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC)
}

func (f *fakeStore) addMeasurement(lesionID int64, timepoint string, measuredAt time.Time, longest, confidence float64) {
	f.measurements = append(f.measurements, models.Measurement{
		ID:                int64(len(f.measurements) + 1),
		LesionID:          lesionID,
		Timepoint:         timepoint,
		MeasuredAt:        measuredAt,
		LongestDiameterMM: longest,
		ShortAxisMM:       longest * 0.6,
		Confidence:        confidence,
	})
}

// scenarioA builds a project with 2 subjects, 1 lesion each, and
// baseline/week_6 measurements of 20mm and 24mm per lesion.
func scenarioA() *fakeStore {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1, Name: "Trial A"}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1, SubjectCode: "S001"}
	store.subjects[11] = models.Subject{ID: 11, ProjectID: 1, SubjectCode: "S002"}
	store.lesions[100] = models.Lesion{ID: 100, SubjectID: 10, LesionLabel: "T1", Modality: strPtr("CT")}
	store.lesions[101] = models.Lesion{ID: 101, SubjectID: 11, LesionLabel: "T1", Modality: strPtr("MRI")}
	store.addMeasurement(100, "baseline", at(1), 20, 0.9)
	store.addMeasurement(100, "week_6", at(43), 24, 0.8)
	store.addMeasurement(101, "baseline", at(2), 20, 0.95)
	store.addMeasurement(101, "week_6", at(44), 24, 0.85)
	return store
}

func TestProjectSummaryMissingProject(t *testing.T) {
	engine := NewEngine(newFakeStore())
	_, err := engine.ProjectSummary(context.Background(), 42)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectSummaryEmptyProject(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1, Name: "Empty"}

	engine := NewEngine(store)
	summary, err := engine.ProjectSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Subjects != 0 || summary.Lesions != 0 || summary.Measurements != 0 {
		t.Fatalf("expected zero counts, got %+v", summary)
	}
	if summary.Modalities == nil || len(summary.Modalities) != 0 {
		t.Fatalf("expected empty modality distribution, got %v", summary.Modalities)
	}
	if summary.Timepoints == nil || len(summary.Timepoints) != 0 {
		t.Fatalf("expected empty timepoint distribution, got %v", summary.Timepoints)
	}
	if summary.MeasuredAtRange.Start != nil || summary.MeasuredAtRange.End != nil {
		t.Fatalf("expected absent date range, got %+v", summary.MeasuredAtRange)
	}
	if summary.AvgConfidence != nil {
		t.Fatalf("expected absent avg confidence, got %v", *summary.AvgConfidence)
	}
}

func TestProjectSummarySubjectsWithoutLesions(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1, Name: "No lesions"}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1, SubjectCode: "S001"}
	store.subjects[11] = models.Subject{ID: 11, ProjectID: 1, SubjectCode: "S002"}

	engine := NewEngine(store)
	summary, err := engine.ProjectSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Subjects != 2 {
		t.Fatalf("expected 2 subjects, got %d", summary.Subjects)
	}
	if summary.Lesions != 0 || len(summary.Modalities) != 0 {
		t.Fatalf("expected no lesions and empty modalities, got %d lesions, %v", summary.Lesions, summary.Modalities)
	}
	if summary.AvgConfidence != nil {
		t.Fatal("expected absent avg confidence")
	}
}

func TestProjectSummaryScenarioA(t *testing.T) {
	engine := NewEngine(scenarioA())
	summary, err := engine.ProjectSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Subjects != 2 || summary.Lesions != 2 || summary.Measurements != 4 {
		t.Fatalf("unexpected counts: %+v", summary)
	}

	var modalitySum, timepointSum int64
	for _, entry := range summary.Modalities {
		modalitySum += entry.Count
	}
	for _, entry := range summary.Timepoints {
		timepointSum += entry.Count
	}
	if modalitySum != summary.Lesions {
		t.Fatalf("modality counts sum to %d, want %d", modalitySum, summary.Lesions)
	}
	if timepointSum != summary.Measurements {
		t.Fatalf("timepoint counts sum to %d, want %d", timepointSum, summary.Measurements)
	}

	if summary.MeasuredAtRange.Start == nil || summary.MeasuredAtRange.End == nil {
		t.Fatal("expected both range bounds present")
	}
	if !summary.MeasuredAtRange.Start.Equal(at(1)) || !summary.MeasuredAtRange.End.Equal(at(44)) {
		t.Fatalf("unexpected range: %v - %v", summary.MeasuredAtRange.Start, summary.MeasuredAtRange.End)
	}
	if summary.MeasuredAtRange.Start.After(*summary.MeasuredAtRange.End) {
		t.Fatal("range start must not be after range end")
	}

	if summary.AvgConfidence == nil {
		t.Fatal("expected avg confidence present")
	}
	want := (0.9 + 0.8 + 0.95 + 0.85) / 4
	if diff := *summary.AvgConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("avg confidence = %v, want %v", *summary.AvgConfidence, want)
	}
}

func TestProjectSummaryNullModalityGroup(t *testing.T) {
	store := scenarioA()
	// A third lesion with no modality recorded joins the distribution as its
	// own group.
	store.subjects[12] = models.Subject{ID: 12, ProjectID: 1, SubjectCode: "S003"}
	store.lesions[102] = models.Lesion{ID: 102, SubjectID: 12, LesionLabel: "T1"}

	engine := NewEngine(store)
	summary, err := engine.ProjectSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Lesions != 3 || len(summary.Modalities) != 3 {
		t.Fatalf("expected 3 lesions in 3 modality groups, got %d lesions, %v", summary.Lesions, summary.Modalities)
	}

	// All groups have count 1; the tie-break puts named values first in
	// ascending order and the null group last.
	if summary.Modalities[0].Value == nil || *summary.Modalities[0].Value != "CT" {
		t.Fatalf("expected CT first, got %v", summary.Modalities[0].Value)
	}
	if summary.Modalities[1].Value == nil || *summary.Modalities[1].Value != "MRI" {
		t.Fatalf("expected MRI second, got %v", summary.Modalities[1].Value)
	}
	if summary.Modalities[2].Value != nil {
		t.Fatalf("expected null group last, got %v", *summary.Modalities[2].Value)
	}

	var sum int64
	for _, entry := range summary.Modalities {
		sum += entry.Count
	}
	if sum != summary.Lesions {
		t.Fatalf("modality counts sum to %d, want %d", sum, summary.Lesions)
	}
}

func TestProjectSummaryStoreErrorPropagates(t *testing.T) {
	store := scenarioA()
	store.failWith = errors.New("connection reset")

	engine := NewEngine(store)
	if _, err := engine.ProjectSummary(context.Background(), 1); err == nil || err.Error() != "connection reset" {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestLesionChangeMissingLesion(t *testing.T) {
	engine := NewEngine(newFakeStore())
	_, err := engine.LesionChange(context.Background(), 7)
	if !errors.Is(err, ErrLesionNotFound) {
		t.Fatalf("expected ErrLesionNotFound, got %v", err)
	}
}

func TestLesionChangeNoMeasurements(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1}
	store.lesions[100] = models.Lesion{ID: 100, SubjectID: 10, LesionLabel: "T1"}

	engine := NewEngine(store)
	change, err := engine.LesionChange(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.LesionID != 100 {
		t.Fatalf("expected lesion id echoed, got %d", change.LesionID)
	}
	if change.BaselineMeasuredAt != nil || change.BaselineLongestMM != nil ||
		change.LatestMeasuredAt != nil || change.LatestLongestMM != nil ||
		change.PctChangeLongest != nil {
		t.Fatalf("expected all optional fields absent, got %+v", change)
	}
}

func TestLesionChangeSingleMeasurement(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1}
	store.lesions[100] = models.Lesion{ID: 100, SubjectID: 10, LesionLabel: "T1"}
	store.addMeasurement(100, "baseline", at(5), 18.5, 0.9)

	engine := NewEngine(store)
	change, err := engine.LesionChange(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.BaselineMeasuredAt == nil || !change.BaselineMeasuredAt.Equal(at(5)) {
		t.Fatalf("unexpected baseline timestamp: %v", change.BaselineMeasuredAt)
	}
	if change.LatestMeasuredAt == nil || !change.LatestMeasuredAt.Equal(at(5)) {
		t.Fatalf("unexpected latest timestamp: %v", change.LatestMeasuredAt)
	}
	if *change.BaselineLongestMM != 18.5 || *change.LatestLongestMM != 18.5 {
		t.Fatalf("expected identical diameters, got %v and %v", *change.BaselineLongestMM, *change.LatestLongestMM)
	}
	if change.PctChangeLongest == nil || *change.PctChangeLongest != 0 {
		t.Fatalf("expected pct change 0, got %v", change.PctChangeLongest)
	}
}

func TestLesionChangeScenarioA(t *testing.T) {
	engine := NewEngine(scenarioA())
	for _, lesionID := range []int64{100, 101} {
		change, err := engine.LesionChange(context.Background(), lesionID)
		if err != nil {
			t.Fatalf("unexpected error for lesion %d: %v", lesionID, err)
		}
		if change.PctChangeLongest == nil || *change.PctChangeLongest != 20.0 {
			t.Fatalf("lesion %d: expected pct change 20.0, got %v", lesionID, change.PctChangeLongest)
		}
		if *change.BaselineLongestMM != 20 || *change.LatestLongestMM != 24 {
			t.Fatalf("lesion %d: unexpected diameters %v -> %v", lesionID, *change.BaselineLongestMM, *change.LatestLongestMM)
		}
	}
}

func TestLesionChangeZeroBaseline(t *testing.T) {
	store := newFakeStore()
	store.projects[1] = models.Project{ID: 1}
	store.subjects[10] = models.Subject{ID: 10, ProjectID: 1}
	store.lesions[100] = models.Lesion{ID: 100, SubjectID: 10, LesionLabel: "T1"}
	store.addMeasurement(100, "baseline", at(1), 0, 0.9)
	store.addMeasurement(100, "week_6", at(43), 15, 0.9)

	engine := NewEngine(store)
	change, err := engine.LesionChange(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.PctChangeLongest != nil {
		t.Fatalf("expected absent pct change for zero baseline, got %v", *change.PctChangeLongest)
	}
	if change.BaselineLongestMM == nil || *change.BaselineLongestMM != 0 {
		t.Fatalf("expected baseline diameter 0 echoed, got %v", change.BaselineLongestMM)
	}
	if change.LatestLongestMM == nil || *change.LatestLongestMM != 15 {
		t.Fatalf("expected latest diameter 15 echoed, got %v", change.LatestLongestMM)
	}
}

func TestLesionChangeStoreErrorPropagates(t *testing.T) {
	store := scenarioA()
	store.failWith = errors.New("connection reset")

	engine := NewEngine(store)
	if _, err := engine.LesionChange(context.Background(), 100); err == nil || err.Error() != "connection reset" {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
