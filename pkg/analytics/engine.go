package analytics

import (
	"context"
	"errors"

	"github.com/oncotrack-ai/platform/pkg/common/models"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrLesionNotFound  = errors.New("lesion not found")
)

// Engine computes rollup and longitudinal change analytics over a Store.
// It is stateless: every call reads through the store handle it was built
// with and holds nothing between calls.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// ProjectSummary rolls up a project's subtree: entity counts, modality and
// timepoint distributions, the measured_at range, and the mean confidence.
// A project with no data yields zero counts and absent aggregates, which is
// a valid result; only a missing project is an error.
func (e *Engine) ProjectSummary(ctx context.Context, projectID int64) (models.ProjectSummary, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return models.ProjectSummary{}, err
	}
	if project == nil {
		return models.ProjectSummary{}, ErrProjectNotFound
	}

	summary := models.ProjectSummary{ProjectID: projectID}

	if summary.Subjects, err = e.store.CountSubjects(ctx, projectID); err != nil {
		return models.ProjectSummary{}, err
	}
	if summary.Lesions, err = e.store.CountLesions(ctx, projectID); err != nil {
		return models.ProjectSummary{}, err
	}
	if summary.Measurements, err = e.store.CountMeasurements(ctx, projectID); err != nil {
		return models.ProjectSummary{}, err
	}

	modalities, err := e.store.ModalityCounts(ctx, projectID)
	if err != nil {
		return models.ProjectSummary{}, err
	}
	summary.Modalities = sortCounts(modalities)

	timepoints, err := e.store.TimepointCounts(ctx, projectID)
	if err != nil {
		return models.ProjectSummary{}, err
	}
	summary.Timepoints = sortCounts(timepoints)

	start, end, err := e.store.MeasuredAtBounds(ctx, projectID)
	if err != nil {
		return models.ProjectSummary{}, err
	}
	summary.MeasuredAtRange = models.DateRange{Start: start, End: end}

	if summary.AvgConfidence, err = e.store.AvgConfidence(ctx, projectID); err != nil {
		return models.ProjectSummary{}, err
	}

	return summary, nil
}

// LesionChange compares a lesion's earliest and latest measurements. A lesion
// with no measurements yields a result with every optional field absent. The
// percent change is computed only against a strictly positive baseline
// diameter; a baseline of exactly zero leaves the field absent rather than
// producing an undefined ratio.
func (e *Engine) LesionChange(ctx context.Context, lesionID int64) (models.LesionChange, error) {
	lesion, err := e.store.GetLesion(ctx, lesionID)
	if err != nil {
		return models.LesionChange{}, err
	}
	if lesion == nil {
		return models.LesionChange{}, ErrLesionNotFound
	}

	change := models.LesionChange{LesionID: lesionID}

	measurements, err := e.store.MeasurementsOfLesion(ctx, lesionID)
	if err != nil {
		return models.LesionChange{}, err
	}
	if len(measurements) == 0 {
		return change, nil
	}

	baseline := measurements[0]
	latest := measurements[len(measurements)-1]

	baselineAt := baseline.MeasuredAt
	baselineMM := baseline.LongestDiameterMM
	latestAt := latest.MeasuredAt
	latestMM := latest.LongestDiameterMM

	change.BaselineMeasuredAt = &baselineAt
	change.BaselineLongestMM = &baselineMM
	change.LatestMeasuredAt = &latestAt
	change.LatestLongestMM = &latestMM
	change.PctChangeLongest = pctChange(baselineMM, latestMM)

	return change, nil
}
