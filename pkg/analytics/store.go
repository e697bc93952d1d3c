package analytics

import (
	"context"
	"time"

	"github.com/oncotrack-ai/platform/pkg/common/models"
)

// Store is the read surface of the hierarchical record store the engine
// computes over. Lookups return (nil, nil) when the record does not exist;
// the engine turns that into its own not-found errors. The engine never
// writes through this interface.
type Store interface {
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetLesion(ctx context.Context, id int64) (*models.Lesion, error)

	// Ancestor-join counts over a project's subtree.
	CountSubjects(ctx context.Context, projectID int64) (int64, error)
	CountLesions(ctx context.Context, projectID int64) (int64, error)
	CountMeasurements(ctx context.Context, projectID int64) (int64, error)

	// Group-and-count over the subtree, ordered by count descending.
	// Ties may arrive in any order; the engine applies the deterministic
	// tie-break itself.
	ModalityCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error)
	TimepointCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error)

	// MeasuredAtBounds returns the min and max measured_at over the subtree,
	// both nil when the subtree has no measurements.
	MeasuredAtBounds(ctx context.Context, projectID int64) (*time.Time, *time.Time, error)

	// AvgConfidence returns the mean confidence over the subtree, nil when
	// the subtree has no measurements.
	AvgConfidence(ctx context.Context, projectID int64) (*float64, error)

	// MeasurementsOfLesion returns a lesion's measurements ordered by
	// measured_at ascending.
	MeasurementsOfLesion(ctx context.Context, lesionID int64) ([]models.Measurement, error)
}
