package analytics

import (
	"sort"

	"github.com/oncotrack-ai/platform/pkg/common/models"
)

// sortCounts orders a grouped distribution by count descending. Equal counts
// fall back to value ascending with the null group last, so distributions are
// deterministic regardless of how the store orders ties. The result is never
// nil: an empty distribution is an empty slice.
func sortCounts(counts []models.CountByValue) []models.CountByValue {
	sorted := make([]models.CountByValue, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		if sorted[i].Value == nil {
			return false
		}
		if sorted[j].Value == nil {
			return true
		}
		return *sorted[i].Value < *sorted[j].Value
	})
	return sorted
}

// pctChange returns the percent change from baseline to latest, or nil when
// the baseline is not strictly positive. Growth from a zero baseline is left
// uncomputed on purpose: the ratio is undefined and no sentinel stands in
// for it.
func pctChange(baseline, latest float64) *float64 {
	if baseline <= 0 {
		return nil
	}
	change := (latest - baseline) / baseline * 100
	return &change
}
