package registry

import (
	"testing"

	"github.com/oncotrack-ai/platform/pkg/common/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestValidateMeasurement(t *testing.T) {
	valid := models.CreateMeasurementRequest{
		Timepoint:         "baseline",
		LongestDiameterMM: 20,
		ShortAxisMM:       12,
	}
	if msg := validateMeasurement(&valid); msg != "" {
		t.Fatalf("expected valid request, got %q", msg)
	}

	tests := []struct {
		name   string
		mutate func(*models.CreateMeasurementRequest)
	}{
		{"missing timepoint", func(r *models.CreateMeasurementRequest) { r.Timepoint = "" }},
		{"negative longest diameter", func(r *models.CreateMeasurementRequest) { r.LongestDiameterMM = -1 }},
		{"negative short axis", func(r *models.CreateMeasurementRequest) { r.ShortAxisMM = -0.5 }},
		{"negative volume", func(r *models.CreateMeasurementRequest) { r.VolumeMM3 = floatPtr(-5) }},
		{"negative suv max", func(r *models.CreateMeasurementRequest) { r.SUVMax = floatPtr(-1) }},
		{"confidence below range", func(r *models.CreateMeasurementRequest) { r.Confidence = floatPtr(-0.1) }},
		{"confidence above range", func(r *models.CreateMeasurementRequest) { r.Confidence = floatPtr(1.5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if msg := validateMeasurement(&req); msg == "" {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestValidateMeasurementAllowsZeroDiameter(t *testing.T) {
	// A diameter of exactly 0 is a legitimate recorded value, not invalid
	// input; only negatives are rejected.
	req := models.CreateMeasurementRequest{
		Timepoint:         "baseline",
		LongestDiameterMM: 0,
		ShortAxisMM:       0,
	}
	if msg := validateMeasurement(&req); msg != "" {
		t.Fatalf("expected zero diameters to validate, got %q", msg)
	}
}

func TestValidateMeasurementOptionalFieldsAbsent(t *testing.T) {
	// Absent volume_mm3 and suv_max are valid; only present negatives fail.
	req := models.CreateMeasurementRequest{
		Timepoint:         "baseline",
		LongestDiameterMM: 20,
		ShortAxisMM:       12,
	}
	if msg := validateMeasurement(&req); msg != "" {
		t.Fatalf("expected absent optional fields to validate, got %q", msg)
	}
	req.VolumeMM3 = floatPtr(0)
	req.SUVMax = floatPtr(0)
	if msg := validateMeasurement(&req); msg != "" {
		t.Fatalf("expected zero optional fields to validate, got %q", msg)
	}
}

func intPtr(v int) *int { return &v }

func TestValidateAge(t *testing.T) {
	tests := []struct {
		name   string
		age    *int
		wantOK bool
	}{
		{"absent", nil, true},
		{"zero", intPtr(0), true},
		{"upper bound", intPtr(120), true},
		{"negative", intPtr(-1), false},
		{"above upper bound", intPtr(121), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validateAge(tt.age)
			if tt.wantOK && msg != "" {
				t.Fatalf("expected valid age, got %q", msg)
			}
			if !tt.wantOK && msg == "" {
				t.Fatal("expected validation failure")
			}
		})
	}
}
