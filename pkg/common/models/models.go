package models

import (
	"time"
)

// Core registry entities. The hierarchy is strict: a project owns subjects,
// a subject owns lesions, a lesion owns measurements. Deleting a parent
// cascades to every descendant at the database level.

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Subject struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	SubjectCode    string    `json:"subject_code"`
	Sex            *string   `json:"sex"`
	AgeAtDiagnosis *int      `json:"age_at_diagnosis"`
	CancerType     *string   `json:"cancer_type"`
	Stage          *string   `json:"stage"`
	CreatedAt      time.Time `json:"created_at"`
}

type Lesion struct {
	ID           int64     `json:"id"`
	SubjectID    int64     `json:"subject_id"`
	LesionLabel  string    `json:"lesion_label"`
	AnatomicSite *string   `json:"anatomic_site"`
	Laterality   *string   `json:"laterality"`
	Modality     *string   `json:"modality"`
	CreatedAt    time.Time `json:"created_at"`
}

type Measurement struct {
	ID                int64     `json:"id"`
	LesionID          int64     `json:"lesion_id"`
	Timepoint         string    `json:"timepoint"`
	MeasuredAt        time.Time `json:"measured_at"`
	LongestDiameterMM float64   `json:"longest_diameter_mm"`
	ShortAxisMM       float64   `json:"short_axis_mm"`
	VolumeMM3         *float64  `json:"volume_mm3"`
	MeanHU            *float64  `json:"mean_hu"`
	SUVMax            *float64  `json:"suv_max"`
	Reviewer          *string   `json:"reviewer"`
	Confidence        float64   `json:"confidence"`
}

// Deep read: a project with its full subtree attached.

type LesionTree struct {
	Lesion
	Measurements []Measurement `json:"measurements"`
}

type SubjectTree struct {
	Subject
	Lesions []LesionTree `json:"lesions"`
}

type ProjectTree struct {
	Project
	Subjects []SubjectTree `json:"subjects"`
}

// Create / patch payloads. Patch fields are applied only when present.

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateSubjectRequest struct {
	SubjectCode    string  `json:"subject_code"`
	Sex            *string `json:"sex,omitempty"`
	AgeAtDiagnosis *int    `json:"age_at_diagnosis,omitempty"`
	CancerType     *string `json:"cancer_type,omitempty"`
	Stage          *string `json:"stage,omitempty"`
}

type UpdateSubjectRequest struct {
	SubjectCode    *string `json:"subject_code,omitempty"`
	Sex            *string `json:"sex,omitempty"`
	AgeAtDiagnosis *int    `json:"age_at_diagnosis,omitempty"`
	CancerType     *string `json:"cancer_type,omitempty"`
	Stage          *string `json:"stage,omitempty"`
}

type CreateLesionRequest struct {
	LesionLabel  string  `json:"lesion_label"`
	AnatomicSite *string `json:"anatomic_site,omitempty"`
	Laterality   *string `json:"laterality,omitempty"`
	Modality     *string `json:"modality,omitempty"`
}

type UpdateLesionRequest struct {
	LesionLabel  *string `json:"lesion_label,omitempty"`
	AnatomicSite *string `json:"anatomic_site,omitempty"`
	Laterality   *string `json:"laterality,omitempty"`
	Modality     *string `json:"modality,omitempty"`
}

type CreateMeasurementRequest struct {
	Timepoint         string     `json:"timepoint"`
	MeasuredAt        *time.Time `json:"measured_at,omitempty"`
	LongestDiameterMM float64    `json:"longest_diameter_mm"`
	ShortAxisMM       float64    `json:"short_axis_mm"`
	VolumeMM3         *float64   `json:"volume_mm3,omitempty"`
	MeanHU            *float64   `json:"mean_hu,omitempty"`
	SUVMax            *float64   `json:"suv_max,omitempty"`
	Reviewer          *string    `json:"reviewer,omitempty"`
	Confidence        *float64   `json:"confidence,omitempty"`
}

type UpdateMeasurementRequest struct {
	Timepoint         *string    `json:"timepoint,omitempty"`
	MeasuredAt        *time.Time `json:"measured_at,omitempty"`
	LongestDiameterMM *float64   `json:"longest_diameter_mm,omitempty"`
	ShortAxisMM       *float64   `json:"short_axis_mm,omitempty"`
	VolumeMM3         *float64   `json:"volume_mm3,omitempty"`
	MeanHU            *float64   `json:"mean_hu,omitempty"`
	SUVMax            *float64   `json:"suv_max,omitempty"`
	Reviewer          *string    `json:"reviewer,omitempty"`
	Confidence        *float64   `json:"confidence,omitempty"`
}

// Analytics result shapes. Optional fields are pointers without omitempty so
// that an absent value serializes as an explicit JSON null rather than being
// dropped from the payload.

type CountByValue struct {
	Value *string `json:"value"`
	Count int64   `json:"count"`
}

type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type ProjectSummary struct {
	ProjectID       int64          `json:"project_id"`
	Subjects        int64          `json:"subjects"`
	Lesions         int64          `json:"lesions"`
	Measurements    int64          `json:"measurements"`
	Modalities      []CountByValue `json:"modalities"`
	Timepoints      []CountByValue `json:"timepoints"`
	MeasuredAtRange DateRange      `json:"measured_at_range"`
	AvgConfidence   *float64       `json:"avg_confidence"`
}

type LesionChange struct {
	LesionID           int64      `json:"lesion_id"`
	BaselineMeasuredAt *time.Time `json:"baseline_measured_at"`
	BaselineLongestMM  *float64   `json:"baseline_longest_mm"`
	LatestMeasuredAt   *time.Time `json:"latest_measured_at"`
	LatestLongestMM    *float64   `json:"latest_longest_mm"`
	PctChangeLongest   *float64   `json:"pct_change_longest"`
}

// Event bus models

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // project_created, lesion_deleted, ...
	Entity    string                 `json:"entity"`
	EntityID  int64                  `json:"entity_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Audit trail

type AuditEntry struct {
	ID        int64                  `json:"id"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  int64                  `json:"entity_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
