package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oncotrack-ai/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrLesionNotFound      = errors.New("lesion not found")
	ErrMeasurementNotFound = errors.New("measurement not found")

	ErrDuplicateProjectName = errors.New("project name already exists")
	ErrDuplicateSubjectCode = errors.New("subject_code already exists for this project")
	ErrDuplicateLesionLabel = errors.New("lesion_label already exists for this subject")
	ErrDuplicateTimepoint   = errors.New("measurement already exists for this lesion + timepoint")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type projectModel struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	Name        string    `gorm:"column:name;size:100;not null;uniqueIndex:uq_project_name"`
	Description *string   `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (projectModel) TableName() string { return "projects" }

type subjectModel struct {
	ID             int64     `gorm:"primaryKey;column:id"`
	ProjectID      int64     `gorm:"column:project_id;not null;index;uniqueIndex:uq_subject_project_code"`
	SubjectCode    string    `gorm:"column:subject_code;size:50;not null;uniqueIndex:uq_subject_project_code"`
	Sex            *string   `gorm:"column:sex;size:10"`
	AgeAtDiagnosis *int      `gorm:"column:age_at_diagnosis"`
	CancerType     *string   `gorm:"column:cancer_type;size:50"`
	Stage          *string   `gorm:"column:stage;size:10"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`

	Project projectModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (subjectModel) TableName() string { return "subjects" }

type lesionModel struct {
	ID           int64     `gorm:"primaryKey;column:id"`
	SubjectID    int64     `gorm:"column:subject_id;not null;index;uniqueIndex:uq_lesion_subject_label"`
	LesionLabel  string    `gorm:"column:lesion_label;size:50;not null;uniqueIndex:uq_lesion_subject_label"`
	AnatomicSite *string   `gorm:"column:anatomic_site;size:100"`
	Laterality   *string   `gorm:"column:laterality;size:10"`
	Modality     *string   `gorm:"column:modality;size:20"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`

	Subject subjectModel `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE"`
}

func (lesionModel) TableName() string { return "lesions" }

type measurementModel struct {
	ID                int64     `gorm:"primaryKey;column:id"`
	LesionID          int64     `gorm:"column:lesion_id;not null;index;uniqueIndex:uq_measurement_lesion_timepoint"`
	Timepoint         string    `gorm:"column:timepoint;size:30;not null;uniqueIndex:uq_measurement_lesion_timepoint"`
	MeasuredAt        time.Time `gorm:"column:measured_at;not null;index"`
	LongestDiameterMM float64   `gorm:"column:longest_diameter_mm;not null;check:ck_longest_diameter_nonneg,longest_diameter_mm >= 0"`
	ShortAxisMM       float64   `gorm:"column:short_axis_mm;not null;check:ck_short_axis_nonneg,short_axis_mm >= 0"`
	VolumeMM3         *float64  `gorm:"column:volume_mm3"`
	MeanHU            *float64  `gorm:"column:mean_hu"`
	SUVMax            *float64  `gorm:"column:suv_max"`
	Reviewer          *string   `gorm:"column:reviewer;size:100"`
	Confidence        float64   `gorm:"column:confidence;not null;default:1;check:ck_confidence_range,confidence >= 0 AND confidence <= 1"`

	Lesion lesionModel `gorm:"foreignKey:LesionID;constraint:OnDelete:CASCADE"`
}

func (measurementModel) TableName() string { return "lesion_measurements" }

type auditModel struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	Actor     string         `gorm:"column:actor;size:100"`
	Action    string         `gorm:"column:action;size:50;index"`
	Entity    string         `gorm:"column:entity;size:30"`
	EntityID  int64          `gorm:"column:entity_id"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
}

func (auditModel) TableName() string { return "registry_audit_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&projectModel{},
		&subjectModel{},
		&lesionModel{},
		&measurementModel{},
		&auditModel{},
	)
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Projects ---

func (r *Repository) CreateProject(ctx context.Context, req models.CreateProjectRequest) (models.Project, error) {
	row := &projectModel{
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Project{}, ErrDuplicateProjectName
		}
		return models.Project{}, err
	}
	return projectToDomain(row), nil
}

func (r *Repository) ListProjects(ctx context.Context) ([]models.Project, error) {
	var rows []projectModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, projectToDomain(&rows[i]))
	}
	return projects, nil
}

// GetProject returns the project or nil when no such row exists. Absence is
// not an error at this layer; callers decide whether it is terminal.
func (r *Repository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var row projectModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	project := projectToDomain(&row)
	return &project, nil
}

func (r *Repository) UpdateProject(ctx context.Context, id int64, req models.UpdateProjectRequest) (models.Project, error) {
	var row projectModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, ErrProjectNotFound
		}
		return models.Project{}, err
	}
	if req.Name != nil {
		row.Name = *req.Name
	}
	if req.Description != nil {
		row.Description = req.Description
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Project{}, ErrDuplicateProjectName
		}
		return models.Project{}, err
	}
	return projectToDomain(&row), nil
}

func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&projectModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *Repository) DeleteAllProjects(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&projectModel{}).Error
}

// GetProjectTree loads a project with its full subject/lesion/measurement
// subtree, children in chronological order.
func (r *Repository) GetProjectTree(ctx context.Context, id int64) (*models.ProjectTree, error) {
	project, err := r.GetProject(ctx, id)
	if err != nil || project == nil {
		return nil, err
	}

	tree := &models.ProjectTree{Project: *project, Subjects: []models.SubjectTree{}}

	var subjects []subjectModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", id).Order("created_at ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	for i := range subjects {
		subjectTree := models.SubjectTree{Subject: subjectToDomain(&subjects[i]), Lesions: []models.LesionTree{}}

		var lesions []lesionModel
		if err := r.db.WithContext(ctx).Where("subject_id = ?", subjects[i].ID).Order("created_at ASC").Find(&lesions).Error; err != nil {
			return nil, err
		}
		for j := range lesions {
			measurements, err := r.MeasurementsOfLesion(ctx, lesions[j].ID)
			if err != nil {
				return nil, err
			}
			subjectTree.Lesions = append(subjectTree.Lesions, models.LesionTree{
				Lesion:       lesionToDomain(&lesions[j]),
				Measurements: measurements,
			})
		}
		tree.Subjects = append(tree.Subjects, subjectTree)
	}
	return tree, nil
}

// --- Subjects ---

func (r *Repository) CreateSubject(ctx context.Context, projectID int64, req models.CreateSubjectRequest) (models.Subject, error) {
	project, err := r.GetProject(ctx, projectID)
	if err != nil {
		return models.Subject{}, err
	}
	if project == nil {
		return models.Subject{}, ErrProjectNotFound
	}

	row := &subjectModel{
		ProjectID:      projectID,
		SubjectCode:    req.SubjectCode,
		Sex:            req.Sex,
		AgeAtDiagnosis: req.AgeAtDiagnosis,
		CancerType:     req.CancerType,
		Stage:          req.Stage,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Subject{}, ErrDuplicateSubjectCode
		}
		return models.Subject{}, err
	}
	return subjectToDomain(row), nil
}

func (r *Repository) ListSubjects(ctx context.Context, projectID int64) ([]models.Subject, error) {
	project, err := r.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	var rows []subjectModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	subjects := make([]models.Subject, 0, len(rows))
	for i := range rows {
		subjects = append(subjects, subjectToDomain(&rows[i]))
	}
	return subjects, nil
}

func (r *Repository) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	var row subjectModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	subject := subjectToDomain(&row)
	return &subject, nil
}

func (r *Repository) UpdateSubject(ctx context.Context, id int64, req models.UpdateSubjectRequest) (models.Subject, error) {
	var row subjectModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Subject{}, ErrSubjectNotFound
		}
		return models.Subject{}, err
	}
	if req.SubjectCode != nil {
		row.SubjectCode = *req.SubjectCode
	}
	if req.Sex != nil {
		row.Sex = req.Sex
	}
	if req.AgeAtDiagnosis != nil {
		row.AgeAtDiagnosis = req.AgeAtDiagnosis
	}
	if req.CancerType != nil {
		row.CancerType = req.CancerType
	}
	if req.Stage != nil {
		row.Stage = req.Stage
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Subject{}, ErrDuplicateSubjectCode
		}
		return models.Subject{}, err
	}
	return subjectToDomain(&row), nil
}

func (r *Repository) DeleteSubject(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&subjectModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

// --- Lesions ---

func (r *Repository) CreateLesion(ctx context.Context, subjectID int64, req models.CreateLesionRequest) (models.Lesion, error) {
	subject, err := r.GetSubject(ctx, subjectID)
	if err != nil {
		return models.Lesion{}, err
	}
	if subject == nil {
		return models.Lesion{}, ErrSubjectNotFound
	}

	row := &lesionModel{
		SubjectID:    subjectID,
		LesionLabel:  req.LesionLabel,
		AnatomicSite: req.AnatomicSite,
		Laterality:   req.Laterality,
		Modality:     req.Modality,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Lesion{}, ErrDuplicateLesionLabel
		}
		return models.Lesion{}, err
	}
	return lesionToDomain(row), nil
}

func (r *Repository) ListLesions(ctx context.Context, subjectID int64) ([]models.Lesion, error) {
	subject, err := r.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	var rows []lesionModel
	if err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	lesions := make([]models.Lesion, 0, len(rows))
	for i := range rows {
		lesions = append(lesions, lesionToDomain(&rows[i]))
	}
	return lesions, nil
}

func (r *Repository) GetLesion(ctx context.Context, id int64) (*models.Lesion, error) {
	var row lesionModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	lesion := lesionToDomain(&row)
	return &lesion, nil
}

func (r *Repository) UpdateLesion(ctx context.Context, id int64, req models.UpdateLesionRequest) (models.Lesion, error) {
	var row lesionModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Lesion{}, ErrLesionNotFound
		}
		return models.Lesion{}, err
	}
	if req.LesionLabel != nil {
		row.LesionLabel = *req.LesionLabel
	}
	if req.AnatomicSite != nil {
		row.AnatomicSite = req.AnatomicSite
	}
	if req.Laterality != nil {
		row.Laterality = req.Laterality
	}
	if req.Modality != nil {
		row.Modality = req.Modality
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Lesion{}, ErrDuplicateLesionLabel
		}
		return models.Lesion{}, err
	}
	return lesionToDomain(&row), nil
}

func (r *Repository) DeleteLesion(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&lesionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLesionNotFound
	}
	return nil
}

// --- Measurements ---

func (r *Repository) CreateMeasurement(ctx context.Context, lesionID int64, req models.CreateMeasurementRequest) (models.Measurement, error) {
	lesion, err := r.GetLesion(ctx, lesionID)
	if err != nil {
		return models.Measurement{}, err
	}
	if lesion == nil {
		return models.Measurement{}, ErrLesionNotFound
	}

	measuredAt := time.Now().UTC()
	if req.MeasuredAt != nil {
		measuredAt = req.MeasuredAt.UTC()
	}
	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	row := &measurementModel{
		LesionID:          lesionID,
		Timepoint:         req.Timepoint,
		MeasuredAt:        measuredAt,
		LongestDiameterMM: req.LongestDiameterMM,
		ShortAxisMM:       req.ShortAxisMM,
		VolumeMM3:         req.VolumeMM3,
		MeanHU:            req.MeanHU,
		SUVMax:            req.SUVMax,
		Reviewer:          req.Reviewer,
		Confidence:        confidence,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Measurement{}, ErrDuplicateTimepoint
		}
		return models.Measurement{}, err
	}
	return measurementToDomain(row), nil
}

func (r *Repository) ListMeasurements(ctx context.Context, lesionID int64) ([]models.Measurement, error) {
	lesion, err := r.GetLesion(ctx, lesionID)
	if err != nil {
		return nil, err
	}
	if lesion == nil {
		return nil, ErrLesionNotFound
	}
	return r.MeasurementsOfLesion(ctx, lesionID)
}

func (r *Repository) GetMeasurement(ctx context.Context, id int64) (*models.Measurement, error) {
	var row measurementModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	measurement := measurementToDomain(&row)
	return &measurement, nil
}

func (r *Repository) UpdateMeasurement(ctx context.Context, id int64, req models.UpdateMeasurementRequest) (models.Measurement, error) {
	var row measurementModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Measurement{}, ErrMeasurementNotFound
		}
		return models.Measurement{}, err
	}
	if req.Timepoint != nil {
		row.Timepoint = *req.Timepoint
	}
	if req.MeasuredAt != nil {
		row.MeasuredAt = req.MeasuredAt.UTC()
	}
	if req.LongestDiameterMM != nil {
		row.LongestDiameterMM = *req.LongestDiameterMM
	}
	if req.ShortAxisMM != nil {
		row.ShortAxisMM = *req.ShortAxisMM
	}
	if req.VolumeMM3 != nil {
		row.VolumeMM3 = req.VolumeMM3
	}
	if req.MeanHU != nil {
		row.MeanHU = req.MeanHU
	}
	if req.SUVMax != nil {
		row.SUVMax = req.SUVMax
	}
	if req.Reviewer != nil {
		row.Reviewer = req.Reviewer
	}
	if req.Confidence != nil {
		row.Confidence = *req.Confidence
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Measurement{}, ErrDuplicateTimepoint
		}
		return models.Measurement{}, err
	}
	return measurementToDomain(&row), nil
}

func (r *Repository) DeleteMeasurement(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&measurementModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMeasurementNotFound
	}
	return nil
}

// --- Store reads for the analytics engine ---

func (r *Repository) CountSubjects(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&subjectModel{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountLesions(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&lesionModel{}).
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountMeasurements(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&measurementModel{}).
		Joins("JOIN lesions ON lesions.id = lesion_measurements.lesion_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

func (r *Repository) ModalityCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error) {
	var rows []models.CountByValue
	err := r.db.WithContext(ctx).Model(&lesionModel{}).
		Select("lesions.modality AS value, COUNT(*) AS count").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Group("lesions.modality").
		Order("COUNT(*) DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) TimepointCounts(ctx context.Context, projectID int64) ([]models.CountByValue, error) {
	var rows []models.CountByValue
	err := r.db.WithContext(ctx).Model(&measurementModel{}).
		Select("lesion_measurements.timepoint AS value, COUNT(*) AS count").
		Joins("JOIN lesions ON lesions.id = lesion_measurements.lesion_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Group("lesion_measurements.timepoint").
		Order("COUNT(*) DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) MeasuredAtBounds(ctx context.Context, projectID int64) (*time.Time, *time.Time, error) {
	var bounds struct {
		MinAt *time.Time
		MaxAt *time.Time
	}
	err := r.db.WithContext(ctx).Model(&measurementModel{}).
		Select("MIN(lesion_measurements.measured_at) AS min_at, MAX(lesion_measurements.measured_at) AS max_at").
		Joins("JOIN lesions ON lesions.id = lesion_measurements.lesion_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Scan(&bounds).Error
	return bounds.MinAt, bounds.MaxAt, err
}

func (r *Repository) AvgConfidence(ctx context.Context, projectID int64) (*float64, error) {
	var result struct {
		Avg *float64
	}
	err := r.db.WithContext(ctx).Model(&measurementModel{}).
		Select("AVG(lesion_measurements.confidence) AS avg").
		Joins("JOIN lesions ON lesions.id = lesion_measurements.lesion_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("subjects.project_id = ?", projectID).
		Scan(&result).Error
	return result.Avg, err
}

func (r *Repository) MeasurementsOfLesion(ctx context.Context, lesionID int64) ([]models.Measurement, error) {
	var rows []measurementModel
	if err := r.db.WithContext(ctx).Where("lesion_id = ?", lesionID).Order("measured_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	measurements := make([]models.Measurement, 0, len(rows))
	for i := range rows {
		measurements = append(measurements, measurementToDomain(&rows[i]))
	}
	return measurements, nil
}

// Ancestor project lookups, used to target cache invalidation after a
// mutation deeper in the tree. A zero id means the row does not exist.

func (r *Repository) ProjectIDOfSubject(ctx context.Context, subjectID int64) (int64, error) {
	var row struct{ ProjectID int64 }
	err := r.db.WithContext(ctx).Model(&subjectModel{}).
		Select("project_id").
		Where("id = ?", subjectID).
		Scan(&row).Error
	return row.ProjectID, err
}

func (r *Repository) ProjectIDOfLesion(ctx context.Context, lesionID int64) (int64, error) {
	var row struct{ ProjectID int64 }
	err := r.db.WithContext(ctx).Model(&lesionModel{}).
		Select("subjects.project_id AS project_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("lesions.id = ?", lesionID).
		Scan(&row).Error
	return row.ProjectID, err
}

func (r *Repository) ProjectIDOfMeasurement(ctx context.Context, measurementID int64) (int64, error) {
	var row struct{ ProjectID int64 }
	err := r.db.WithContext(ctx).Model(&measurementModel{}).
		Select("subjects.project_id AS project_id").
		Joins("JOIN lesions ON lesions.id = lesion_measurements.lesion_id").
		Joins("JOIN subjects ON subjects.id = lesions.subject_id").
		Where("lesion_measurements.id = ?", measurementID).
		Scan(&row).Error
	return row.ProjectID, err
}

// --- Audit ---

func (r *Repository) CreateAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	row := &auditModel{
		Actor:     entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Payload != nil {
		if data, err := json.Marshal(entry.Payload); err == nil {
			row.Payload = datatypes.JSON(data)
		}
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []auditModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]models.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.AuditEntry{
			ID:        row.ID,
			Actor:     row.Actor,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Payload) > 0 {
			var payload map[string]interface{}
			_ = json.Unmarshal(row.Payload, &payload)
			entry.Payload = payload
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// --- Converters ---

func projectToDomain(row *projectModel) models.Project {
	return models.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
}

func subjectToDomain(row *subjectModel) models.Subject {
	return models.Subject{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		SubjectCode:    row.SubjectCode,
		Sex:            row.Sex,
		AgeAtDiagnosis: row.AgeAtDiagnosis,
		CancerType:     row.CancerType,
		Stage:          row.Stage,
		CreatedAt:      row.CreatedAt,
	}
}

func lesionToDomain(row *lesionModel) models.Lesion {
	return models.Lesion{
		ID:           row.ID,
		SubjectID:    row.SubjectID,
		LesionLabel:  row.LesionLabel,
		AnatomicSite: row.AnatomicSite,
		Laterality:   row.Laterality,
		Modality:     row.Modality,
		CreatedAt:    row.CreatedAt,
	}
}

func measurementToDomain(row *measurementModel) models.Measurement {
	return models.Measurement{
		ID:                row.ID,
		LesionID:          row.LesionID,
		Timepoint:         row.Timepoint,
		MeasuredAt:        row.MeasuredAt,
		LongestDiameterMM: row.LongestDiameterMM,
		ShortAxisMM:       row.ShortAxisMM,
		VolumeMM3:         row.VolumeMM3,
		MeanHU:            row.MeanHU,
		SUVMax:            row.SUVMax,
		Reviewer:          row.Reviewer,
		Confidence:        row.Confidence,
	}
}
