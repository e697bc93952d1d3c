package registry

import (
	"context"

	"github.com/oncotrack-ai/platform/pkg/common/kafka"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/common/models"
	"github.com/oncotrack-ai/platform/pkg/observability/metrics"
)

// RollupInvalidator drops cached analytics rollups for a project. Mutations
// anywhere in a project's subtree invalidate through it so summaries never
// outlive the data they were computed from by a full cache TTL.
type RollupInvalidator interface {
	InvalidateProject(ctx context.Context, projectID int64) error
}

// Service wraps the repository with audit logging, event publication, and
// rollup cache invalidation. The producer and invalidator are optional; with
// either nil the corresponding side effect is skipped.
type Service struct {
	repo     *Repository
	producer *kafka.Producer
	rollups  RollupInvalidator
}

func NewService(repo *Repository, producer *kafka.Producer, rollups RollupInvalidator) *Service {
	return &Service{repo: repo, producer: producer, rollups: rollups}
}

func (s *Service) invalidateRollup(ctx context.Context, projectID int64) {
	if s.rollups == nil || projectID == 0 {
		return
	}
	if err := s.rollups.InvalidateProject(ctx, projectID); err != nil {
		logger.Log.WithError(err).WithField("project_id", projectID).Warn("failed to invalidate rollup cache")
	}
}

func (s *Service) record(ctx context.Context, action, entity string, entityID int64, payload map[string]interface{}) {
	if err := s.repo.CreateAuditEntry(ctx, models.AuditEntry{
		Actor:    "api",
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Payload:  payload,
	}); err != nil {
		logger.Log.WithError(err).WithField("action", action).Warn("failed to write audit entry")
	}

	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, action, entity, entityID, payload); err != nil {
		metrics.EventsFailed.Inc()
		return
	}
	metrics.EventsPublished.Inc()
}

func (s *Service) CreateProject(ctx context.Context, req models.CreateProjectRequest) (models.Project, error) {
	project, err := s.repo.CreateProject(ctx, req)
	if err != nil {
		return models.Project{}, err
	}
	s.record(ctx, "project_created", "project", project.ID, map[string]interface{}{"name": project.Name})
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return s.repo.GetProject(ctx, id)
}

func (s *Service) GetProjectTree(ctx context.Context, id int64) (*models.ProjectTree, error) {
	return s.repo.GetProjectTree(ctx, id)
}

func (s *Service) UpdateProject(ctx context.Context, id int64, req models.UpdateProjectRequest) (models.Project, error) {
	project, err := s.repo.UpdateProject(ctx, id, req)
	if err != nil {
		return models.Project{}, err
	}
	s.record(ctx, "project_updated", "project", id, map[string]interface{}{"name": project.Name})
	return project, nil
}

func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidateRollup(ctx, id)
	s.record(ctx, "project_deleted", "project", id, nil)
	return nil
}

func (s *Service) DeleteAllProjects(ctx context.Context) error {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAllProjects(ctx); err != nil {
		return err
	}
	for _, project := range projects {
		s.invalidateRollup(ctx, project.ID)
	}
	s.record(ctx, "projects_cleared", "project", 0, nil)
	return nil
}

func (s *Service) CreateSubject(ctx context.Context, projectID int64, req models.CreateSubjectRequest) (models.Subject, error) {
	subject, err := s.repo.CreateSubject(ctx, projectID, req)
	if err != nil {
		return models.Subject{}, err
	}
	s.invalidateRollup(ctx, projectID)
	s.record(ctx, "subject_created", "subject", subject.ID, map[string]interface{}{
		"project_id":   projectID,
		"subject_code": subject.SubjectCode,
	})
	return subject, nil
}

func (s *Service) ListSubjects(ctx context.Context, projectID int64) ([]models.Subject, error) {
	return s.repo.ListSubjects(ctx, projectID)
}

func (s *Service) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	return s.repo.GetSubject(ctx, id)
}

func (s *Service) UpdateSubject(ctx context.Context, id int64, req models.UpdateSubjectRequest) (models.Subject, error) {
	subject, err := s.repo.UpdateSubject(ctx, id, req)
	if err != nil {
		return models.Subject{}, err
	}
	s.invalidateRollup(ctx, subject.ProjectID)
	s.record(ctx, "subject_updated", "subject", id, map[string]interface{}{"subject_code": subject.SubjectCode})
	return subject, nil
}

func (s *Service) DeleteSubject(ctx context.Context, id int64) error {
	projectID, _ := s.repo.ProjectIDOfSubject(ctx, id)
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return err
	}
	s.invalidateRollup(ctx, projectID)
	s.record(ctx, "subject_deleted", "subject", id, nil)
	return nil
}

func (s *Service) CreateLesion(ctx context.Context, subjectID int64, req models.CreateLesionRequest) (models.Lesion, error) {
	lesion, err := s.repo.CreateLesion(ctx, subjectID, req)
	if err != nil {
		return models.Lesion{}, err
	}
	if projectID, err := s.repo.ProjectIDOfSubject(ctx, subjectID); err == nil {
		s.invalidateRollup(ctx, projectID)
	}
	s.record(ctx, "lesion_created", "lesion", lesion.ID, map[string]interface{}{
		"subject_id":   subjectID,
		"lesion_label": lesion.LesionLabel,
	})
	return lesion, nil
}

func (s *Service) ListLesions(ctx context.Context, subjectID int64) ([]models.Lesion, error) {
	return s.repo.ListLesions(ctx, subjectID)
}

func (s *Service) GetLesion(ctx context.Context, id int64) (*models.Lesion, error) {
	return s.repo.GetLesion(ctx, id)
}

func (s *Service) UpdateLesion(ctx context.Context, id int64, req models.UpdateLesionRequest) (models.Lesion, error) {
	lesion, err := s.repo.UpdateLesion(ctx, id, req)
	if err != nil {
		return models.Lesion{}, err
	}
	if projectID, err := s.repo.ProjectIDOfSubject(ctx, lesion.SubjectID); err == nil {
		s.invalidateRollup(ctx, projectID)
	}
	s.record(ctx, "lesion_updated", "lesion", id, map[string]interface{}{"lesion_label": lesion.LesionLabel})
	return lesion, nil
}

func (s *Service) DeleteLesion(ctx context.Context, id int64) error {
	projectID, _ := s.repo.ProjectIDOfLesion(ctx, id)
	if err := s.repo.DeleteLesion(ctx, id); err != nil {
		return err
	}
	s.invalidateRollup(ctx, projectID)
	s.record(ctx, "lesion_deleted", "lesion", id, nil)
	return nil
}

func (s *Service) CreateMeasurement(ctx context.Context, lesionID int64, req models.CreateMeasurementRequest) (models.Measurement, error) {
	measurement, err := s.repo.CreateMeasurement(ctx, lesionID, req)
	if err != nil {
		return models.Measurement{}, err
	}
	if projectID, err := s.repo.ProjectIDOfLesion(ctx, lesionID); err == nil {
		s.invalidateRollup(ctx, projectID)
	}
	s.record(ctx, "measurement_created", "measurement", measurement.ID, map[string]interface{}{
		"lesion_id": lesionID,
		"timepoint": measurement.Timepoint,
	})
	return measurement, nil
}

func (s *Service) ListMeasurements(ctx context.Context, lesionID int64) ([]models.Measurement, error) {
	return s.repo.ListMeasurements(ctx, lesionID)
}

func (s *Service) GetMeasurement(ctx context.Context, id int64) (*models.Measurement, error) {
	return s.repo.GetMeasurement(ctx, id)
}

func (s *Service) UpdateMeasurement(ctx context.Context, id int64, req models.UpdateMeasurementRequest) (models.Measurement, error) {
	measurement, err := s.repo.UpdateMeasurement(ctx, id, req)
	if err != nil {
		return models.Measurement{}, err
	}
	if projectID, err := s.repo.ProjectIDOfLesion(ctx, measurement.LesionID); err == nil {
		s.invalidateRollup(ctx, projectID)
	}
	s.record(ctx, "measurement_updated", "measurement", id, map[string]interface{}{"timepoint": measurement.Timepoint})
	return measurement, nil
}

func (s *Service) DeleteMeasurement(ctx context.Context, id int64) error {
	projectID, _ := s.repo.ProjectIDOfMeasurement(ctx, id)
	if err := s.repo.DeleteMeasurement(ctx, id); err != nil {
		return err
	}
	s.invalidateRollup(ctx, projectID)
	s.record(ctx, "measurement_deleted", "measurement", id, nil)
	return nil
}

func (s *Service) ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, limit)
}
