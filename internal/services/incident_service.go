package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
)

// IncidentRepository defines the interface for incident data access
type IncidentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
	Create(ctx context.Context, inc *models.Incident) (*models.Incident, error)
	Update(ctx context.Context, id string, inc *models.Incident) (*models.Incident, error)
	UpdateStatus(ctx context.Context, id, status string, reward int) (*models.Incident, int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.IncidentStats, error)
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByIncident(ctx context.Context, incidentID string) ([]*models.Comment, error)
	Delete(ctx context.Context, id string) error
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxCommentLen   = 2000
)

// IncidentInput carries reporter-editable incident fields. Nil fields are
// left alone on update and required on create.
type IncidentInput struct {
	Title       *string
	Description *string
	Latitude    *float64
	Longitude   *float64
}

// IncidentService handles incidents and their comments
type IncidentService struct {
	incidents        IncidentRepository
	comments         CommentRepository
	media            *MediaService
	policy           *auth.Policy
	resolutionReward int
	logger           *slog.Logger
}

// NewIncidentService creates a new IncidentService. media may be nil, in which
// case incidents are returned without attachments.
func NewIncidentService(incidents IncidentRepository, comments CommentRepository, media *MediaService, policy *auth.Policy, resolutionReward int, logger *slog.Logger) *IncidentService {
	return &IncidentService{
		incidents:        incidents,
		comments:         comments,
		media:            media,
		policy:           policy,
		resolutionReward: resolutionReward,
		logger:           logger,
	}
}

// List returns incidents newest first. Anonymous callers are allowed.
func (s *IncidentService) List(ctx context.Context, status string, limit, offset int) ([]*models.Incident, error) {
	if status != "" && !models.IsValidIncidentStatus(status) {
		return nil, models.NewValidationError("invalid status filter")
	}
	return s.list(ctx, models.IncidentFilter{Status: status, Limit: limit, Offset: offset})
}

// ListMine returns the incidents reported by userID
func (s *IncidentService) ListMine(ctx context.Context, userID string, limit, offset int) ([]*models.Incident, error) {
	return s.list(ctx, models.IncidentFilter{CreatedBy: userID, Limit: limit, Offset: offset})
}

func (s *IncidentService) list(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)

	incidents, err := s.incidents.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list incidents", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if s.media != nil {
		s.media.attach(ctx, incidents)
	}
	return incidents, nil
}

// Get returns a single incident with its media
func (s *IncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", id))
	}

	if s.media != nil {
		s.media.attach(ctx, []*models.Incident{inc})
	}
	return inc, nil
}

// Create files a new incident in the pending state
func (s *IncidentService) Create(ctx context.Context, userID string, input IncidentInput) (*models.Incident, error) {
	if input.Title == nil || input.Description == nil || input.Latitude == nil || input.Longitude == nil {
		return nil, models.NewValidationError("title, description, latitude and longitude are required")
	}

	inc := &models.Incident{CreatedBy: userID, Status: models.IncidentStatusPending}
	if err := applyIncidentInput(inc, input); err != nil {
		return nil, err
	}

	created, err := s.incidents.Create(ctx, inc)
	if err != nil {
		return nil, internalError(s.logger, "failed to create incident", err, slog.String("user_id", userID))
	}

	s.logger.Info("incident created", slog.String("incident_id", created.ID), slog.String("user_id", userID))
	return created, nil
}

// Update edits an incident for its reporter or an admin
func (s *IncidentService) Update(ctx context.Context, actorID, id string, input IncidentInput) (*models.Incident, error) {
	existing, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", id))
	}

	if err := s.policy.Authorize(ctx, actorID, existing.CreatedBy, ""); err != nil {
		return nil, err
	}

	if err := applyIncidentInput(existing, input); err != nil {
		return nil, err
	}

	updated, err := s.incidents.Update(ctx, id, existing)
	if err != nil {
		return nil, internalError(s.logger, "failed to update incident", err, slog.String("incident_id", id))
	}

	s.logger.Info("incident updated", slog.String("incident_id", id), slog.String("actor_id", actorID))
	return updated, nil
}

// UpdateStatus moves an incident through its lifecycle. Admin only. The first
// move to resolved credits the reporter in the same transaction.
func (s *IncidentService) UpdateStatus(ctx context.Context, actorID, id, status string) (*models.Incident, error) {
	if !models.IsValidIncidentStatus(status) {
		return nil, models.NewValidationError("invalid status")
	}
	if err := s.policy.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	inc, credited, err := s.incidents.UpdateStatus(ctx, id, status, s.resolutionReward)
	if err != nil {
		return nil, internalError(s.logger, "failed to update incident status", err, slog.String("incident_id", id))
	}

	s.logger.Info("incident status changed",
		slog.String("incident_id", id),
		slog.String("status", status),
		slog.String("actor_id", actorID),
		slog.Int("points_credited", credited))
	return inc, nil
}

// Delete removes an incident and its attachments for the reporter or an admin
func (s *IncidentService) Delete(ctx context.Context, actorID, id string) error {
	existing, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return internalError(s.logger, "failed to get incident", err, slog.String("incident_id", id))
	}

	if err := s.policy.Authorize(ctx, actorID, existing.CreatedBy, ""); err != nil {
		return err
	}

	// Object keys are read before the rows cascade away.
	var attachments []*models.Media
	if s.media != nil {
		attachments = s.media.listRows(ctx, id)
	}

	if err := s.incidents.Delete(ctx, id); err != nil {
		return internalError(s.logger, "failed to delete incident", err, slog.String("incident_id", id))
	}

	if s.media != nil {
		s.media.removeObjects(ctx, attachments)
	}

	s.logger.Info("incident deleted", slog.String("incident_id", id), slog.String("actor_id", actorID))
	return nil
}

// AddComment posts a comment on an incident
func (s *IncidentService) AddComment(ctx context.Context, userID, incidentID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("content is too long")
	}

	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", incidentID))
	}

	comment, err := s.comments.Create(ctx, &models.Comment{
		IncidentID: incidentID,
		UserID:     userID,
		Content:    content,
	})
	if err != nil {
		return nil, internalError(s.logger, "failed to create comment", err, slog.String("incident_id", incidentID))
	}
	return comment, nil
}

// ListComments returns the comments on an incident, oldest first
func (s *IncidentService) ListComments(ctx context.Context, incidentID string) ([]*models.Comment, error) {
	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", incidentID))
	}

	comments, err := s.comments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to list comments", err, slog.String("incident_id", incidentID))
	}
	return comments, nil
}

// DeleteComment removes a comment for its author or an admin
func (s *IncidentService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return internalError(s.logger, "failed to get comment", err, slog.String("comment_id", commentID))
	}

	if err := s.policy.Authorize(ctx, actorID, comment.UserID, ""); err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		return internalError(s.logger, "failed to delete comment", err, slog.String("comment_id", commentID))
	}
	return nil
}

func applyIncidentInput(inc *models.Incident, input IncidentInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return models.NewValidationError("title cannot be empty")
		}
		inc.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return models.NewValidationError("description cannot be empty")
		}
		inc.Description = description
	}
	if input.Latitude != nil {
		if *input.Latitude < -90 || *input.Latitude > 90 {
			return models.NewValidationError("latitude must be between -90 and 90")
		}
		inc.Latitude = *input.Latitude
	}
	if input.Longitude != nil {
		if *input.Longitude < -180 || *input.Longitude > 180 {
			return models.NewValidationError("longitude must be between -180 and 180")
		}
		inc.Longitude = *input.Longitude
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
