package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
)

// MediaRepository defines the interface for media metadata access
type MediaRepository interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	GetByID(ctx context.Context, id string) (*models.Media, error)
	ListByIncident(ctx context.Context, incidentID string) ([]*models.Media, error)
	ListByIncidents(ctx context.Context, incidentIDs []string) (map[string][]*models.Media, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Media, error)
	Delete(ctx context.Context, id string) error
}

// UploadInput describes one uploaded file
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService handles incident attachments
type MediaService struct {
	repo      MediaRepository
	incidents IncidentRepository
	storage   ObjectStorage
	policy    *auth.Policy
	maxBytes  int64
	logger    *slog.Logger
}

// NewMediaService creates a new MediaService
func NewMediaService(repo MediaRepository, incidents IncidentRepository, storage ObjectStorage, policy *auth.Policy, maxBytes int64, logger *slog.Logger) *MediaService {
	return &MediaService{
		repo:      repo,
		incidents: incidents,
		storage:   storage,
		policy:    policy,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Upload stores a file against an incident. Only the reporter or an admin may attach media.
func (s *MediaService) Upload(ctx context.Context, actorID, incidentID string, input UploadInput) (*models.Media, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", incidentID))
	}

	if err := s.policy.Authorize(ctx, actorID, inc.CreatedBy, ""); err != nil {
		return nil, err
	}

	fileName := path.Base(strings.ReplaceAll(input.FileName, "\\", "/"))
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	mediaType, ok := models.MediaTypeForExtension(ext)
	if !ok {
		return nil, models.NewValidationError("file type not allowed")
	}
	if input.Size <= 0 {
		return nil, models.NewValidationError("file is empty")
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			contentType = byExt
		} else {
			contentType = "application/octet-stream"
		}
	}

	id := uuid.New().String()
	key := fmt.Sprintf("incidents/%s/%s.%s", incidentID, id, ext)

	if err := s.storage.Put(ctx, key, contentType, input.Body, input.Size); err != nil {
		s.logger.Error("failed to store media", slog.String("incident_id", incidentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	media, err := s.repo.Create(ctx, &models.Media{
		ID:          id,
		IncidentID:  incidentID,
		UploadedBy:  actorID,
		FileName:    fileName,
		ObjectKey:   key,
		ContentType: contentType,
		MediaType:   mediaType,
		SizeBytes:   input.Size,
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned object", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, internalError(s.logger, "failed to record media", err, slog.String("incident_id", incidentID))
	}

	s.presign(ctx, media)
	s.logger.Info("media uploaded",
		slog.String("media_id", media.ID),
		slog.String("incident_id", incidentID),
		slog.Int64("size_bytes", media.SizeBytes))
	return media, nil
}

// ListForIncident returns an incident's media to its reporter or an admin
func (s *MediaService) ListForIncident(ctx context.Context, actorID, incidentID string) ([]*models.Media, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to get incident", err, slog.String("incident_id", incidentID))
	}

	if err := s.policy.Authorize(ctx, actorID, inc.CreatedBy, ""); err != nil {
		return nil, err
	}

	items, err := s.repo.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to list media", err, slog.String("incident_id", incidentID))
	}
	for _, m := range items {
		s.presign(ctx, m)
	}
	return items, nil
}

// Delete removes an attachment for its uploader or an admin
func (s *MediaService) Delete(ctx context.Context, actorID, id string) error {
	media, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return internalError(s.logger, "failed to get media", err, slog.String("media_id", id))
	}

	if err := s.policy.Authorize(ctx, actorID, media.UploadedBy, ""); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(s.logger, "failed to delete media", err, slog.String("media_id", id))
	}

	s.removeObjects(ctx, []*models.Media{media})
	return nil
}

// attach loads media for a page of incidents in one query and presigns URLs.
// Failures are logged and leave the incidents without media.
func (s *MediaService) attach(ctx context.Context, incidents []*models.Incident) {
	if len(incidents) == 0 {
		return
	}

	ids := make([]string, len(incidents))
	for i, inc := range incidents {
		ids[i] = inc.ID
	}

	byIncident, err := s.repo.ListByIncidents(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load incident media", slog.Any("error", err))
		return
	}

	for _, inc := range incidents {
		items := byIncident[inc.ID]
		inc.Media = make([]models.Media, 0, len(items))
		for _, m := range items {
			s.presign(ctx, m)
			inc.Media = append(inc.Media, *m)
		}
	}
}

func (s *MediaService) listRows(ctx context.Context, incidentID string) []*models.Media {
	items, err := s.repo.ListByIncident(ctx, incidentID)
	if err != nil {
		s.logger.Warn("failed to list media for cleanup", slog.String("incident_id", incidentID), slog.Any("error", err))
		return nil
	}
	return items
}

func (s *MediaService) userRows(ctx context.Context, userID string) []*models.Media {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list media for cleanup", slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}
	return items
}

// removeObjects deletes stored blobs; a failure leaves an orphan and is only logged
func (s *MediaService) removeObjects(ctx context.Context, items []*models.Media) {
	for _, m := range items {
		if err := s.storage.Delete(ctx, m.ObjectKey); err != nil {
			s.logger.Warn("failed to delete media object", slog.String("key", m.ObjectKey), slog.Any("error", err))
		}
	}
}

func (s *MediaService) presign(ctx context.Context, m *models.Media) {
	url, err := s.storage.PresignGet(ctx, m.ObjectKey)
	if err != nil {
		s.logger.Warn("failed to presign media url", slog.String("media_id", m.ID), slog.Any("error", err))
		return
	}
	m.URL = url
}
