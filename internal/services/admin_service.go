package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	Stats(ctx context.Context) (*models.UserStats, error)
}

// AdminIncidentRepository is the subset of IncidentRepository methods needed by AdminService.
type AdminIncidentRepository interface {
	Stats(ctx context.Context) (*models.IncidentStats, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
}

const recentIncidentsLimit = 5

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	Users           *models.UserStats     `json:"users"`
	Incidents       *models.IncidentStats `json:"incidents"`
	RecentIncidents []*models.Incident    `json:"recent_incidents"`
}

// AdminService aggregates data for admin dashboard endpoints.
type AdminService struct {
	userRepo     AdminUserRepository
	incidentRepo AdminIncidentRepository
	policy       *auth.Policy
	logger       *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(userRepo AdminUserRepository, incidentRepo AdminIncidentRepository, policy *auth.Policy, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo:     userRepo,
		incidentRepo: incidentRepo,
		policy:       policy,
		logger:       logger,
	}
}

// GetDashboardStats returns account and incident counts plus the latest reports.
func (s *AdminService) GetDashboardStats(ctx context.Context, actorID string) (*DashboardStatsResponse, error) {
	if err := s.policy.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	users, err := s.userRepo.Stats(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to load user stats", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	incidents, err := s.incidentRepo.Stats(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to load incident stats", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	recent, err := s.incidentRepo.List(ctx, models.IncidentFilter{Limit: recentIncidentsLimit})
	if err != nil {
		s.logger.Error("dashboard: failed to load recent incidents", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &DashboardStatsResponse{
		Users:           users,
		Incidents:       incidents,
		RecentIncidents: recent,
	}, nil
}
