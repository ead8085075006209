package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	pkgauth "github.com/BradenHooton/ajali/pkg/auth"
	pkglogger "github.com/BradenHooton/ajali/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateSecurityQuestion(ctx context.Context, id, question, answerHash string) error
	UpdateRole(ctx context.Context, id, role string) (*models.User, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.User, error)
	Delete(ctx context.Context, id string) error
	DebitPoints(ctx context.Context, id string, amount int) (int, error)
	CreditPoints(ctx context.Context, id string, amount int) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Stats(ctx context.Context) (*models.UserStats, error)
}

const defaultLeaderboardSize = 10

// PointsConfig controls redemption and leaderboard behaviour
type PointsConfig struct {
	AirtimeRate    int // KES per point
	LeaderboardMax int
	PhoneRegion    string
}

// UpdateUserInput carries optional profile changes. Nil fields are left alone.
type UpdateUserInput struct {
	Name  *string
	Email *string
	Phone *string
	Role  *string
}

// Redemption is the result of converting points to airtime
type Redemption struct {
	PointsRedeemed  int `json:"points_redeemed"`
	AirtimeKES      int `json:"airtime_kes"`
	RemainingPoints int `json:"remaining_points"`
}

// UserService handles user business logic
type UserService struct {
	repo     UserRepository
	media    *MediaService
	policy   *auth.Policy
	config   PointsConfig
	logger   *slog.Logger
	security *pkglogger.SecurityLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, media *MediaService, policy *auth.Policy, config PointsConfig, logger *slog.Logger, security *pkglogger.SecurityLogger) *UserService {
	if config.LeaderboardMax <= 0 {
		config.LeaderboardMax = 100
	}
	if config.PhoneRegion == "" {
		config.PhoneRegion = pkgauth.DefaultPhoneRegion
	}
	return &UserService{
		repo:     repo,
		media:    media,
		policy:   policy,
		config:   config,
		logger:   logger,
		security: security,
	}
}

// GetUser returns a user to its owner or an admin
func (s *UserService) GetUser(ctx context.Context, actorID, id string) (*models.User, error) {
	if err := s.policy.Authorize(ctx, actorID, id, ""); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to get user", err, slog.String("user_id", id))
	}
	return user, nil
}

// ListUsers retrieves a page of users. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actorID string, limit, offset int) ([]*models.User, error) {
	if err := s.policy.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// UpdateUser applies profile changes for the owner or an admin. A role change
// is an admin action on someone else's account and goes through the stricter check.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id string, input UpdateUserInput) (*models.User, error) {
	if err := s.policy.Authorize(ctx, actorID, id, ""); err != nil {
		return nil, err
	}
	if input.Role != nil {
		if !models.IsValidRole(*input.Role) {
			return nil, models.NewValidationError("invalid role")
		}
		if err := s.policy.CanManageAccount(ctx, actorID, id); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to get user", err, slog.String("user_id", id))
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, models.NewValidationError("name cannot be empty")
		}
		existing.Name = name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, models.NewValidationError("email cannot be empty")
		}
		existing.Email = email
	}
	if input.Phone != nil {
		if strings.TrimSpace(*input.Phone) == "" {
			existing.Phone = nil
		} else {
			phone, err := pkgauth.NormalizePhone(*input.Phone, s.config.PhoneRegion)
			if err != nil {
				return nil, models.NewValidationError(err.Error())
			}
			existing.Phone = &phone
		}
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		return nil, internalError(s.logger, "failed to update user", err, slog.String("user_id", id))
	}

	if input.Role != nil && *input.Role != updated.Role {
		updated, err = s.repo.UpdateRole(ctx, id, *input.Role)
		if err != nil {
			return nil, internalError(s.logger, "failed to update role", err, slog.String("user_id", id))
		}
		s.security.Success(ctx, pkglogger.EventRoleChange, id, map[string]string{
			"actor_id": actorID,
			"role":     updated.Role,
		})
	}

	s.logger.Info("user updated", slog.String("user_id", id), slog.String("actor_id", actorID))
	return updated, nil
}

// DeleteUser hard-deletes an account. Admin only, and never the admin's own.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if err := s.policy.CanManageAccount(ctx, actorID, id); err != nil {
		return err
	}

	// Media rows cascade with the account, so their object keys are read first.
	var attachments []*models.Media
	if s.media != nil {
		attachments = s.media.userRows(ctx, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(s.logger, "failed to delete user", err, slog.String("user_id", id))
	}

	if s.media != nil {
		s.media.removeObjects(ctx, attachments)
	}

	s.security.Success(ctx, pkglogger.EventAccountDeleted, id, map[string]string{"actor_id": actorID})
	return nil
}

// SetStatus moves an account between active, suspended and pending. Admin only.
func (s *UserService) SetStatus(ctx context.Context, actorID, id, status string) (*models.User, error) {
	if !models.IsValidStatus(status) {
		return nil, models.NewValidationError("invalid status")
	}
	if err := s.policy.CanManageAccount(ctx, actorID, id); err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, internalError(s.logger, "failed to update status", err, slog.String("user_id", id))
	}

	s.security.Success(ctx, pkglogger.EventStatusChange, id, map[string]string{
		"actor_id": actorID,
		"status":   status,
	})
	return user, nil
}

// GetPoints returns the caller's balance
func (s *UserService) GetPoints(ctx context.Context, userID string) (int, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return 0, internalError(s.logger, "failed to get user", err, slog.String("user_id", userID))
	}
	return user.Points, nil
}

// RedeemPoints converts points to airtime. The debit is a single conditional
// update, so concurrent redemptions cannot overdraw the balance.
func (s *UserService) RedeemPoints(ctx context.Context, userID string, points int) (*Redemption, error) {
	if points <= 0 {
		return nil, models.NewValidationError("points must be a positive integer")
	}

	remaining, err := s.repo.DebitPoints(ctx, userID, points)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientPoints) {
			s.logger.Info("redemption rejected: insufficient points", slog.String("user_id", userID), slog.Int("points", points))
		}
		return nil, internalError(s.logger, "failed to debit points", err, slog.String("user_id", userID))
	}

	s.security.Success(ctx, pkglogger.EventPointsRedeemed, userID, map[string]string{
		"points": strconv.Itoa(points),
	})

	return &Redemption{
		PointsRedeemed:  points,
		AirtimeKES:      points * s.config.AirtimeRate,
		RemainingPoints: remaining,
	}, nil
}

// Leaderboard returns the top users by points. Non-positive limits use the
// default and large ones are clamped.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > s.config.LeaderboardMax {
		limit = s.config.LeaderboardMax
	}

	entries, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		s.logger.Error("failed to load leaderboard", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return entries, nil
}
