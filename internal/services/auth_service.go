package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	pkgauth "github.com/BradenHooton/ajali/pkg/auth"
	pkglogger "github.com/BradenHooton/ajali/pkg/logger"
)

// ResetTokenStore records reset tokens that have been spent
type ResetTokenStore interface {
	MarkConsumed(ctx context.Context, jti, email string, expiresAt time.Time) error
}

// AuthServiceConfig holds the account recovery settings
type AuthServiceConfig struct {
	ResetTokenTTL        time.Duration
	ResetSingleUse       bool
	PhoneRecoveryEnabled bool
	PhoneRegion          string
	EmailSendTimeout     time.Duration
}

// AuthService handles authentication and account lifecycle logic
type AuthService struct {
	repo        UserRepository
	resetTokens ResetTokenStore
	tm          *auth.TokenManager
	signer      *auth.Signer
	policy      *auth.Policy
	mailer      EmailService
	timing      *auth.TimingDelay
	config      AuthServiceConfig
	logger      *slog.Logger
	security    *pkglogger.SecurityLogger
}

// AuthServiceDeps groups the collaborators of AuthService
type AuthServiceDeps struct {
	Users       UserRepository
	ResetTokens ResetTokenStore
	Tokens      *auth.TokenManager
	Signer      *auth.Signer
	Policy      *auth.Policy
	Mailer      EmailService // nil disables reset mail
	Timing      *auth.TimingDelay
	Logger      *slog.Logger
	Security    *pkglogger.SecurityLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthServiceDeps, config AuthServiceConfig) *AuthService {
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	if config.EmailSendTimeout <= 0 {
		config.EmailSendTimeout = 10 * time.Second
	}
	if config.PhoneRegion == "" {
		config.PhoneRegion = pkgauth.DefaultPhoneRegion
	}
	return &AuthService{
		repo:        deps.Users,
		resetTokens: deps.ResetTokens,
		tm:          deps.Tokens,
		signer:      deps.Signer,
		policy:      deps.Policy,
		mailer:      deps.Mailer,
		timing:      deps.Timing,
		config:      config,
		logger:      deps.Logger,
		security:    deps.Security,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	Points    int     `json:"points"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// AuthResponse is returned on login
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// RefreshResponse carries a freshly minted access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates a new user account with the user role
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)

	if email == "" {
		return nil, models.NewValidationError("email is required")
	}
	if name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var phone *string
	if strings.TrimSpace(input.Phone) != "" {
		normalized, err := pkgauth.NormalizePhone(input.Phone, s.config.PhoneRegion)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		phone = &normalized
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if phone != nil {
		if _, err := s.repo.GetByPhone(ctx, *phone); err == nil {
			s.logger.Info("registration failed: phone already registered")
			return nil, models.ErrPhoneTaken
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, internalError(s.logger, "failed to check phone", err)
		}
	}

	hashedPassword, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}

	// The unique indexes still catch a concurrent registration of the same email or phone.
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, internalError(s.logger, "failed to create user", err)
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	return userModelToResponse(created), nil
}

// Login authenticates a user and returns an access and refresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	start := time.Now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" || password == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.security.Failure(ctx, pkglogger.EventLogin, "", email, "invalid_credentials")
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.security.Failure(ctx, pkglogger.EventLogin, user.ID, email, "invalid_credentials")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	// Status is checked after the password so it is not disclosed to guessers.
	if err := validateAccountState(user); err != nil {
		s.security.Failure(ctx, pkglogger.EventLogin, user.ID, email, "account_"+user.Status)
		return nil, err
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.security.Success(ctx, pkglogger.EventLogin, user.ID, nil)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Me returns the profile of the authenticated user
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, internalError(s.logger, "failed to get user", err, slog.String("user_id", userID))
	}
	return userModelToResponse(user), nil
}

// RefreshToken mints a new access token from a refresh token. Access tokens
// are rejected here, as are refresh tokens issued before the last password change.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*RefreshResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateRefreshToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		if errors.Is(err, models.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.String("user_id", claims.UserID))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		s.security.Failure(ctx, pkglogger.EventRefresh, user.ID, "", "account_"+user.Status)
		return nil, models.ErrUnauthorized
	}

	if claims.IssuedAt != nil && issuedBefore(claims.IssuedAt.Time, user.PasswordChangedAt) {
		s.security.Failure(ctx, pkglogger.EventRefresh, user.ID, "", "issued_before_password_change")
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.security.Success(ctx, pkglogger.EventRefresh, user.ID, nil)
	return &RefreshResponse{AccessToken: accessToken}, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return models.NewValidationError("new password and confirmation do not match")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return internalError(s.logger, "failed to get user", err, slog.String("user_id", userID))
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.security.Failure(ctx, pkglogger.EventPasswordChange, user.ID, "", "invalid_current_password")
		return models.ErrUnauthorized
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.security.Success(ctx, pkglogger.EventPasswordChange, user.ID, nil)
	return nil
}

// RequestPasswordReset mails a reset link when the email belongs to an
// account. It reports success in every case, including store and mail
// failures, so the response never reveals whether an account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		}
		s.security.Failure(ctx, pkglogger.EventResetRequested, "", email, "unknown_email")
		return
	}

	token, err := s.signer.Sign(user.Email, models.PurposePasswordReset)
	if err != nil {
		s.logger.Error("failed to sign reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	s.security.Success(ctx, pkglogger.EventResetRequested, user.ID, nil)

	if s.mailer == nil {
		s.logger.Warn("email transport not configured, reset link not sent", slog.String("user_id", user.ID))
		return
	}

	// The send outlives a client disconnect but not the timeout.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.EmailSendTimeout)
	defer cancel()

	if err := s.mailer.SendPasswordResetEmail(sendCtx, user.Email, user.Name, token, s.config.ResetTokenTTL); err != nil {
		s.logger.Error("failed to send password reset email", slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

// ResetPassword consumes a reset token and sets the new password
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.signer.Verify(token, models.PurposePasswordReset, s.config.ResetTokenTTL)
	if err != nil {
		s.security.Failure(ctx, pkglogger.EventPasswordReset, "", "", tokenFailureReason(err))
		if errors.Is(err, models.ErrTokenExpired) {
			return models.ErrTokenExpired
		}
		return models.ErrTokenInvalid
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.repo.GetByEmail(ctx, claims.Payload)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTokenInvalid
		}
		return internalError(s.logger, "failed to get user for password reset", err)
	}

	// A password set after the token was minted means this link is stale.
	if supersededByPasswordChange(claims.IssuedAt.Time, user.PasswordChangedAt) {
		s.security.Failure(ctx, pkglogger.EventPasswordReset, user.ID, "", "token_superseded")
		return models.ErrTokenInvalid
	}

	if s.config.ResetSingleUse && s.resetTokens != nil {
		expiresAt := claims.IssuedAt.Time.Add(s.config.ResetTokenTTL)
		if err := s.resetTokens.MarkConsumed(ctx, claims.ID, user.Email, expiresAt); err != nil {
			if errors.Is(err, models.ErrConflict) {
				s.security.Failure(ctx, pkglogger.EventPasswordReset, user.ID, "", "token_replayed")
				return models.ErrTokenInvalid
			}
			return internalError(s.logger, "failed to record reset token", err)
		}
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.security.Success(ctx, pkglogger.EventPasswordReset, user.ID, map[string]string{"method": "token"})
	return nil
}

// SetSecurityQuestion stores a recovery question. The current password is required.
func (s *AuthService) SetSecurityQuestion(ctx context.Context, userID, question, answer, password string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.NewValidationError("security question is required")
	}
	if pkgauth.NormalizeSecurityAnswer(answer) == "" {
		return models.NewValidationError("security answer is required")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return internalError(s.logger, "failed to get user", err, slog.String("user_id", userID))
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.security.Failure(ctx, pkglogger.EventSecurityQuestion, user.ID, "", "invalid_password")
		return models.ErrUnauthorized
	}

	answerHash, err := pkgauth.HashSecurityAnswer(answer)
	if err != nil {
		s.logger.Error("failed to hash security answer", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdateSecurityQuestion(ctx, user.ID, question, answerHash); err != nil {
		return internalError(s.logger, "failed to store security question", err, slog.String("user_id", user.ID))
	}

	s.security.Success(ctx, pkglogger.EventSecurityQuestion, user.ID, nil)
	return nil
}

// GetSecurityQuestion returns the question for an email. Unknown emails and
// accounts without a question both yield models.ErrNotFound.
func (s *AuthService) GetSecurityQuestion(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", models.NewValidationError("email is required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", internalError(s.logger, "failed to get user", err)
	}
	if !user.HasSecurityQuestion() {
		return "", models.ErrNotFound
	}
	return *user.SecurityQuestion, nil
}

// IssueResetTokenBySecurityAnswer returns a reset token to a caller who
// answers the security question. The token goes through ResetPassword.
func (s *AuthService) IssueResetTokenBySecurityAnswer(ctx context.Context, email, answer string) (string, error) {
	user, err := s.verifySecurityAnswer(ctx, email, answer)
	if err != nil {
		return "", err
	}

	token, err := s.signer.Sign(user.Email, models.PurposePasswordReset)
	if err != nil {
		s.logger.Error("failed to sign reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.security.Success(ctx, pkglogger.EventResetRequested, user.ID, map[string]string{"method": "security_question"})
	return token, nil
}

// ResetPasswordBySecurityAnswer sets the password directly once the answer
// matches. It has no freshness window, which makes it weaker than the token path.
func (s *AuthService) ResetPasswordBySecurityAnswer(ctx context.Context, email, answer, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.verifySecurityAnswer(ctx, email, answer)
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.security.Success(ctx, pkglogger.EventPasswordReset, user.ID, map[string]string{"method": "security_question"})
	return nil
}

// ResetPasswordByPhone sets the password for the account holding phone.
// Possession of the number is not proven, so the path is off unless enabled.
func (s *AuthService) ResetPasswordByPhone(ctx context.Context, phone, newPassword string) error {
	if !s.config.PhoneRecoveryEnabled {
		return models.ErrRecoveryDisabled
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	normalized, err := pkgauth.NormalizePhone(phone, s.config.PhoneRegion)
	if err != nil {
		return models.NewValidationError(err.Error())
	}

	start := time.Now()
	user, err := s.repo.GetByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.security.Log(ctx, pkglogger.SecurityEvent{
				EventType:     pkglogger.EventRecoveryAttempt,
				FailureReason: "unknown_phone",
				Metadata:      map[string]string{"method": "phone", "phone": pkglogger.SanitizedPhone(normalized)},
			})
			s.timing.WaitFrom(start, false)
			return models.ErrUnauthorized
		}
		return internalError(s.logger, "failed to get user by phone", err)
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.security.Success(ctx, pkglogger.EventPasswordReset, user.ID, map[string]string{"method": "phone"})
	return nil
}

// PromoteUser sets the role of another account. Admin only; an admin cannot
// change their own role.
func (s *AuthService) PromoteUser(ctx context.Context, actorID, targetID, role string) (*UserResponse, error) {
	if role == "" {
		role = models.RoleAdmin
	}
	if !models.IsValidRole(role) {
		return nil, models.NewValidationError("invalid role")
	}

	if err := s.policy.CanManageAccount(ctx, actorID, targetID); err != nil {
		s.security.Failure(ctx, pkglogger.EventRoleChange, targetID, "", "not_permitted")
		return nil, err
	}

	user, err := s.repo.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, internalError(s.logger, "failed to update role", err, slog.String("user_id", targetID))
	}

	s.security.Success(ctx, pkglogger.EventRoleChange, user.ID, map[string]string{
		"actor_id": actorID,
		"role":     role,
	})
	return userModelToResponse(user), nil
}

func (s *AuthService) verifySecurityAnswer(ctx context.Context, email, answer string) (*models.User, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	fail := func(userID, reason string) (*models.User, error) {
		s.security.Log(ctx, pkglogger.SecurityEvent{
			EventType:     pkglogger.EventRecoveryAttempt,
			UserID:        userID,
			Email:         email,
			FailureReason: reason,
			Metadata:      map[string]string{"method": "security_question"},
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	if email == "" || pkgauth.NormalizeSecurityAnswer(answer) == "" {
		return fail("", "missing_fields")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fail("", "unknown_email")
		}
		return nil, internalError(s.logger, "failed to get user", err)
	}
	if !user.HasSecurityQuestion() {
		return fail(user.ID, "no_security_question")
	}
	if err := pkgauth.CompareSecurityAnswer(*user.SecurityAnswerHash, answer); err != nil {
		return fail(user.ID, "wrong_answer")
	}

	return user, nil
}

// setPassword is the single place a password hash is written
func (s *AuthService) setPassword(ctx context.Context, user *models.User, newPassword string) error {
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return internalError(s.logger, "failed to update password", err, slog.String("user_id", user.ID))
	}
	return nil
}

// validateAccountState checks if user account is in valid state for authentication
func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.StatusActive, models.StatusPending:
		return nil
	case models.StatusSuspended:
		return models.ErrAccountSuspended
	default:
		return fmt.Errorf("%w: unknown account status %q", models.ErrForbidden, user.Status)
	}
}

// issuedBefore reports whether a session token minted at issuedAt predates
// the last password change. JWT times have second precision, so the change
// time is truncated and a login in the same second as the change still works.
func issuedBefore(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return issuedAt.Before(changedAt.Truncate(time.Second))
}

// supersededByPasswordChange is the stricter check for reset links. A link
// whose whole-second issue time is not after the change may predate it and
// counts as stale.
func supersededByPasswordChange(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return !issuedAt.After(*changedAt)
}

func tokenFailureReason(err error) string {
	if errors.Is(err, models.ErrTokenExpired) {
		return "token_expired"
	}
	return "token_invalid"
}

// userModelToResponse converts a user model to response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		Status:    user.Status,
		Points:    user.Points,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

// UserToResponse exposes the response mapping to handlers
func UserToResponse(user *models.User) *UserResponse {
	return userModelToResponse(user)
}
