package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// resetRequestedMessage is returned for every reset request, known email or not
const resetRequestedMessage = "If that email is registered, a password reset link has been sent"

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error)
	Login(ctx context.Context, email, password string) (*services.AuthResponse, error)
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.RefreshResponse, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error
	RequestPasswordReset(ctx context.Context, email string)
	ResetPassword(ctx context.Context, token, newPassword string) error
	SetSecurityQuestion(ctx context.Context, userID, question, answer, password string) error
	GetSecurityQuestion(ctx context.Context, email string) (string, error)
	IssueResetTokenBySecurityAnswer(ctx context.Context, email, answer string) (string, error)
	ResetPasswordBySecurityAnswer(ctx context.Context, email, answer, newPassword string) error
	ResetPasswordByPhone(ctx context.Context, phone, newPassword string) error
	PromoteUser(ctx context.Context, actorID, targetID, role string) (*services.UserResponse, error)
}

// AuthHandler handles authentication and account recovery requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// RegisterRequest represents the request body for sign-up
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the optional body of a refresh call
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	ConfirmNewPassword string `json:"confirm_new_password" validate:"required"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the new password for a reset link.
// Token is only read when the path carries none.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
	Password    string `json:"password"`
}

// SetSecurityQuestionRequest sets the caller's recovery question
type SetSecurityQuestionRequest struct {
	SecurityQuestion string `json:"security_question" validate:"required,max=255"`
	SecurityAnswer   string `json:"security_answer" validate:"required,max=255"`
	CurrentPassword  string `json:"current_password" validate:"required"`
}

// SecurityQuestionLookupRequest asks for the question set on an account
type SecurityQuestionLookupRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// SecurityAnswerRequest proves knowledge of the security answer
type SecurityAnswerRequest struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	SecurityAnswer string `json:"security_answer" validate:"required"`
}

// SecurityResetRequest resets a password with the security answer
type SecurityResetRequest struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	SecurityAnswer string `json:"security_answer" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required"`
}

// PhoneResetRequest resets a password by registered phone number
type PhoneResetRequest struct {
	Phone       string `json:"phone" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// PromoteRequest optionally names the role to grant
type PromoteRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// SecurityQuestionResponse returns an account's recovery question
type SecurityQuestionResponse struct {
	Question string `json:"question"`
}

// ResetTokenResponse returns a reset token earned by a security answer
type ResetTokenResponse struct {
	ResetToken string `json:"reset_token"`
}

// Register handles account sign-up
// @Summary Register a new user
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} services.UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, models.ErrPhoneTaken) {
			pkghttp.WriteConflict(w, "Phone number is already registered")
			return
		}
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Email is already registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// RefreshToken exchanges a refresh token for a new access token. The token is
// read from the Authorization header first, then from the body.
// @Summary Refresh access token
// @Produce json
// @Success 200 {object} services.RefreshResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		var req RefreshTokenRequest
		if err := decodeOptionalJSON(w, r, &req); err != nil {
			writeServiceError(w, err)
			return
		}
		token = req.RefreshToken
	}

	resp, err := h.service.RefreshToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTokenExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Refresh token has expired")
		case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid refresh token")
		default:
			writeServiceError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword starts an emailed reset. The response is identical whether
// or not the email belongs to an account.
// @Summary Request a password reset link
// @Accept json
// @Produce json
// @Success 200 {object} pkghttp.MessageResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	h.service.RequestPasswordReset(r.Context(), req.Email)
	pkghttp.WriteMessage(w, http.StatusOK, resetRequestedMessage)
}

// ResetPassword completes a reset with a signed token from the path or body
// @Summary Reset password with a reset token
// @Accept json
// @Param token path string false "Reset token"
// @Produce json
// @Success 200 {object} pkghttp.MessageResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	token := chi.URLParam(r, "token")
	if token == "" {
		token = req.Token
	}
	if strings.TrimSpace(token) == "" {
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_token", "Reset token is required")
		return
	}

	newPassword := req.NewPassword
	if newPassword == "" {
		newPassword = req.Password
	}

	if err := h.service.ResetPassword(r.Context(), token, newPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password has been reset")
}

// ChangePassword replaces the caller's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Incorrect current password")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password changed successfully")
}

// SetSecurityQuestion stores the caller's recovery question and answer
func (h *AuthHandler) SetSecurityQuestion(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req SetSecurityQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	err := h.service.SetSecurityQuestion(r.Context(), claims.UserID, req.SecurityQuestion, req.SecurityAnswer, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Incorrect current password")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Security question updated successfully")
}

// GetSecurityQuestion returns the recovery question for an email
func (h *AuthHandler) GetSecurityQuestion(w http.ResponseWriter, r *http.Request) {
	var req SecurityQuestionLookupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	question, err := h.service.GetSecurityQuestion(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No security question is set for this account")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SecurityQuestionResponse{Question: question})
}

// VerifySecurityAnswer trades a correct answer for a reset token
func (h *AuthHandler) VerifySecurityAnswer(w http.ResponseWriter, r *http.Request) {
	var req SecurityAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := h.service.IssueResetTokenBySecurityAnswer(r.Context(), req.Email, req.SecurityAnswer)
	if err != nil {
		writeRecoveryError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ResetTokenResponse{ResetToken: token})
}

// ResetPasswordBySecurityAnswer resets a password in one step with the answer
func (h *AuthHandler) ResetPasswordBySecurityAnswer(w http.ResponseWriter, r *http.Request) {
	var req SecurityResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.service.ResetPasswordBySecurityAnswer(r.Context(), req.Email, req.SecurityAnswer, req.NewPassword); err != nil {
		writeRecoveryError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password has been reset")
}

// ResetPasswordByPhone resets a password for the account holding a phone number
func (h *AuthHandler) ResetPasswordByPhone(w http.ResponseWriter, r *http.Request) {
	var req PhoneResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.service.ResetPasswordByPhone(r.Context(), req.Phone, req.NewPassword); err != nil {
		writeRecoveryError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password has been reset")
}

// PromoteUser grants a role to another user. Admin only.
// @Summary Promote a user
// @Param id path string true "User ID"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /auth/users/{id}/promote [put]
func (h *AuthHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req PromoteRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.service.PromoteUser(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// writeRecoveryError keeps recovery failures generic
func writeRecoveryError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteUnauthorized(w, "Recovery details did not match")
		return
	}
	writeServiceError(w, err)
}
