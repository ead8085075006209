package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// UserService defines the interface for user business logic
type UserService interface {
	GetUser(ctx context.Context, actorID, id string) (*models.User, error)
	ListUsers(ctx context.Context, actorID string, limit, offset int) ([]*models.User, error)
	UpdateUser(ctx context.Context, actorID, id string, input services.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
	SetStatus(ctx context.Context, actorID, id, status string) (*models.User, error)
	GetPoints(ctx context.Context, userID string) (int, error)
	RedeemPoints(ctx context.Context, userID string, points int) (*services.Redemption, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Request/Response DTOs

// UpdateUserRequest represents the request body for updating a user.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Role  *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// UpdateStatusRequest represents the request body for an account status change
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended pending"`
}

// RedeemRequest represents the request body for a points redemption
type RedeemRequest struct {
	Points int `json:"points" validate:"required,gt=0"`
}

// PointsResponse reports the caller's balance
type PointsResponse struct {
	Points int `json:"points"`
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []*services.UserResponse `json:"users"`
	Total int                      `json:"total"`
}

// LeaderboardResponse lists the top point holders
type LeaderboardResponse struct {
	Leaders []models.LeaderboardEntry `json:"leaders"`
}

// GetUser retrieves a user by ID
//
// @Summary Get user by ID
// @Param id path string true "User ID"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}

// ListUsers retrieves a page of users. Admin only.
//
// @Summary List users
// @Param limit query int false "Limit (default 50)"
// @Param offset query int false "Offset (default 0)"
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	users, err := h.service.ListUsers(r.Context(), actorID(r), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := &ListUsersResponse{
		Users: make([]*services.UserResponse, len(users)),
		Total: len(users),
	}
	for i, user := range users {
		response.Users[i] = services.UserToResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// UpdateUser edits a profile. Only admins may change a role.
//
// @Summary Update user
// @Accept json
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Update user request"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), actorID(r), chi.URLParam(r, "id"), services.UpdateUserInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Role:  req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}

// DeleteUser removes an account. Admins cannot delete themselves.
//
// @Summary Delete user
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus changes an account's status. Admin only.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.service.SetStatus(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}

// GetPoints returns the caller's point balance
func (h *UserHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	points, err := h.service.GetPoints(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, PointsResponse{Points: points})
}

// RedeemPoints converts points to airtime. An overdraw is a 409.
//
// @Summary Redeem points
// @Accept json
// @Param request body RedeemRequest true "Redeem request"
// @Produce json
// @Success 200 {object} services.Redemption
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /users/redeem [post]
func (h *UserHandler) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RedeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	redemption, err := h.service.RedeemPoints(r.Context(), claims.UserID, req.Points)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, redemption)
}

// Leaderboard lists the top point holders. Public.
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = n
	}

	leaders, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if leaders == nil {
		leaders = []models.LeaderboardEntry{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, LeaderboardResponse{Leaders: leaders})
}
