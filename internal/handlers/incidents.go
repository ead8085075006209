package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// IncidentServiceInterface defines the interface for incident business logic
type IncidentServiceInterface interface {
	List(ctx context.Context, status string, limit, offset int) ([]*models.Incident, error)
	ListMine(ctx context.Context, userID string, limit, offset int) ([]*models.Incident, error)
	Get(ctx context.Context, id string) (*models.Incident, error)
	Create(ctx context.Context, userID string, input services.IncidentInput) (*models.Incident, error)
	Update(ctx context.Context, actorID, id string, input services.IncidentInput) (*models.Incident, error)
	UpdateStatus(ctx context.Context, actorID, id, status string) (*models.Incident, error)
	Delete(ctx context.Context, actorID, id string) error
	AddComment(ctx context.Context, userID, incidentID, content string) (*models.Comment, error)
	ListComments(ctx context.Context, incidentID string) ([]*models.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID string) error
}

// IncidentHandler handles incident and comment requests
type IncidentHandler struct {
	service IncidentServiceInterface
}

// NewIncidentHandler creates a new IncidentHandler
func NewIncidentHandler(service IncidentServiceInterface) *IncidentHandler {
	return &IncidentHandler{service: service}
}

// IncidentRequest is the body for creating or editing an incident
type IncidentRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (req IncidentRequest) input() services.IncidentInput {
	return services.IncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
}

// IncidentStatusRequest is the body of a status change
type IncidentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CommentRequest is the body of a new comment
type CommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// ListIncidentsResponse wraps a page of incidents
type ListIncidentsResponse struct {
	Incidents []*models.Incident `json:"incidents"`
	Total     int                `json:"total"`
}

// ListCommentsResponse wraps an incident's comments
type ListCommentsResponse struct {
	Comments []*models.Comment `json:"comments"`
}

// List returns incidents newest first, optionally filtered by ?status=
//
// @Summary List incidents
// @Param status query string false "Status filter"
// @Produce json
// @Success 200 {object} ListIncidentsResponse
// @Router /incidents [get]
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	incidents, err := h.service.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeIncidentList(w, incidents)
}

// ListMine returns the caller's own reports
func (h *IncidentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	incidents, err := h.service.ListMine(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeIncidentList(w, incidents)
}

// Get returns one incident
func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, inc)
}

// Create files a new incident
//
// @Summary Report an incident
// @Accept json
// @Param request body IncidentRequest true "Incident"
// @Produce json
// @Success 201 {object} models.Incident
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /incidents [post]
func (h *IncidentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req IncidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	inc, err := h.service.Create(r.Context(), claims.UserID, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, inc)
}

// Update edits an incident for its reporter or an admin
func (h *IncidentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req IncidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	inc, err := h.service.Update(r.Context(), actorID(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, inc)
}

// UpdateStatus moves an incident through its lifecycle. Admin only.
func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req IncidentStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	inc, err := h.service.UpdateStatus(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, inc)
}

// Delete removes an incident
func (h *IncidentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddComment posts a comment on an incident
func (h *IncidentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	comment, err := h.service.AddComment(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, comment)
}

// ListComments returns the comments on an incident
func (h *IncidentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListCommentsResponse{Comments: comments})
}

// DeleteComment removes a comment for its author or an admin
func (h *IncidentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteComment(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeIncidentList(w http.ResponseWriter, incidents []*models.Incident) {
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListIncidentsResponse{Incidents: incidents, Total: len(incidents)})
}
