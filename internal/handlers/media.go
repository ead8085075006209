package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

const (
	// multipartOverhead covers form boundaries and headers around the file
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

// MediaServiceInterface defines the interface for media business logic
type MediaServiceInterface interface {
	Upload(ctx context.Context, actorID, incidentID string, input services.UploadInput) (*models.Media, error)
	ListForIncident(ctx context.Context, actorID, incidentID string) ([]*models.Media, error)
	Delete(ctx context.Context, actorID, id string) error
}

// MediaHandler handles incident attachment requests
type MediaHandler struct {
	service  MediaServiceInterface
	maxBytes int64
}

// NewMediaHandler creates a new MediaHandler. maxBytes bounds a single upload.
func NewMediaHandler(service MediaServiceInterface, maxBytes int64) *MediaHandler {
	return &MediaHandler{service: service, maxBytes: maxBytes}
}

// ListMediaResponse wraps an incident's attachments
type ListMediaResponse struct {
	Media []*models.Media `json:"media"`
}

// Upload accepts a multipart "file" field and attaches it to an incident
//
// @Summary Upload incident media
// @Accept multipart/form-data
// @Param incidentID path string true "Incident ID"
// @Produce json
// @Success 201 {object} models.Media
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 413 {object} pkghttp.ErrorResponse
// @Router /media/{incidentID}/upload [post]
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkghttp.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "File is too large")
			return
		}
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		pkghttp.WriteValidationError(w, "Validation failed", "file: this field is required")
		return
	}
	defer file.Close()

	media, err := h.service.Upload(r.Context(), actorID(r), chi.URLParam(r, "incidentID"), services.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, media)
}

// ListForIncident returns an incident's attachments
func (h *MediaHandler) ListForIncident(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListForIncident(r.Context(), actorID(r), chi.URLParam(r, "incidentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []*models.Media{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListMediaResponse{Media: items})
}

// Delete removes an attachment
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
