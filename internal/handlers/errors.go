package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// writeServiceError maps a service error onto the API error taxonomy.
// Anything unrecognised becomes a 500 with no internal detail.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationError(w, "Validation failed", ve.Message)
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusBadRequest, "token_expired", "Token has expired")
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Bad request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrAccountSuspended):
		pkghttp.WriteError(w, http.StatusForbidden, "account_suspended", "Account is suspended")
	case errors.Is(err, models.ErrRecoveryDisabled):
		pkghttp.WriteError(w, http.StatusForbidden, "recovery_disabled", "This recovery method is disabled")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden: you cannot access this resource")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrInsufficientPoints):
		pkghttp.WriteError(w, http.StatusConflict, "insufficient_points", "Insufficient points")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// actorID returns the authenticated user ID, or "" for anonymous requests
func actorID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return ""
}
