package services

import (
	"errors"
	"log/slog"

	"github.com/BradenHooton/ajali/internal/models"
)

// clientErrors are sentinels that handlers map to a 4xx response
var clientErrors = []error{
	models.ErrNotFound,
	models.ErrConflict,
	models.ErrUnauthorized,
	models.ErrForbidden,
	models.ErrBadRequest,
	models.ErrTokenExpired,
	models.ErrTokenInvalid,
	models.ErrAccountSuspended,
	models.ErrInsufficientPoints,
	models.ErrRecoveryDisabled,
}

func isClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// internalError passes client errors through untouched. Anything else is
// logged and replaced by models.ErrInternalServer.
func internalError(logger *slog.Logger, msg string, err error, attrs ...any) error {
	if isClientError(err) {
		return err
	}
	logger.Error(msg, append(attrs, slog.Any("error", err))...)
	return models.ErrInternalServer
}
