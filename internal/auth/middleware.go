package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/ajali/internal/models"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

var errNoToken = errors.New("missing authorization header")

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header format")
	}

	return strings.TrimSpace(parts[1]), nil
}

// BearerToken exposes header parsing to handlers that accept a token outside the middleware (refresh)
func BearerToken(r *http.Request) (string, bool) {
	token, err := bearerToken(r)
	return token, err == nil
}

// Authenticate validates access tokens and injects user claims into context.
// Refresh tokens are rejected.
func Authenticate(tm *TokenManager) func(next http.Handler) http.Handler {
	return authenticate(tm, false)
}

// OptionalAuthenticate lets requests without an Authorization header through
// anonymously. A header that is present but invalid is still rejected.
func OptionalAuthenticate(tm *TokenManager) func(next http.Handler) http.Handler {
	return authenticate(tm, true)
}

func authenticate(tm *TokenManager, optional bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				if optional && errors.Is(err, errNoToken) {
					next.ServeHTTP(w, r)
					return
				}
				pkghttp.WriteUnauthorized(w, err.Error())
				return
			}

			claims, err := tm.ValidateAccessToken(tokenString)
			if err != nil {
				if errors.Is(err, models.ErrTokenExpired) {
					pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "token has expired")
					return
				}
				pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole enforces that the authenticated user currently holds role.
// Must be mounted after Authenticate.
func RequireRole(policy *Policy, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if err := policy.Authorize(r.Context(), claims.UserID, "", role); err != nil {
				switch {
				case errors.Is(err, models.ErrUnauthorized):
					pkghttp.WriteUnauthorized(w, "unauthorized")
				case errors.Is(err, models.ErrForbidden):
					pkghttp.WriteForbidden(w, "insufficient permissions")
				default:
					pkghttp.WriteInternalError(w, "internal server error")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithClaims attaches claims to ctx
func ContextWithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext extracts user claims from request context.
// Returns nil for anonymous requests.
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
