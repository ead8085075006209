package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/handlers"
	"github.com/BradenHooton/ajali/internal/middleware"
	"github.com/BradenHooton/ajali/internal/models"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// APIPrefix is the mount point of every versioned endpoint
const APIPrefix = "/api/v1"

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Incidents *handlers.IncidentHandler
	Media     *handlers.MediaHandler
	Admin     *handlers.AdminHandler
	Health    *handlers.HealthHandler
}

// Limits holds per-minute request budgets for throttled endpoints
type Limits struct {
	Login    int
	Recovery int
	Redeem   int
	Upload   int
	IPConfig *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager, policy *auth.Policy, limits Limits) {
	loginLimit := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestsPerMinute: limits.Login, IPConfig: limits.IPConfig})
	recoveryLimit := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestsPerMinute: limits.Recovery, IPConfig: limits.IPConfig})
	redeemLimit := middleware.RateLimitByUser(middleware.RateLimitConfig{RequestsPerMinute: limits.Redeem, IPConfig: limits.IPConfig})
	uploadLimit := middleware.RateLimitByUser(middleware.RateLimitConfig{RequestsPerMinute: limits.Upload, IPConfig: limits.IPConfig})

	requireAuth := auth.Authenticate(tokenManager)
	requireAdmin := auth.RequireRole(policy, models.RoleAdmin)

	router.Get("/health", h.Health.Health)

	router.Route(APIPrefix, func(r chi.Router) {
		// Public routes - no authentication required
		r.Group(func(r chi.Router) {
			r.Use(loginLimit)
			r.Post("/auth/signup", h.Auth.Register)
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/refresh", h.Auth.RefreshToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(recoveryLimit)
			r.Post("/auth/forgot-password", h.Auth.ForgotPassword)
			r.Post("/auth/request-password-reset", h.Auth.ForgotPassword)
			r.Post("/auth/reset-password", h.Auth.ResetPassword)
			r.Post("/auth/reset-password/{token}", h.Auth.ResetPassword)
			r.Post("/auth/security-question", h.Auth.GetSecurityQuestion)
			r.Post("/auth/security-question/verify", h.Auth.VerifySecurityAnswer)
			r.Post("/auth/reset-password-security", h.Auth.ResetPasswordBySecurityAnswer)
			r.Post("/auth/reset-password-phone", h.Auth.ResetPasswordByPhone)
		})

		r.Get("/users/leaderboard", h.Users.Leaderboard)

		// Incidents are readable anonymously; a bearer token, when sent, must be valid
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuthenticate(tokenManager))
			r.Get("/incidents", h.Incidents.List)
			r.Get("/incidents/{id}", h.Incidents.Get)
			r.Get("/incidents/{id}/comments", h.Incidents.ListComments)
		})

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", h.Auth.Me)
			r.Put("/auth/change-password", h.Auth.ChangePassword)
			r.Put("/auth/security-question", h.Auth.SetSecurityQuestion)
			r.Put("/auth/users/{id}/promote", h.Auth.PromoteUser)
			r.Patch("/auth/promote/{id}", h.Auth.PromoteUser)

			r.Get("/users/points", h.Users.GetPoints)
			r.With(redeemLimit).Post("/users/redeem", h.Users.RedeemPoints)
			r.Get("/users/{id}", h.Users.GetUser)
			r.Put("/users/{id}", h.Users.UpdateUser)

			r.Get("/incidents/mine", h.Incidents.ListMine)
			r.Post("/incidents", h.Incidents.Create)
			r.Put("/incidents/{id}", h.Incidents.Update)
			r.Patch("/incidents/{id}", h.Incidents.Update)
			r.Delete("/incidents/{id}", h.Incidents.Delete)
			r.Post("/incidents/{id}/comments", h.Incidents.AddComment)
			r.Delete("/comments/{id}", h.Incidents.DeleteComment)

			r.With(uploadLimit).Post("/media/{incidentID}/upload", h.Media.Upload)
			r.Get("/media/incident/{incidentID}", h.Media.ListForIncident)
			r.Delete("/media/{id}", h.Media.Delete)

			// Admin-only routes. Services re-check the role against the store.
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/users", h.Users.ListUsers)
				r.Delete("/users/{id}", h.Users.DeleteUser)
				r.Put("/users/{id}/status", h.Users.UpdateStatus)
				r.Patch("/incidents/{id}/status", h.Incidents.UpdateStatus)
				r.Get("/admin/dashboard/stats", h.Admin.GetDashboardStats)
			})
		})
	})
}
