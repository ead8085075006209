package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/background"
	"github.com/BradenHooton/ajali/internal/config"
	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/handlers"
	middlewareCustom "github.com/BradenHooton/ajali/internal/middleware"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/repositories"
	"github.com/BradenHooton/ajali/internal/routes"
	"github.com/BradenHooton/ajali/internal/services"
	pkgauth "github.com/BradenHooton/ajali/pkg/auth"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
	pkglogger "github.com/BradenHooton/ajali/pkg/logger"
)

const (
	redeemRateLimit = 10
	uploadRateLimit = 20
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		logger.Warn("unknown log level, using info", slog.String("log_level", cfg.Server.LogLevel))
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		pkglogger.RedactedAttr("db_host", cfg.Database.Host, cfg.Server.Env))

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, cfg.Database.DSN(), logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	incidentRepo := repositories.NewIncidentRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	mediaRepo := repositories.NewMediaRepository(db)
	resetTokenRepo := repositories.NewResetTokenRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval)
	cleanupManager.Register("reset_tokens", resetTokenRepo)

	// Token issuance and authorization
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	signer := auth.NewSigner(cfg.Auth.ResetSecret)
	policy := auth.NewPolicy(userRepo)
	securityLogger := pkglogger.NewSecurityLogger(logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingBaseDelayMs,
		RandomDelayMs: cfg.Auth.TimingRandomDelayMs,
	})

	// AWS SES email service. Reset requests still succeed without it.
	var mailer services.EmailService
	if cfg.Email.FromAddress != "" {
		sesMailer, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetURLBase, logger)
		if err != nil {
			logger.Warn("email service unavailable, reset links will not be sent", slog.Any("error", err))
		} else {
			mailer = sesMailer
		}
	}

	// S3 media storage
	storage, err := services.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize media storage", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	authService := services.NewAuthService(services.AuthServiceDeps{
		Users:       userRepo,
		ResetTokens: resetTokenRepo,
		Tokens:      tokenManager,
		Signer:      signer,
		Policy:      policy,
		Mailer:      mailer,
		Timing:      timingDelay,
		Logger:      logger,
		Security:    securityLogger,
	}, services.AuthServiceConfig{
		ResetTokenTTL:        cfg.Auth.ResetTokenTTL,
		ResetSingleUse:       cfg.Auth.ResetSingleUse,
		PhoneRecoveryEnabled: cfg.Auth.PhoneRecoveryEnabled,
		PhoneRegion:          cfg.Auth.PhoneRegion,
		EmailSendTimeout:     cfg.Email.SendTimeout,
	})
	mediaService := services.NewMediaService(mediaRepo, incidentRepo, storage, policy, cfg.Storage.MaxUploadBytes, logger)
	userService := services.NewUserService(userRepo, mediaService, policy, services.PointsConfig{
		AirtimeRate:    cfg.Rewards.AirtimeRate,
		LeaderboardMax: cfg.Rewards.LeaderboardMax,
		PhoneRegion:    cfg.Auth.PhoneRegion,
	}, logger, securityLogger)
	incidentService := services.NewIncidentService(incidentRepo, commentRepo, mediaService, policy, cfg.Rewards.ResolutionPoints, logger)
	adminService := services.NewAdminService(userRepo, incidentRepo, policy, logger)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RequestLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// Register routes
	routes.RegisterRoutes(router, routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Users:     handlers.NewUserHandler(userService),
		Incidents: handlers.NewIncidentHandler(incidentService),
		Media:     handlers.NewMediaHandler(mediaService, cfg.Storage.MaxUploadBytes),
		Admin:     handlers.NewAdminHandler(adminService),
		Health:    handlers.NewHealthHandler(db, logger),
	}, tokenManager, policy, routes.Limits{
		Login:    cfg.Auth.LoginRateLimit,
		Recovery: cfg.Auth.RecoveryRateLimit,
		Redeem:   redeemRateLimit,
		Upload:   uploadRateLimit,
		IPConfig: ipConfig,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("invalid ADMIN_PASSWORD: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
