package logger

import (
	"context"
	"log/slog"
)

// SecurityEvent is a single security-relevant account event
type SecurityEvent struct {
	EventType     string
	UserID        string
	Email         string // masked before it is written
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

const (
	EventLogin            = "login"
	EventRefresh          = "token_refresh"
	EventPasswordChange   = "password_change"
	EventResetRequested   = "password_reset_requested"
	EventPasswordReset    = "password_reset"
	EventSecurityQuestion = "security_question_set"
	EventRecoveryAttempt  = "recovery_attempt"
	EventRoleChange       = "role_change"
	EventStatusChange     = "status_change"
	EventAccountDeleted   = "account_deleted"
	EventPointsRedeemed   = "points_redeemed"
)

// SecurityLogger writes structured security events through slog.
// Failures are logged at warn, successes at info.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With(slog.String("log_type", "security")),
	}
}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta stores the client address and user agent on ctx. Events
// logged with that context pick them up when they do not set their own.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

// Log writes one event
func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent) {
	if sl == nil {
		return
	}

	if meta, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		if event.IPAddress == "" {
			event.IPAddress = meta.ip
		}
		if event.UserAgent == "" {
			event.UserAgent = meta.userAgent
		}
	}

	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(ctx, level, "security event", attrs...)
}

// Success is shorthand for a successful event with optional metadata
func (sl *SecurityLogger) Success(ctx context.Context, eventType, userID string, metadata map[string]string) {
	sl.Log(ctx, SecurityEvent{EventType: eventType, UserID: userID, Success: true, Metadata: metadata})
}

// Failure is shorthand for a failed event
func (sl *SecurityLogger) Failure(ctx context.Context, eventType, userID, email, reason string) {
	sl.Log(ctx, SecurityEvent{EventType: eventType, UserID: userID, Email: email, FailureReason: reason})
}
