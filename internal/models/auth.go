package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// PurposePasswordReset tags reset tokens so they never verify for another use
const PurposePasswordReset = "password-reset"

// TokenClaims are carried by session (access and refresh) tokens
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignedClaims are carried by purpose-bound tokens such as password reset links
type SignedClaims struct {
	Purpose string `json:"purpose"`
	Payload string `json:"payload"`
	jwt.RegisteredClaims
}

// ConsumedResetToken records a reset token that has already been used
type ConsumedResetToken struct {
	JTI        string
	Email      string
	ConsumedAt time.Time
	ExpiresAt  time.Time
}
