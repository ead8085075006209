package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/ajali/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer issues stateless, purpose-bound tokens (password reset links).
//
// Each purpose gets its own HMAC key derived from the process secret, and the
// purpose is also carried as a claim. A token minted for one purpose therefore
// fails verification for any other, and session tokens signed by TokenManager
// never verify here. Rotating the secret invalidates every outstanding token.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer over the given secret
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *Signer) key(purpose string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("signer:" + purpose))
	return mac.Sum(nil)
}

// Sign binds payload to purpose and the current time
func (s *Signer) Sign(payload, purpose string) (string, error) {
	if purpose == "" {
		return "", fmt.Errorf("purpose is required")
	}

	claims := &models.SignedClaims{
		Purpose: purpose,
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.New().String(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key(purpose))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify checks the signature and purpose of a token, then its age.
// A bad signature or wrong purpose yields models.ErrTokenInvalid; a token older
// than maxAge yields models.ErrTokenExpired.
func (s *Signer) Verify(tokenString, purpose string, maxAge time.Duration) (*models.SignedClaims, error) {
	claims := &models.SignedClaims{}

	// Age is checked against maxAge below, not against an exp claim.
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key(purpose), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: bad signature", models.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: wrong purpose", models.ErrTokenInvalid)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing issue time", models.ErrTokenInvalid)
	}

	age := s.now().Sub(claims.IssuedAt.Time)
	if age < -time.Minute {
		return nil, fmt.Errorf("%w: issued in the future", models.ErrTokenInvalid)
	}
	if age > maxAge {
		return nil, models.ErrTokenExpired
	}

	return claims, nil
}
