package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 6
	MaxPasswordLen = 72 // bcrypt ignores input past 72 bytes
)

// BcryptCost is the work factor for password and security answer hashes.
// Tests lower it to bcrypt.MinCost.
var BcryptCost = 12

// PasswordValidationError holds validation error details
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Errors, ", ")
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a plaintext password against its bcrypt hash in constant time
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the length policy for new passwords
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	if len(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}

// NormalizeSecurityAnswer lower-cases and trims an answer. Both hashing and
// verification go through it so "  Nairobi " matches "nairobi".
func NormalizeSecurityAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func HashSecurityAnswer(answer string) (string, error) {
	normalized := NormalizeSecurityAnswer(answer)
	if normalized == "" {
		return "", fmt.Errorf("security answer cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword(answerDigest(normalized), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash security answer: %w", err)
	}
	return string(hashedBytes), nil
}

func CompareSecurityAnswer(hashedAnswer, answer string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedAnswer), answerDigest(NormalizeSecurityAnswer(answer)))
}

// answerDigest fits answers of any length under bcrypt's 72-byte input limit
func answerDigest(normalized string) []byte {
	sum := sha256.Sum256([]byte(normalized))
	return []byte(hex.EncodeToString(sum[:]))
}
