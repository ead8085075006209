package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
)

type User struct {
	ID                 string
	Name               string
	Email              string
	Phone              *string // E.164, used for phone recovery lookup
	PasswordHash       string
	SecurityQuestion   *string
	SecurityAnswerHash *string
	Role               string
	Status             string
	Points             int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PasswordChangedAt  *time.Time // Tokens issued before this are rejected on refresh
}

// HasSecurityQuestion reports whether the account has both a question and an answer set
func (u *User) HasSecurityQuestion() bool {
	return u.SecurityQuestion != nil && *u.SecurityQuestion != "" &&
		u.SecurityAnswerHash != nil && *u.SecurityAnswerHash != ""
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleAdmin:     true,
	RoleModerator: true,
}

var validStatuses = map[string]bool{
	StatusActive:    true,
	StatusSuspended: true,
	StatusPending:   true,
}

// IsValidRole checks if a role exists in the whitelist
func IsValidRole(role string) bool {
	return validRoles[role]
}

// IsValidStatus checks if an account status exists in the whitelist
func IsValidStatus(status string) bool {
	return validStatuses[status]
}

// LeaderboardEntry is the public projection of a user on the points leaderboard
type LeaderboardEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// UserStats aggregates account counts for the admin dashboard
type UserStats struct {
	Total       int            `json:"total"`
	ByRole      map[string]int `json:"by_role"`
	ByStatus    map[string]int `json:"by_status"`
	TotalPoints int64          `json:"total_points"`
}
