package models

import "time"

const (
	IncidentStatusPending    = "pending"
	IncidentStatusInProgress = "in-progress"
	IncidentStatusResolved   = "resolved"
	IncidentStatusRejected   = "rejected"
)

var validIncidentStatuses = map[string]bool{
	IncidentStatusPending:    true,
	IncidentStatusInProgress: true,
	IncidentStatusResolved:   true,
	IncidentStatusRejected:   true,
}

// IsValidIncidentStatus checks if an incident status exists in the whitelist
func IsValidIncidentStatus(status string) bool {
	return validIncidentStatuses[status]
}

type Incident struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	RewardPaid  bool      `json:"reward_paid"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Media       []Media   `json:"media,omitempty"`
}

type Comment struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncidentFilter narrows incident listings
type IncidentFilter struct {
	Status    string
	CreatedBy string
	Limit     int
	Offset    int
}

// IncidentStats aggregates incidents per status for the admin dashboard
type IncidentStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
