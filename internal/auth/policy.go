package auth

import (
	"context"
	"errors"

	"github.com/BradenHooton/ajali/internal/models"
)

// UserRepository is the slice of the user store the policy needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Policy is the single authorization decision point. Roles are read from the
// store on each decision, so a demotion takes effect before tokens expire.
type Policy struct {
	users UserRepository
}

// NewPolicy creates a Policy backed by the user store
func NewPolicy(users UserRepository) *Policy {
	return &Policy{users: users}
}

// Authorize decides whether actorID may act on a resource owned by ownerID.
//
// With requiredRole set, the actor must hold that role and ownership is not
// considered. Otherwise the actor must be the owner or an admin. An empty
// ownerID with no required role means the resource has no owner and only
// admins pass.
func (p *Policy) Authorize(ctx context.Context, actorID, ownerID, requiredRole string) error {
	if actorID == "" {
		return models.ErrUnauthorized
	}

	if requiredRole == "" && ownerID != "" && actorID == ownerID {
		return nil
	}

	actor, err := p.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return err
	}

	if requiredRole != "" {
		if actor.Role != requiredRole {
			return models.ErrForbidden
		}
		return nil
	}

	if actor.IsAdmin() {
		return nil
	}

	return models.ErrForbidden
}

// RequireAdmin is Authorize for admin-gated actions
func (p *Policy) RequireAdmin(ctx context.Context, actorID string) error {
	return p.Authorize(ctx, actorID, "", models.RoleAdmin)
}

// CanManageAccount allows admins to delete, re-role or change the status of
// any account except their own. Self-service goes through the owner paths.
func (p *Policy) CanManageAccount(ctx context.Context, actorID, targetID string) error {
	if err := p.RequireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return models.ErrForbidden
	}
	return nil
}
