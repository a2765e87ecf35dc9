// Package spaces declares the repository contract for shared spaces and
// their membership.
package spaces

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Repository stores shared spaces. Returned spaces carry their full member map.
type Repository interface {
	// Create inserts s together with its members.
	Create(ctx context.Context, s *models.SharedSpace) error
	Get(ctx context.Context, id string) (*models.SharedSpace, error)
	// List returns every space, used to register scopes at startup.
	List(ctx context.Context) ([]*models.SharedSpace, error)
	// ListForUser returns the spaces userID is a member of.
	ListForUser(ctx context.Context, userID string) ([]*models.SharedSpace, error)
	// AddMember fails with common.ErrorAlreadyExists for an existing member.
	AddMember(ctx context.Context, spaceID, userID string, role models.Role) error
	RemoveMember(ctx context.Context, spaceID, userID string) error
	SetRole(ctx context.Context, spaceID, userID string, role models.Role) error
	// Delete removes the space and its memberships.
	Delete(ctx context.Context, id string) error
}
