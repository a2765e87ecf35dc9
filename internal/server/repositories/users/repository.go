// Package users declares the user repository contract and its PostgreSQL
// and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Repository persists user accounts.
type Repository interface {
	// Create stores user and fills in its ID. Duplicate names fail with
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// SetTwoFactorSeed stores a sealed seed blob ("" clears it).
	SetTwoFactorSeed(ctx context.Context, id string, sealed string) error
	List(ctx context.Context) ([]*models.User, error)
}
