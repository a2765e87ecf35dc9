// Package refreshtokens stores login sessions keyed by their opaque refresh
// token.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Repository persists sessions. Deleting absent rows is not an error.
type Repository interface {
	// Create stores t. UserID, Token and ExpiresAt must be set.
	Create(ctx context.Context, t *models.RefreshToken) error

	// Find returns the session for token or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete revokes a single session.
	Delete(ctx context.Context, token string) error

	// DeleteByUser revokes every session of userID and returns how many
	// were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes sessions that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
