// Package artifacts declares the repository contract for artifact records:
// the metadata of physically stored objects and their version chains.
package artifacts

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Repository stores artifact records. Physical bytes live in a storage.BlobStore.
type Repository interface {
	// Create inserts a; ID must be set, CreatedAt is filled in.
	Create(ctx context.Context, a *models.Artifact) error

	// Get returns the artifact with id or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Artifact, error)

	// Update applies patch to the artifact with id and returns the result.
	Update(ctx context.Context, id string, patch models.ArtifactPatch) (*models.Artifact, error)

	// Delete removes the record. Missing records are common.ErrorNotFound.
	Delete(ctx context.Context, id string) error

	// ListChain returns every version of chainID, oldest first.
	ListChain(ctx context.Context, chainID string) ([]*models.Artifact, error)

	// ListByScope returns every artifact owned by scope, all versions included,
	// ordered by chain and version.
	ListByScope(ctx context.Context, scope models.Scope) ([]*models.Artifact, error)

	// SumSizes returns the total size of live artifacts owned by scope.
	SumSizes(ctx context.Context, scope models.Scope) (int64, error)
}
