package artifacts

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	space := models.SpaceScope("s1")

	a1 := &models.Artifact{ID: "a1", ChainID: "c1", Version: 1, Name: "f", Size: 100, Scope: space}
	a2 := &models.Artifact{ID: "a2", ChainID: "c1", PreviousID: "a1", Version: 2, Name: "f", Size: 200, Scope: space}
	b1 := &models.Artifact{ID: "b1", ChainID: "c2", Version: 1, Size: 50, Scope: models.PersonalScope("u1")}
	for _, a := range []*models.Artifact{a2, a1, b1} {
		require.NoError(t, r.Create(ctx, a))
	}
	assert.ErrorIs(t, r.Create(ctx, &models.Artifact{ID: "a1"}), common.ErrorAlreadyExists)
	assert.ErrorIs(t, r.Create(ctx, &models.Artifact{ID: "x", ChainID: "c1", Version: 2}), common.ErrorAlreadyExists)

	chain, err := r.ListChain(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "a1", chain[0].ID)
	assert.Equal(t, "a2", chain[1].ID)

	total, err := r.SumSizes(ctx, space)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)

	name := "g"
	got, err := r.Update(ctx, "a2", models.ArtifactPatch{Name: &name, ClearPrevious: true})
	require.NoError(t, err)
	assert.Equal(t, "g", got.Name)
	assert.Empty(t, got.PreviousID)

	require.NoError(t, r.Delete(ctx, "a1"))
	assert.ErrorIs(t, r.Delete(ctx, "a1"), common.ErrorNotFound)
	_, err = r.Get(ctx, "a1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	inScope, err := r.ListByScope(ctx, space)
	require.NoError(t, err)
	require.Len(t, inScope, 1)
	assert.Equal(t, "a2", inScope[0].ID)
}
