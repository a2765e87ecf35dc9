package artifacts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// MemoryRepository keeps artifact records in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]models.Artifact
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]models.Artifact)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *models.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ID]; ok {
		return fmt.Errorf("artifact %s: %w", a.ID, common.ErrorAlreadyExists)
	}
	for _, other := range r.byID {
		if other.ChainID == a.ChainID && other.Version == a.Version {
			return fmt.Errorf("chain %s version %d: %w", a.ChainID, a.Version, common.ErrorAlreadyExists)
		}
	}
	a.CreatedAt = time.Now()
	r.byID[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch models.ArtifactPatch) (*models.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	a = patch.Apply(a)
	r.byID[id] = a
	return &a, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) filter(keep func(models.Artifact) bool) []*models.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Artifact
	for _, a := range r.byID {
		if keep(a) {
			c := a
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChainID != result[j].ChainID {
			return result[i].ChainID < result[j].ChainID
		}
		return result[i].Version < result[j].Version
	})
	return result
}

func (r *MemoryRepository) ListChain(ctx context.Context, chainID string) ([]*models.Artifact, error) {
	return r.filter(func(a models.Artifact) bool { return a.ChainID == chainID }), nil
}

func (r *MemoryRepository) ListByScope(ctx context.Context, scope models.Scope) ([]*models.Artifact, error) {
	return r.filter(func(a models.Artifact) bool { return a.Scope == scope }), nil
}

func (r *MemoryRepository) SumSizes(ctx context.Context, scope models.Scope) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, a := range r.byID {
		if a.Scope == scope {
			total += a.Size
		}
	}
	return total, nil
}
