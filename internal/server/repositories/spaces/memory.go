package spaces

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// MemoryRepository keeps spaces in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	spaces map[string]*models.SharedSpace
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{spaces: make(map[string]*models.SharedSpace)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.SharedSpace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spaces[s.ID]; ok {
		return fmt.Errorf("space %s: %w", s.ID, common.ErrorAlreadyExists)
	}
	s.CreatedAt = time.Now()
	r.spaces[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.SharedSpace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.spaces[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) collect(keep func(*models.SharedSpace) bool) []*models.SharedSpace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.SharedSpace
	for _, s := range r.spaces {
		if keep(s) {
			result = append(result, s.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.SharedSpace, error) {
	return r.collect(func(*models.SharedSpace) bool { return true }), nil
}

func (r *MemoryRepository) ListForUser(ctx context.Context, userID string) ([]*models.SharedSpace, error) {
	return r.collect(func(s *models.SharedSpace) bool {
		_, ok := s.Members[userID]
		return ok
	}), nil
}

func (r *MemoryRepository) AddMember(ctx context.Context, spaceID, userID string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spaces[spaceID]
	if !ok {
		return common.ErrorNotFound
	}
	if _, ok := s.Members[userID]; ok {
		return fmt.Errorf("member %s of %s: %w", userID, spaceID, common.ErrorAlreadyExists)
	}
	s.Members[userID] = role
	return nil
}

func (r *MemoryRepository) RemoveMember(ctx context.Context, spaceID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spaces[spaceID]
	if !ok {
		return common.ErrorNotFound
	}
	if _, ok := s.Members[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(s.Members, userID)
	return nil
}

func (r *MemoryRepository) SetRole(ctx context.Context, spaceID, userID string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spaces[spaceID]
	if !ok {
		return common.ErrorNotFound
	}
	if _, ok := s.Members[userID]; !ok {
		return common.ErrorNotFound
	}
	s.Members[userID] = role
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spaces[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.spaces, id)
	return nil
}
