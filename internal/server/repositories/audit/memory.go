package audit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// MemoryRepository keeps audit entries in insertion order. Target names are
// served as captured at write time.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.CreatedAt = time.Now()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) page(keep func(models.AuditEntry) bool, limit, offset int) []*models.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.AuditEntry
	skipped := 0
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := r.entries[i]
		if !keep(e) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, &e)
	}
	return result
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	return r.page(func(models.AuditEntry) bool { return true }, limit, offset), nil
}

func (r *MemoryRepository) ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]*models.AuditEntry, error) {
	return r.page(func(e models.AuditEntry) bool { return e.TargetID == targetID }, limit, offset), nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

func (r *MemoryRepository) CountByTarget(ctx context.Context, targetID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.entries {
		if e.TargetID == targetID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByAction(ctx context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]int64)
	for _, e := range r.entries {
		result[e.Action]++
	}
	return result, nil
}
