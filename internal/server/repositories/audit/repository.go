// Package audit declares the append-only repository for audit entries.
// There is deliberately no update or delete.
package audit

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Repository appends and reads audit entries. Reads are newest first.
type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
	ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]*models.AuditEntry, error)
	Count(ctx context.Context) (int64, error)
	CountByTarget(ctx context.Context, targetID string) (int64, error)
	CountByAction(ctx context.Context) (map[string]int64, error)
}
