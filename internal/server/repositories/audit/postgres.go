package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, actor_id, action, target_type, target_id, target_name, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.ActorID, e.Action, e.TargetType, e.TargetID, e.TargetName, e.Detail).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// selectEntries prefers the live name of the target and falls back to the
// name captured when the entry was written.
const selectEntries = `
	SELECT l.id, l.actor_id, l.action, l.target_type, l.target_id,
		COALESCE(a.name, s.name, l.target_name), l.detail, l.created_at
	FROM audit_log l
	LEFT JOIN artifacts a ON l.target_type = 'artifact' AND a.id::text = l.target_id
	LEFT JOIN spaces s ON l.target_type = 'space' AND s.id::text = l.target_id
`

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID,
			&e.TargetName, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	return r.list(ctx, selectEntries+` ORDER BY l.seq DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *PostgresRepository) ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]*models.AuditEntry, error) {
	return r.list(ctx, selectEntries+` WHERE l.target_id = $1 ORDER BY l.seq DESC LIMIT $2 OFFSET $3`,
		targetID, limit, offset)
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM audit_log`)
}

func (r *PostgresRepository) CountByTarget(ctx context.Context, targetID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM audit_log WHERE target_id = $1`, targetID)
}

func (r *PostgresRepository) CountByAction(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM audit_log GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var action string
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		result[action] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
