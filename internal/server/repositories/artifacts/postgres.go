package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectArtifact = `SELECT id, chain_id, previous_id, version, name, mime_type, storage_key, size,
	scope_kind, scope_id, created_by, created_at FROM artifacts`

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(s scanner) (*models.Artifact, error) {
	a := &models.Artifact{}
	var prev sql.NullString
	var kind string
	if err := s.Scan(&a.ID, &a.ChainID, &prev, &a.Version, &a.Name, &a.MimeType, &a.StorageKey, &a.Size,
		&kind, &a.Scope.ID, &a.CreatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.PreviousID = prev.String
	a.Scope.Kind = models.ScopeKind(kind)
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new artifact record.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Artifact) error {
	query := `
		INSERT INTO artifacts (id, chain_id, previous_id, version, name, mime_type, storage_key, size,
			scope_kind, scope_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.ChainID, nullable(a.PreviousID), a.Version, a.Name, a.MimeType, a.StorageKey, a.Size,
		string(a.Scope.Kind), a.Scope.ID, a.CreatedBy).Scan(&a.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("artifact %s: %w", a.ID, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the artifact with id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Artifact, error) {
	a, err := scanArtifact(r.db.QueryRowContext(ctx, selectArtifact+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update applies the non-empty fields of patch.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.ArtifactPatch) (*models.Artifact, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}
	query := `
		UPDATE artifacts SET
			name = COALESCE($2, name),
			mime_type = COALESCE($3, mime_type),
			previous_id = CASE WHEN $4 THEN NULL ELSE previous_id END
		WHERE id = $1
		RETURNING id, chain_id, previous_id, version, name, mime_type, storage_key, size,
			scope_kind, scope_id, created_by, created_at
	`
	var name, mime sql.NullString
	if patch.Name != nil {
		name = sql.NullString{String: *patch.Name, Valid: true}
	}
	if patch.MimeType != nil {
		mime = sql.NullString{String: *patch.MimeType, Valid: true}
	}
	a, err := scanArtifact(r.db.QueryRowContext(ctx, query, id, name, mime, patch.ClearPrevious))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Delete removes the artifact record with id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select artifacts: %w", err)
	}
	defer rows.Close()

	var result []*models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListChain returns the versions of chainID, oldest first.
func (r *PostgresRepository) ListChain(ctx context.Context, chainID string) ([]*models.Artifact, error) {
	return r.list(ctx, selectArtifact+` WHERE chain_id = $1 ORDER BY version`, chainID)
}

// ListByScope returns the artifacts owned by scope.
func (r *PostgresRepository) ListByScope(ctx context.Context, scope models.Scope) ([]*models.Artifact, error) {
	return r.list(ctx, selectArtifact+` WHERE scope_kind = $1 AND scope_id = $2 ORDER BY chain_id, version`,
		string(scope.Kind), scope.ID)
}

// SumSizes returns the total size of the artifacts owned by scope.
func (r *PostgresRepository) SumSizes(ctx context.Context, scope models.Scope) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size), 0) FROM artifacts WHERE scope_kind = $1 AND scope_id = $2`
	if err := r.db.QueryRowContext(ctx, query, string(scope.Kind), scope.ID).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}
