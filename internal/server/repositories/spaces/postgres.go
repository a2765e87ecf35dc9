package spaces

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX. Create inserts
// several rows; callers run it inside dbx.WithTx.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.SharedSpace) error {
	query := `
		INSERT INTO spaces (id, name, quota_bytes, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, s.ID, s.Name, s.QuotaBytes, s.CreatedBy).Scan(&s.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("space %s: %w", s.ID, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	for userID, role := range s.Members {
		if err := r.AddMember(ctx, s.ID, userID, role); err != nil {
			return err
		}
	}
	return nil
}

// selectSpaces yields one row per membership; spaces always have an owner,
// so the inner join never hides a space.
const selectSpaces = `
	SELECT s.id, s.name, s.quota_bytes, s.created_by, s.created_at, m.user_id, m.role
	FROM spaces s JOIN space_members m ON m.space_id = s.id
`

func (r *PostgresRepository) query(ctx context.Context, where string, args ...any) ([]*models.SharedSpace, error) {
	rows, err := r.db.QueryContext(ctx, selectSpaces+where+` ORDER BY s.name, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select spaces: %w", err)
	}
	defer rows.Close()

	var result []*models.SharedSpace
	byID := make(map[string]*models.SharedSpace)
	for rows.Next() {
		var s models.SharedSpace
		var userID, role string
		if err := rows.Scan(&s.ID, &s.Name, &s.QuotaBytes, &s.CreatedBy, &s.CreatedAt, &userID, &role); err != nil {
			return nil, err
		}
		cur, ok := byID[s.ID]
		if !ok {
			s.Members = make(map[string]models.Role)
			cur = &s
			byID[s.ID] = cur
			result = append(result, cur)
		}
		cur.Members[userID] = models.Role(role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.SharedSpace, error) {
	found, err := r.query(ctx, `WHERE s.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, common.ErrorNotFound
	}
	return found[0], nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.SharedSpace, error) {
	return r.query(ctx, "")
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.SharedSpace, error) {
	return r.query(ctx, `WHERE s.id IN (SELECT space_id FROM space_members WHERE user_id = $1)`, userID)
}

func (r *PostgresRepository) AddMember(ctx context.Context, spaceID, userID string, role models.Role) error {
	query := `INSERT INTO space_members (space_id, user_id, role) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, spaceID, userID, string(role)); err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("member %s of %s: %w", userID, spaceID, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) RemoveMember(ctx context.Context, spaceID, userID string) error {
	return r.exec(ctx, `DELETE FROM space_members WHERE space_id = $1 AND user_id = $2`, spaceID, userID)
}

func (r *PostgresRepository) SetRole(ctx context.Context, spaceID, userID string, role models.Role) error {
	return r.exec(ctx, `UPDATE space_members SET role = $3 WHERE space_id = $1 AND user_id = $2`,
		spaceID, userID, string(role))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM spaces WHERE id = $1`, id)
}
