package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// requireIDs fails with common.ErrValidation unless every id is a UUID in
// its canonical textual form.
func requireIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
			return fmt.Errorf("id %q: %w", id, common.ErrValidation)
		}
	}
	return nil
}

// accessChecker decides who may touch a storage scope: the owner of a
// personal scope, any member of a shared space, and admins everywhere.
type accessChecker struct {
	repos repomanager.RepositoryManager
}

func (c accessChecker) isAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := c.repos.Users(c.repos.Conn()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin, nil
}

func (c accessChecker) authorize(ctx context.Context, actor string, scope models.Scope) error {
	if actor == "" {
		return common.ErrorUnauthorized
	}
	if err := requireIDs(scope.ID); err != nil {
		return fmt.Errorf("scope %s: %w", scope, err)
	}
	switch scope.Kind {
	case models.ScopePersonal:
		if scope.ID == actor {
			return nil
		}
	case models.ScopeShared:
		space, err := c.repos.Spaces(c.repos.Conn()).Get(ctx, scope.ID)
		if err != nil {
			return fmt.Errorf("space %s: %w", scope.ID, err)
		}
		if _, ok := space.Members[actor]; ok {
			return nil
		}
	default:
		return fmt.Errorf("scope %q: %w", scope, common.ErrValidation)
	}

	admin, err := c.isAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return fmt.Errorf("%s on %s: %w", actor, scope, common.ErrorForbidden)
}

func storageErr(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageIO, err)
}
