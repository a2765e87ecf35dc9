package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/quota"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/syncx"
	"github.com/google/uuid"
)

// SpaceService manages shared spaces: named scopes with a fixed quota and
// exactly one owner. Membership changes of one space are serialised.
type SpaceService struct {
	repos     repomanager.RepositoryManager
	ledger    *quota.Ledger
	artifacts *ArtifactService
	audit     *audit.Recorder
	access    accessChecker
	locks     *syncx.KeyedMutex
	logger    logging.Logger
}

func NewSpaceService(repos repomanager.RepositoryManager, ledger *quota.Ledger, artifacts *ArtifactService,
	recorder *audit.Recorder, logger logging.Logger) *SpaceService {
	return &SpaceService{
		repos:     repos,
		ledger:    ledger,
		artifacts: artifacts,
		audit:     recorder,
		access:    accessChecker{repos: repos},
		locks:     syncx.NewKeyedMutex(),
		logger:    logger.With("module", "spaces"),
	}
}

// RegisterAll registers the quota scope of every stored space. Called once
// at startup before reconciliation.
func (s *SpaceService) RegisterAll(ctx context.Context) error {
	all, err := s.repos.Spaces(s.repos.Conn()).List(ctx)
	if err != nil {
		return fmt.Errorf("error listing spaces: %w", err)
	}
	for _, sp := range all {
		s.ledger.Register(sp.Scope(), sp.QuotaBytes)
	}
	return nil
}

func (s *SpaceService) requireAdmin(ctx context.Context, actor string) error {
	admin, err := s.access.isAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return fmt.Errorf("admin role required: %w", common.ErrorForbidden)
	}
	return nil
}

// CreateSpace creates a space owned by owner. Only admins may create spaces.
func (s *SpaceService) CreateSpace(ctx context.Context, actor, name, owner string, quotaBytes int64) (*models.SharedSpace, error) {
	name = strings.TrimSpace(name)
	if name == "" || owner == "" || quotaBytes < 0 {
		return nil, fmt.Errorf("name, owner and a non-negative quota are required: %w", common.ErrValidation)
	}
	if err := requireIDs(owner); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if _, err := s.repos.Users(s.repos.Conn()).GetByID(ctx, owner); err != nil {
		return nil, fmt.Errorf("owner %s: %w", owner, err)
	}

	space := &models.SharedSpace{
		ID:         uuid.NewString(),
		Name:       name,
		QuotaBytes: quotaBytes,
		CreatedBy:  actor,
		Members:    map[string]models.Role{owner: models.RoleOwner},
	}
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Spaces(tx).Create(ctx, space)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating space: %w", err)
	}
	s.ledger.Register(space.Scope(), quotaBytes)

	s.audit.Record(ctx, actor, audit.ActionSpaceCreate, audit.SpaceTarget(space),
		fmt.Sprintf("owner %s, quota %d bytes", owner, quotaBytes))
	return space, nil
}

// authorizeManage loads spaceID and checks that actor owns it or is an admin.
func (s *SpaceService) authorizeManage(ctx context.Context, actor, spaceID string) (*models.SharedSpace, error) {
	if err := requireIDs(spaceID); err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	space, err := s.repos.Spaces(s.repos.Conn()).Get(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("space %s: %w", spaceID, err)
	}
	if space.Owner() == actor {
		return space, nil
	}
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, fmt.Errorf("owner or admin required: %w", err)
	}
	return space, nil
}

// AddMember adds userID to the space with role. A space has one owner, so
// adding another owner is rejected; use TransferOwnership.
func (s *SpaceService) AddMember(ctx context.Context, actor, spaceID, userID string, role models.Role) error {
	if spaceID == "" || userID == "" || !role.Valid() {
		return fmt.Errorf("space, user and role are required: %w", common.ErrValidation)
	}
	if role == models.RoleOwner {
		return fmt.Errorf("a space has exactly one owner: %w", common.ErrValidation)
	}
	if err := requireIDs(userID); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	unlock := s.locks.Lock(spaceID)
	defer unlock()

	space, err := s.authorizeManage(ctx, actor, spaceID)
	if err != nil {
		return err
	}
	if _, ok := space.Members[userID]; ok {
		return fmt.Errorf("user %s in space %s: %w", userID, spaceID, common.ErrorAlreadyExists)
	}
	if _, err := s.repos.Users(s.repos.Conn()).GetByID(ctx, userID); err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	if err := s.repos.Spaces(s.repos.Conn()).AddMember(ctx, spaceID, userID, role); err != nil {
		return err
	}

	s.audit.Record(ctx, actor, audit.ActionMemberAdd, audit.SpaceTarget(space), fmt.Sprintf("%s as %s", userID, role))
	return nil
}

// RemoveMember drops userID from the space. The owner cannot be removed.
func (s *SpaceService) RemoveMember(ctx context.Context, actor, spaceID, userID string) error {
	if spaceID == "" || userID == "" {
		return fmt.Errorf("space and user are required: %w", common.ErrValidation)
	}

	unlock := s.locks.Lock(spaceID)
	defer unlock()

	space, err := s.authorizeManage(ctx, actor, spaceID)
	if err != nil {
		return err
	}
	role, ok := space.Members[userID]
	if !ok {
		return fmt.Errorf("user %s in space %s: %w", userID, spaceID, common.ErrorNotFound)
	}
	if role == models.RoleOwner {
		return fmt.Errorf("cannot remove the owner of a space: %w", common.ErrValidation)
	}
	if err := s.repos.Spaces(s.repos.Conn()).RemoveMember(ctx, spaceID, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, actor, audit.ActionMemberRemove, audit.SpaceTarget(space), userID)
	return nil
}

// TransferOwnership makes newOwner the owner; the previous owner stays a
// member. newOwner must already be a member.
func (s *SpaceService) TransferOwnership(ctx context.Context, actor, spaceID, newOwner string) error {
	if spaceID == "" || newOwner == "" {
		return fmt.Errorf("space and user are required: %w", common.ErrValidation)
	}
	if err := requireIDs(newOwner); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	unlock := s.locks.Lock(spaceID)
	defer unlock()

	space, err := s.authorizeManage(ctx, actor, spaceID)
	if err != nil {
		return err
	}
	role, ok := space.Members[newOwner]
	if !ok {
		return fmt.Errorf("user %s in space %s: %w", newOwner, spaceID, common.ErrorNotFound)
	}
	if role == models.RoleOwner {
		return nil
	}
	prev := space.Owner()

	// demote first: the one-owner constraint holds at every statement
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Spaces(tx)
		if prev != "" {
			if err := repo.SetRole(ctx, spaceID, prev, models.RoleMember); err != nil {
				return err
			}
		}
		return repo.SetRole(ctx, spaceID, newOwner, models.RoleOwner)
	})
	if err != nil {
		return fmt.Errorf("error transferring ownership: %w", err)
	}

	s.audit.Record(ctx, actor, audit.ActionMemberAdd, audit.SpaceTarget(space),
		fmt.Sprintf("%s as %s (was %s)", newOwner, models.RoleOwner, prev))
	return nil
}

// Get returns the space if actor is a member or an admin.
func (s *SpaceService) Get(ctx context.Context, actor, spaceID string) (*models.SharedSpace, error) {
	if err := s.access.authorize(ctx, actor, models.SpaceScope(spaceID)); err != nil {
		return nil, err
	}
	return s.repos.Spaces(s.repos.Conn()).Get(ctx, spaceID)
}

// ListSpacesFor returns the spaces userID belongs to.
func (s *SpaceService) ListSpacesFor(ctx context.Context, userID string) ([]*models.SharedSpace, error) {
	if userID == "" {
		return nil, fmt.Errorf("user is required: %w", common.ErrValidation)
	}
	if err := requireIDs(userID); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return s.repos.Spaces(s.repos.Conn()).ListForUser(ctx, userID)
}

// DeleteSpace removes the space and, first, every file stored in it. The
// cascade is audited as a single entry.
func (s *SpaceService) DeleteSpace(ctx context.Context, actor, spaceID string) error {
	if spaceID == "" {
		return fmt.Errorf("space is required: %w", common.ErrValidation)
	}

	unlock := s.locks.Lock(spaceID)
	defer unlock()

	space, err := s.authorizeManage(ctx, actor, spaceID)
	if err != nil {
		return err
	}

	// no new reservations once the purge starts
	s.ledger.Forget(space.Scope())

	count, freed, err := s.artifacts.PurgeScope(ctx, space.Scope())
	if err != nil {
		s.ledger.Register(space.Scope(), space.QuotaBytes)
		if rerr := s.ledger.Reconcile(ctx, space.Scope()); rerr != nil {
			s.logger.Error(ctx, "reconcile after failed purge", "space", spaceID, "error", rerr)
		}
		return fmt.Errorf("error purging space %s after %d artifacts: %w", spaceID, count, err)
	}
	if err := s.repos.Spaces(s.repos.Conn()).Delete(ctx, spaceID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error deleting space: %w", err)
	}

	s.audit.Record(ctx, actor, audit.ActionSpaceDelete, audit.SpaceTarget(space),
		fmt.Sprintf("%d artifacts removed, %d bytes freed", count, freed))
	return nil
}

// Quota returns the usage of scope for actor.
func (s *SpaceService) Quota(ctx context.Context, actor string, scope models.Scope) (quota.Status, error) {
	if !scope.Valid() {
		return quota.Status{}, fmt.Errorf("scope %q: %w", scope, common.ErrValidation)
	}
	if err := s.access.authorize(ctx, actor, scope); err != nil {
		return quota.Status{}, err
	}
	return s.ledger.Status(scope)
}
