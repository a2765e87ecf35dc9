package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

// AuditService exposes the audit log to admins.
type AuditService struct {
	recorder *audit.Recorder
	access   accessChecker
}

func NewAuditService(repos repomanager.RepositoryManager, recorder *audit.Recorder) *AuditService {
	return &AuditService{recorder: recorder, access: accessChecker{repos: repos}}
}

func (s *AuditService) requireAdmin(ctx context.Context, actor string) error {
	if actor == "" {
		return common.ErrorUnauthorized
	}
	ok, err := s.access.isAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("audit log: %w", common.ErrorForbidden)
	}
	return nil
}

// List returns a page of the whole log, newest first.
func (s *AuditService) List(ctx context.Context, actor string, limit, offset int) (*audit.Page, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, limit, offset)
}

// Timeline returns a page of the entries about targetID.
func (s *AuditService) Timeline(ctx context.Context, actor, targetID string, limit, offset int) (*audit.Page, error) {
	if targetID == "" {
		return nil, fmt.Errorf("target is required: %w", common.ErrValidation)
	}
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return s.recorder.Timeline(ctx, targetID, limit, offset)
}

func (s *AuditService) CountByAction(ctx context.Context, actor string) (map[audit.Action]int64, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return s.recorder.CountByAction(ctx)
}
