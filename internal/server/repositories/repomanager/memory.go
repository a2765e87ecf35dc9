package repomanager

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/artifacts"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/spaces"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/users"
)

// InMemoryRepositoryManager hands out one shared set of in-memory
// repositories regardless of the DBTX passed in. WithTx does not roll back.
type InMemoryRepositoryManager struct {
	users         *users.MemoryRepository
	refreshTokens *refreshtokens.MemoryRepository
	artifacts     *artifacts.MemoryRepository
	spaces        *spaces.MemoryRepository
	audit         *audit.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:         users.NewMemoryRepository(),
		refreshTokens: refreshtokens.NewMemoryRepository(),
		artifacts:     artifacts.NewMemoryRepository(),
		spaces:        spaces.NewMemoryRepository(),
		audit:         audit.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *InMemoryRepositoryManager) Artifacts(dbx.DBTX) artifacts.Repository { return m.artifacts }

func (m *InMemoryRepositoryManager) Spaces(dbx.DBTX) spaces.Repository { return m.spaces }

func (m *InMemoryRepositoryManager) Audit(dbx.DBTX) audit.Repository { return m.audit }
