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

// RepositoryManager vends repositories bound to a DBTX: either the shared
// connection returned by Conn or a transaction handed out by WithTx.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Conn() dbx.DBTX
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Artifacts(db dbx.DBTX) artifacts.Repository
	Spaces(db dbx.DBTX) spaces.Repository
	Audit(db dbx.DBTX) audit.Repository
}
