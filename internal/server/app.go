// Package server initializes and runs the FileKeeper server.
//
// Components are built in dependency order:
//
//  1. repositories (Postgres with migrations, or in memory when no DSN is set)
//  2. secret cipher, admission limiter and blob store
//  3. quota ledger over the artifact sizes, audit recorder
//  4. services, bootstrap admin, quota scopes, initial reconciliation
//  5. background loops (reconciliation, limiter and session sweeps) and the gRPC server
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/cryptox"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/quota"
	"github.com/dmitrijs2005/filekeeper/internal/ratelimit"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
	"github.com/dmitrijs2005/filekeeper/internal/storage"

	gs "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
)

const (
	// limiterSweepInterval is how often elapsed admission windows are dropped.
	limiterSweepInterval = time.Minute
	sessionSweepInterval = 10 * time.Minute
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	ledger    *quota.Ledger
	limiter   *ratelimit.Limiter
	users     *services.UserService
	artifacts *services.ArtifactService
	spaces    *services.SpaceService
	audit     *services.AuditService
}

// NewApp builds every component from c. Failures leave nothing running.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	repos, err := app.initRepositories(ctx)
	if err != nil {
		return nil, err
	}

	cipher, err := app.initCipher(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	blobs, err := app.initBlobStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.limiter = ratelimit.New(map[ratelimit.Bucket]ratelimit.Policy{
		ratelimit.BucketLogin: {Capacity: c.LoginRateCapacity, Window: c.LoginRateWindow},
		ratelimit.BucketAPI:   {Capacity: c.APIRateCapacity, Window: c.APIRateWindow},
	})
	app.ledger = quota.NewLedger(repos.Artifacts(repos.Conn()), logger)
	recorder := audit.NewRecorder(repos.Audit(repos.Conn()), logger)

	app.artifacts = services.NewArtifactService(repos, blobs, app.ledger, recorder, c.MaxVersions, logger)
	app.spaces = services.NewSpaceService(repos, app.ledger, app.artifacts, recorder, logger)
	app.users = services.NewUserService(repos, app.limiter, cipher, app.ledger, recorder, c, logger)
	app.audit = services.NewAuditService(repos, recorder)

	if err := app.bootstrap(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) initRepositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, state is kept in memory")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	app.db = db

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("repository manager error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return repos, nil
}

func (app *App) initCipher(ctx context.Context) (*cryptox.Cipher, error) {
	key := []byte(app.config.CipherKey)
	if len(key) != cryptox.KeySize && app.config.LegacyKeyPadding {
		app.logger.Warn(ctx, "cipher key is not 32 bytes, padding it; rotate to a full-length key",
			"length", len(key))
		key = cryptox.NormalizeKey(key)
	}
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}
	return cipher, nil
}

func (app *App) initBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch app.config.StorageBackend {
	case config.StorageS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    app.config.S3RootUser,
			SecretKey:    app.config.S3RootPassword,
			Bucket:       app.config.S3Bucket,
			Region:       app.config.S3Region,
			BaseEndpoint: app.config.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return s, nil
	case config.StorageLocal, "":
		s, err := storage.NewLocalStore(app.config.LocalStorageRoot)
		if err != nil {
			return nil, fmt.Errorf("local storage init error: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", app.config.StorageBackend)
	}
}

// bootstrap creates the admin account, registers every quota scope and
// recomputes usage from the stored artifacts.
func (app *App) bootstrap(ctx context.Context) error {
	if app.config.AdminUser != "" {
		if err := app.users.EnsureAdmin(ctx, app.config.AdminUser, app.config.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	if err := app.users.RegisterAll(ctx); err != nil {
		return err
	}
	if err := app.spaces.RegisterAll(ctx); err != nil {
		return err
	}
	if err := app.ledger.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("initial reconciliation: %w", err)
	}
	return nil
}

// Close releases the database handle, if any.
func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
		app.db = nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.users, app.artifacts, app.spaces,
		app.audit, app.limiter, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or the gRPC server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		app.ledger.Run(ctx, app.config.ReconcileInterval)
	}()
	go func() {
		defer wg.Done()
		app.users.RunSessionSweeper(ctx, sessionSweepInterval)
	}()
	go func() {
		defer wg.Done()
		app.limiter.Run(ctx, limiterSweepInterval)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
}
