// Package services contains server-side business logic: accounts and
// sessions, the artifact store and shared spaces.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/cryptox"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/quota"
	"github.com/dmitrijs2005/filekeeper/internal/ratelimit"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides account and session operations:
//   - Register / EnsureAdmin: create users and their personal scope
//   - Login: rate limited credential check, mints tokens
//   - RefreshToken / Logout: rotate or revoke server-stored refresh tokens
//   - PurgeExpiredSessions / RunSessionSweeper: drop dead sessions
//   - SetTwoFactorSeed / TwoFactorSeed: secrets sealed at rest
type UserService struct {
	repos                        repomanager.RepositoryManager
	limiter                      *ratelimit.Limiter
	cipher                       *cryptox.Cipher
	ledger                       *quota.Ledger
	audit                        *audit.Recorder
	access                       accessChecker
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	defaultQuota                 int64
	logger                       logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(repos repomanager.RepositoryManager, limiter *ratelimit.Limiter, cipher *cryptox.Cipher,
	ledger *quota.Ledger, recorder *audit.Recorder, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repos:                        repos,
		limiter:                      limiter,
		cipher:                       cipher,
		ledger:                       ledger,
		audit:                        recorder,
		access:                       accessChecker{repos: repos},
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		defaultQuota:                 cfg.DefaultUserQuota,
		logger:                       logger.With("module", "users"),
	}
}

// RegisterAll registers the personal scope of every stored user.
func (s *UserService) RegisterAll(ctx context.Context) error {
	all, err := s.repos.Users(s.repos.Conn()).List(ctx)
	if err != nil {
		return fmt.Errorf("error listing users: %w", err)
	}
	for _, u := range all {
		s.ledger.Register(models.PersonalScope(u.ID), s.defaultQuota)
	}
	return nil
}

func (s *UserService) create(ctx context.Context, username, password string, admin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrValidation)
	}
	salt, hash := cryptox.HashPassword([]byte(password))

	user, err := s.repos.Users(s.repos.Conn()).Create(ctx, &models.User{
		UserName:     username,
		PasswordSalt: salt,
		PasswordHash: hash,
		IsAdmin:      admin,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.ledger.Register(models.PersonalScope(user.ID), s.defaultQuota)
	return user, nil
}

// Register creates an account. Only admins may register users.
func (s *UserService) Register(ctx context.Context, actor, username, password string, admin bool) (*models.User, error) {
	ok, err := s.access.isAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("admin role required: %w", common.ErrorForbidden)
	}
	return s.create(ctx, username, password, admin)
}

// EnsureAdmin creates the bootstrap admin account unless it exists.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.repos.Users(s.repos.Conn()).GetUserByLogin(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	u, err := s.create(ctx, username, password, true)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "bootstrap admin created", "user", u.UserName, "id", u.ID)
	return nil
}

// dummyCredentials keeps the cost of a login for an unknown user equal to
// that of a wrong password.
var dummyCredentials = sync.OnceValues(func() ([]byte, []byte) {
	return cryptox.HashPassword([]byte("filekeeper"))
})

// Login checks the credentials of username. identity is the caller's
// network address; too many attempts from it fail with common.ErrRateLimited
// before any credential is looked at.
func (s *UserService) Login(ctx context.Context, identity, username, password string) (*TokenPair, error) {
	if !s.limiter.TryConsume(identity, ratelimit.BucketLogin) {
		return nil, fmt.Errorf("login from %s: %w", identity, common.ErrRateLimited)
	}

	user, err := s.repos.Users(s.repos.Conn()).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			salt, hash := dummyCredentials()
			cryptox.VerifyPassword([]byte(password), salt, hash)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword([]byte(password), user.PasswordSalt, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.generateTokenPair(ctx, s.repos.Conn(), user.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, user.ID, audit.ActionLogin, &audit.Target{Type: audit.TargetUser, ID: user.ID, Name: user.UserName}, identity)
	return pair, nil
}

// RefreshToken rotates refreshToken: the old one is deleted and a new pair
// is issued in the same transaction.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repos.RefreshTokens(s.repos.Conn()).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if token.Expired(time.Now()) {
		if err := s.repos.RefreshTokens(s.repos.Conn()).Delete(ctx, refreshToken); err != nil {
			s.logger.Warn(ctx, "failed to drop expired refresh token", "error", err)
		}
		return nil, common.ErrRefreshTokenExpired
	}

	var tokenPair *TokenPair

	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		tokenPair, err = s.generateTokenPair(ctx, tx, token.UserID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return tokenPair, nil
}

// Logout revokes refreshToken, which must belong to userID. With everywhere
// set every session of userID is revoked as well.
func (s *UserService) Logout(ctx context.Context, userID, refreshToken string, everywhere bool) error {
	repo := s.repos.RefreshTokens(s.repos.Conn())
	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if token.UserID != userID {
		return fmt.Errorf("refresh token of another user: %w", common.ErrorForbidden)
	}

	detail := ""
	if everywhere {
		n, err := repo.DeleteByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("error revoking sessions: %w", err)
		}
		detail = fmt.Sprintf("%d sessions", n)
	} else if err := repo.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	s.audit.Record(ctx, userID, audit.ActionLogout, &audit.Target{Type: audit.TargetUser, ID: userID}, detail)
	return nil
}

// PurgeExpiredSessions drops refresh tokens that can no longer be used.
func (s *UserService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repos.RefreshTokens(s.repos.Conn()).DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("error purging sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info(ctx, "expired sessions purged", "count", n)
	}
	return n, nil
}

// RunSessionSweeper calls PurgeExpiredSessions every interval until ctx is done.
func (s *UserService) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpiredSessions(ctx); err != nil {
				s.logger.Error(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

// SetTwoFactorSeed seals seed and stores it for userID. Users manage their
// own seed; admins manage anyone's.
func (s *UserService) SetTwoFactorSeed(ctx context.Context, actor, userID string, seed []byte) error {
	if userID == "" || len(seed) == 0 {
		return fmt.Errorf("user and seed are required: %w", common.ErrValidation)
	}
	if err := s.access.authorize(ctx, actor, models.PersonalScope(userID)); err != nil {
		return err
	}
	sealed, err := s.cipher.Seal(seed)
	if err != nil {
		return fmt.Errorf("error sealing seed: %w", err)
	}
	if err := s.repos.Users(s.repos.Conn()).SetTwoFactorSeed(ctx, userID, sealed); err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	s.audit.Record(ctx, actor, audit.ActionSecretUpdate, &audit.Target{Type: audit.TargetUser, ID: userID}, "two-factor seed")
	return nil
}

// TwoFactorSeed returns the opened seed of userID. A seed that fails to open
// yields common.ErrAuthentication.
func (s *UserService) TwoFactorSeed(ctx context.Context, actor, userID string) ([]byte, error) {
	if err := s.access.authorize(ctx, actor, models.PersonalScope(userID)); err != nil {
		return nil, err
	}
	user, err := s.repos.Users(s.repos.Conn()).GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	if user.TwoFactorSeed == "" {
		return nil, fmt.Errorf("two-factor seed of %s: %w", userID, common.ErrorNotFound)
	}
	return s.cipher.Open(user.TwoFactorSeed)
}

// Whoami returns the account of userID.
func (s *UserService) Whoami(ctx context.Context, userID string) (*models.User, error) {
	return s.repos.Users(s.repos.Conn()).GetByID(ctx, userID)
}

func (s *UserService) generateTokenPair(ctx context.Context, db dbx.DBTX, userID string) (*TokenPair, error) {
	accessToken, err := auth.IssueAccessToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	session := &models.RefreshToken{
		UserID:    userID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, session); err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
