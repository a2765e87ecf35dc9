package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/audit"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/cryptox"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/quota"
	"github.com/dmitrijs2005/filekeeper/internal/ratelimit"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

// memBlobs is an in-memory BlobStore with switchable failures.
type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPut  error
	failCopy error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	m.mu.Lock()
	fail := m.failPut
	m.mu.Unlock()
	if fail != nil {
		return 0, fail
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return int64(len(b)), nil
}

func (m *memBlobs) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCopy != nil {
		return m.failCopy
	}
	b, ok := m.objects[src]
	if !ok {
		return common.ErrorNotFound
	}
	m.objects[dst] = append([]byte(nil), b...)
	return nil
}

func (m *memBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type fixture struct {
	repos     *repomanager.InMemoryRepositoryManager
	blobs     *memBlobs
	ledger    *quota.Ledger
	recorder  *audit.Recorder
	limiter   *ratelimit.Limiter
	clock     *testClock
	artifacts *ArtifactService
	spaces    *SpaceService
	users     *UserService

	admin, alice, bob *models.User
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DefaultUserQuota = 10_000
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewDiscardLogger()
	cfg := testConfig()

	repos := repomanager.NewInMemoryRepositoryManager()
	ledger := quota.NewLedger(repos.Artifacts(nil), logger)
	recorder := audit.NewRecorder(repos.Audit(nil), logger)
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	limiter := ratelimit.New(nil, ratelimit.WithClock(clock.Now))
	cipher, err := cryptox.NewCipher([]byte(cfg.CipherKey))
	require.NoError(t, err)
	blobs := newMemBlobs()

	f := &fixture{
		repos:    repos,
		blobs:    blobs,
		ledger:   ledger,
		recorder: recorder,
		limiter:  limiter,
		clock:    clock,
	}
	f.artifacts = NewArtifactService(repos, blobs, ledger, recorder, cfg.MaxVersions, logger)
	f.spaces = NewSpaceService(repos, ledger, f.artifacts, recorder, logger)
	f.users = NewUserService(repos, limiter, cipher, ledger, recorder, cfg, logger)

	f.admin, err = f.users.create(ctx, "root", "root-pw", true)
	require.NoError(t, err)
	f.alice, err = f.users.create(ctx, "alice", "alice-pw", false)
	require.NoError(t, err)
	f.bob, err = f.users.create(ctx, "bob", "bob-pw", false)
	require.NoError(t, err)
	return f
}

func payload(n int) io.Reader {
	return strings.NewReader(strings.Repeat("x", n))
}

// actions returns the audit actions recorded so far, oldest first.
func (f *fixture) actions(t *testing.T) []string {
	t.Helper()
	page, err := f.recorder.List(context.Background(), audit.MaxPageLimit, 0)
	require.NoError(t, err)
	out := make([]string, 0, len(page.Entries))
	for i := len(page.Entries) - 1; i >= 0; i-- {
		out = append(out, page.Entries[i].Action)
	}
	return out
}

// details returns the audit details recorded for action, oldest first.
func (f *fixture) details(t *testing.T, action audit.Action) []string {
	t.Helper()
	page, err := f.recorder.List(context.Background(), audit.MaxPageLimit, 0)
	require.NoError(t, err)
	var out []string
	for i := len(page.Entries) - 1; i >= 0; i-- {
		if page.Entries[i].Action == string(action) {
			out = append(out, page.Entries[i].Detail)
		}
	}
	return out
}

// gatedBlobs holds every Put until release is closed.
type gatedBlobs struct {
	*memBlobs
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBlobs) Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.memBlobs.Put(ctx, key, r, size)
}

func (f *fixture) countAction(t *testing.T, action audit.Action) int {
	t.Helper()
	n := 0
	for _, a := range f.actions(t) {
		if a == string(action) {
			n++
		}
	}
	return n
}

func (f *fixture) newSpace(t *testing.T, owner *models.User, ceiling int64, members ...*models.User) *models.SharedSpace {
	t.Helper()
	ctx := context.Background()
	sp, err := f.spaces.CreateSpace(ctx, f.admin.ID, fmt.Sprintf("space-%d", ceiling), owner.ID, ceiling)
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, f.spaces.AddMember(ctx, owner.ID, sp.ID, m.ID, models.RoleMember))
	}
	return sp
}

var errDisk = errors.New("disk on fire")
