package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/client/config"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records the calls the commands make.
type fakeClient struct {
	loggedIn bool
	calls    []string

	loginUser, loginPass string
	registerAdmin        bool
	logoutAll            bool

	uploadScope, uploadName, uploadMime string
	uploadData                          []byte
	versionData                         []byte
	updateName, updateMime              *string
	listScope                           string
	auditTarget                         string
	auditLimit, auditOffset             int
	spaceQuota                          int64
	memberRole                          string
	seedUser                            string
	seed                                []byte

	download *api.DownloadResponse
	err      error
}

func (f *fakeClient) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeClient) Close() error   { return nil }
func (f *fakeClient) LoggedIn() bool { return f.loggedIn }
func (f *fakeClient) Ping(ctx context.Context) error {
	return f.record("ping")
}
func (f *fakeClient) Login(ctx context.Context, userName, password string) error {
	f.loginUser, f.loginPass = userName, password
	if err := f.record("login"); err != nil {
		return err
	}
	f.loggedIn = true
	return nil
}
func (f *fakeClient) Logout(ctx context.Context, everywhere bool) error {
	f.loggedIn = false
	f.logoutAll = everywhere
	return f.record("logout")
}
func (f *fakeClient) Register(ctx context.Context, userName, password string, admin bool) (*api.User, error) {
	f.registerAdmin = admin
	return &api.User{ID: "u-new", Username: userName}, f.record("register")
}
func (f *fakeClient) Upload(ctx context.Context, scope, name, mimeType string, data []byte) (*api.Artifact, error) {
	f.uploadScope, f.uploadName, f.uploadMime, f.uploadData = scope, name, mimeType, data
	return &api.Artifact{ID: "a1", Name: name, Version: 1, Size: int64(len(data))}, f.record("upload")
}
func (f *fakeClient) Download(ctx context.Context, id string) (*api.DownloadResponse, error) {
	return f.download, f.record("download")
}
func (f *fakeClient) Duplicate(ctx context.Context, id, name string) (*api.Artifact, error) {
	return &api.Artifact{ID: "a2", Name: name, Version: 1}, f.record("duplicate")
}
func (f *fakeClient) CreateVersion(ctx context.Context, id string, data []byte) (*api.Artifact, error) {
	f.versionData = data
	return &api.Artifact{ID: "a3", Version: 2}, f.record("version")
}
func (f *fakeClient) Versions(ctx context.Context, id string) ([]api.Artifact, error) {
	return []api.Artifact{{ID: "a3", Version: 2, Name: "r.txt"}, {ID: "a1", Version: 1, Name: "r.txt"}}, f.record("versions")
}
func (f *fakeClient) Delete(ctx context.Context, id string) error {
	return f.record("delete")
}
func (f *fakeClient) List(ctx context.Context, scope string) ([]api.Artifact, error) {
	f.listScope = scope
	return nil, f.record("list")
}
func (f *fakeClient) Update(ctx context.Context, id string, name, mimeType *string) (*api.Artifact, error) {
	f.updateName, f.updateMime = name, mimeType
	return &api.Artifact{ID: id, Name: *name}, f.record("update")
}
func (f *fakeClient) Quota(ctx context.Context, scope string) (*api.QuotaResponse, error) {
	return &api.QuotaResponse{UsedBytes: 5, CeilingBytes: 10}, f.record("quota")
}
func (f *fakeClient) Audit(ctx context.Context, targetID string, limit, offset int) (*api.AuditPage, error) {
	f.auditTarget, f.auditLimit, f.auditOffset = targetID, limit, offset
	return &api.AuditPage{Total: 1, Entries: []api.AuditEntry{{Action: "space-delete", TargetName: "team"}}}, f.record("audit")
}
func (f *fakeClient) AuditCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"upload": 3, "login": 2}, f.record("stats")
}
func (f *fakeClient) CreateSpace(ctx context.Context, name, owner string, quotaBytes int64) (*api.Space, error) {
	f.spaceQuota = quotaBytes
	return &api.Space{ID: "s1", Name: name}, f.record("mkspace")
}
func (f *fakeClient) AddMember(ctx context.Context, spaceID, userID, role string) error {
	f.memberRole = role
	return f.record("addmember")
}
func (f *fakeClient) RemoveMember(ctx context.Context, spaceID, userID string) error {
	return f.record("rmmember")
}
func (f *fakeClient) TransferOwnership(ctx context.Context, spaceID, userID string) error {
	return f.record("chown")
}
func (f *fakeClient) DeleteSpace(ctx context.Context, spaceID string) error {
	return f.record("rmspace")
}
func (f *fakeClient) ListSpaces(ctx context.Context) ([]api.Space, error) {
	return []api.Space{{ID: "s1", Name: "team", Members: map[string]string{"u1": "owner"}}}, f.record("spaces")
}
func (f *fakeClient) SetTwoFactorSeed(ctx context.Context, userID string, seed []byte) error {
	f.seedUser, f.seed = userID, seed
	return f.record("2fa-set")
}
func (f *fakeClient) GetTwoFactorSeed(ctx context.Context, userID string) ([]byte, error) {
	f.seedUser = userID
	return []byte("JBSWY3DP"), f.record("2fa-get")
}

func newTestApp(f *fakeClient, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := &config.Config{RequestTimeout: time.Second}
	return &App{
		config: cfg,
		client: f,
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    &out,
	}, &out
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func TestCommands_RequireLogin(t *testing.T) {
	f := &fakeClient{}
	a, _ := newTestApp(f, "")

	err := a.exec(context.Background(), []string{"ls"})
	assert.ErrorIs(t, err, errNotLoggedIn)

	err = a.exec(context.Background(), []string{"2fa", "get"})
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Empty(t, f.calls)

	require.NoError(t, a.exec(context.Background(), []string{"ping"}))
	require.NoError(t, a.exec(context.Background(), []string{"help"}))
	assert.Equal(t, []string{"ping"}, f.calls)
	assert.Equal(t, ModeOnline, a.Mode)
}

func TestLogin_PromptsForUsername(t *testing.T) {
	stubPassword(t, "secret")
	f := &fakeClient{}
	a, out := newTestApp(f, "alice\n")

	require.NoError(t, a.exec(context.Background(), []string{"login"}))
	assert.Equal(t, "alice", f.loginUser)
	assert.Equal(t, "secret", f.loginPass)
	assert.Equal(t, "alice", a.userName)
	assert.Contains(t, out.String(), "Logged in as alice")
	assert.Equal(t, "(alice online)", a.getStatus())

	require.NoError(t, a.exec(context.Background(), []string{"logout", "--all"}))
	assert.True(t, f.logoutAll)
	assert.Empty(t, a.userName)
	assert.False(t, a.isLoggedIn())
}

func TestLogin_FailureKeepsLoggedOut(t *testing.T) {
	stubPassword(t, "bad")
	f := &fakeClient{err: common.ErrRateLimited}
	a, _ := newTestApp(f, "")

	err := a.exec(context.Background(), []string{"login", "bob"})
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Empty(t, a.userName)
	assert.False(t, a.isLoggedIn())
}

func TestRegister_AdminFlag(t *testing.T) {
	stubPassword(t, "pw")
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, "")

	require.NoError(t, a.exec(context.Background(), []string{"register", "carol", "--admin"}))
	assert.True(t, f.registerAdmin)
	assert.Contains(t, out.String(), "Created user carol (u-new)")

	err := a.exec(context.Background(), []string{"register"})
	assert.EqualError(t, err, "usage: register <username>")
}

func TestUploadGetAndVersion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, "")
	ctx := context.Background()

	require.NoError(t, a.exec(ctx, []string{"upload", src, "--scope", "space/s1"}))
	assert.Equal(t, "space/s1", f.uploadScope)
	assert.Equal(t, "report.json", f.uploadName)
	assert.Equal(t, "application/json", f.uploadMime)
	assert.Equal(t, []byte("hello"), f.uploadData)
	assert.Contains(t, out.String(), "a1  v1  report.json  5 bytes")

	require.NoError(t, a.exec(ctx, []string{"upload", src, "--name", "custom.bin", "--mime", "application/x-custom"}))
	assert.Equal(t, "", f.uploadScope, "flags do not leak between lines")
	assert.Equal(t, "custom.bin", f.uploadName)
	assert.Equal(t, "application/x-custom", f.uploadMime)

	f.download = &api.DownloadResponse{Artifact: api.Artifact{Name: "report.json"}, Data: []byte("hello")}
	dst := filepath.Join(dir, "out.txt")
	require.NoError(t, a.exec(ctx, []string{"get", "a1", "-o", dst}))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	t.Chdir(dir)
	require.NoError(t, a.exec(ctx, []string{"get", "a1"}))
	got, err = os.ReadFile(filepath.Join(dir, "report (1).json"))
	require.NoError(t, err, "existing files are not overwritten")
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, os.WriteFile(src, []byte("hello v2"), 0o600))
	require.NoError(t, a.exec(ctx, []string{"version", "a1", src}))
	assert.Equal(t, []byte("hello v2"), f.versionData)

	err = a.exec(ctx, []string{"upload", filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArtifactCommands(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, "")
	ctx := context.Background()

	require.NoError(t, a.exec(ctx, []string{"dup", "a1", "--name", "copy.txt"}))
	require.NoError(t, a.exec(ctx, []string{"versions", "a3"}))
	assert.Contains(t, out.String(), "VERSION")
	require.NoError(t, a.exec(ctx, []string{"ls", "--scope", "space/s1"}))
	assert.Equal(t, "space/s1", f.listScope)
	assert.Contains(t, out.String(), "no artifacts")

	require.NoError(t, a.exec(ctx, []string{"rename", "a1", "new.txt"}))
	require.NotNil(t, f.updateName)
	assert.Equal(t, "new.txt", *f.updateName)
	assert.Nil(t, f.updateMime)

	require.NoError(t, a.exec(ctx, []string{"rename", "a1", "new.txt", "--mime", "text/csv"}))
	require.NotNil(t, f.updateMime)
	assert.Equal(t, "text/csv", *f.updateMime)

	require.NoError(t, a.exec(ctx, []string{"quota"}))
	assert.Contains(t, out.String(), "5 / 10 bytes used")

	require.NoError(t, a.exec(ctx, []string{"rm", "a1"}))
	assert.Equal(t, []string{"duplicate", "versions", "list", "update", "update", "quota", "delete"}, f.calls)
}

func TestSpaceAndAuditCommands(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, "")
	ctx := context.Background()

	require.NoError(t, a.exec(ctx, []string{"mkspace", "team", "u1", "1000"}))
	assert.Equal(t, int64(1000), f.spaceQuota)

	err := a.exec(ctx, []string{"mkspace", "team", "u1", "lots"})
	assert.ErrorContains(t, err, "quota-bytes")

	require.NoError(t, a.exec(ctx, []string{"addmember", "s1", "u2"}))
	assert.Equal(t, "member", f.memberRole)
	require.NoError(t, a.exec(ctx, []string{"rmmember", "s1", "u2"}))
	require.NoError(t, a.exec(ctx, []string{"chown", "s1", "u2"}))
	require.NoError(t, a.exec(ctx, []string{"spaces"}))
	assert.Contains(t, out.String(), "team")
	require.NoError(t, a.exec(ctx, []string{"rmspace", "s1"}))

	require.NoError(t, a.exec(ctx, []string{"audit", "--target", "s1", "--limit", "5", "--offset", "10"}))
	assert.Equal(t, "s1", f.auditTarget)
	assert.Equal(t, 5, f.auditLimit)
	assert.Equal(t, 10, f.auditOffset)
	assert.Contains(t, out.String(), "space-delete")
	assert.Contains(t, out.String(), "1 of 1 entries")

	require.NoError(t, a.exec(ctx, []string{"audit"}))
	assert.Equal(t, common.DefaultPageLimit, f.auditLimit)

	require.NoError(t, a.exec(ctx, []string{"stats"}))
	assert.Regexp(t, `login\s+2\s+upload\s+3`, out.String())
}

func TestTwoFactorCommands(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, "")
	ctx := context.Background()

	require.NoError(t, a.exec(ctx, []string{"2fa", "set", "JBSWY3DP", "--user", "u2"}))
	assert.Equal(t, "u2", f.seedUser)
	assert.Equal(t, []byte("JBSWY3DP"), f.seed)

	require.NoError(t, a.exec(ctx, []string{"2fa", "get"}))
	assert.Equal(t, "", f.seedUser)
	assert.Contains(t, out.String(), "JBSWY3DP")
}

func TestUnknownCommand(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, _ := newTestApp(f, "")

	err := a.exec(context.Background(), []string{"frobnicate"})
	assert.ErrorContains(t, err, "unknown command")
}

func TestGetStatus(t *testing.T) {
	a := &App{}
	assert.Equal(t, "", a.getStatus())

	a.userName = "alice"
	assert.Equal(t, "(alice )", a.getStatus())
}
