package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/client/client"
	"github.com/dmitrijs2005/filekeeper/internal/client/config"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// apiClient is the server surface the commands need. *client.GRPCClient
// satisfies it.
type apiClient interface {
	Close() error
	LoggedIn() bool
	Ping(ctx context.Context) error
	Login(ctx context.Context, userName, password string) error
	Logout(ctx context.Context, everywhere bool) error
	Register(ctx context.Context, userName, password string, admin bool) (*api.User, error)
	Upload(ctx context.Context, scope, name, mimeType string, data []byte) (*api.Artifact, error)
	Download(ctx context.Context, id string) (*api.DownloadResponse, error)
	Duplicate(ctx context.Context, id, name string) (*api.Artifact, error)
	CreateVersion(ctx context.Context, id string, data []byte) (*api.Artifact, error)
	Versions(ctx context.Context, id string) ([]api.Artifact, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, scope string) ([]api.Artifact, error)
	Update(ctx context.Context, id string, name, mimeType *string) (*api.Artifact, error)
	Quota(ctx context.Context, scope string) (*api.QuotaResponse, error)
	Audit(ctx context.Context, targetID string, limit, offset int) (*api.AuditPage, error)
	AuditCounts(ctx context.Context) (map[string]int64, error)
	CreateSpace(ctx context.Context, name, owner string, quotaBytes int64) (*api.Space, error)
	AddMember(ctx context.Context, spaceID, userID, role string) error
	RemoveMember(ctx context.Context, spaceID, userID string) error
	TransferOwnership(ctx context.Context, spaceID, userID string) error
	DeleteSpace(ctx context.Context, spaceID string) error
	ListSpaces(ctx context.Context) ([]api.Space, error)
	SetTwoFactorSeed(ctx context.Context, userID string, seed []byte) error
	GetTwoFactorSeed(ctx context.Context, userID string) ([]byte, error)
}

type App struct {
	config   *config.Config
	client   apiClient
	userName string
	Mode     Mode
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewFileKeeperClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

// Run starts the REPL and blocks until the user exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// callContext bounds a single server call by the configured timeout.
func (a *App) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// Root greets the user and runs the REPL over stdin.
func (a *App) Root(ctx context.Context) {
	log.Println("Welcome to FileKeeper CLI (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a.exec, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.client.Ping(ctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
