package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/artifacts"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/spaces"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Conn() != db {
		t.Fatal("Conn() does not return the pool")
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	if _, ok := m.Users(db).(*users.PostgresRepository); !ok {
		t.Fatal("Users() is not postgres-backed")
	}
	if _, ok := m.RefreshTokens(db).(*refreshtokens.PostgresRepository); !ok {
		t.Fatal("RefreshTokens() is not postgres-backed")
	}
	if _, ok := m.Artifacts(db).(*artifacts.PostgresRepository); !ok {
		t.Fatal("Artifacts() is not postgres-backed")
	}
	if _, ok := m.Spaces(db).(*spaces.PostgresRepository); !ok {
		t.Fatal("Spaces() is not postgres-backed")
	}
	if _, ok := m.Audit(db).(*audit.PostgresRepository); !ok {
		t.Fatal("Audit() is not postgres-backed")
	}
}

func TestWithTx_CommitsAndRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	m := &PostgresRepositoryManager{db: db}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error { return nil }); err != nil {
		t.Fatalf("WithTx error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	if err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestInMemoryManager_SharesRepositories(t *testing.T) {
	var m RepositoryManager = NewInMemoryRepositoryManager()
	if m.Users(nil) != m.Users(m.Conn()) {
		t.Fatal("in-memory users repository is not shared")
	}
	called := false
	err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("WithTx: called=%v err=%v", called, err)
	}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatal(err)
	}
}
