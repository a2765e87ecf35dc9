package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var artifactColumns = []string{"id", "chain_id", "previous_id", "version", "name", "mime_type", "storage_key",
	"size", "scope_kind", "scope_id", "created_by", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+artifacts\b.*RETURNING\s+created_at\s*$`).
		WithArgs("a1", "c1", nil, 1, "doc.txt", "text/plain", "space/s1/k", int64(600), "space", "s1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	a := &models.Artifact{ID: "a1", ChainID: "c1", Version: 1, Name: "doc.txt", MimeType: "text/plain",
		StorageKey: "space/s1/k", Size: 600, Scope: models.SpaceScope("s1"), CreatedBy: "u1"}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !a.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt not filled: %v", a.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_WithPrevious(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+artifacts`).
		WithArgs("a2", "c1", "a1", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"user", "u1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	a := &models.Artifact{ID: "a2", ChainID: "c1", PreviousID: "a1", Version: 2, Scope: models.PersonalScope("u1"), CreatedBy: "u1"}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+artifacts`).WillReturnError(&pgconn.PgError{Code: "23505"})
	err := repo.Create(context.Background(), &models.Artifact{ID: "a1"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want ErrorAlreadyExists, got %v", err)
	}

	mock.ExpectQuery(`INSERT\s+INTO\s+artifacts`).WillReturnError(errors.New("db down"))
	err = repo.Create(context.Background(), &models.Artifact{ID: "a1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .* FROM artifacts WHERE id = \$1`).
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows(artifactColumns).
			AddRow("a2", "c1", "a1", 2, "doc.txt", "text/plain", "k2", int64(10), "space", "s1", "u1", now))

	got, err := repo.Get(context.Background(), "a2")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	want := &models.Artifact{ID: "a2", ChainID: "c1", PreviousID: "a1", Version: 2, Name: "doc.txt",
		MimeType: "text/plain", StorageKey: "k2", Size: 10, Scope: models.SpaceScope("s1"), CreatedBy: "u1", CreatedAt: now}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}

	mock.ExpectQuery(`FROM artifacts WHERE id = \$1`).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	name := "renamed.txt"
	mock.ExpectQuery(`(?s)UPDATE\s+artifacts\s+SET.*COALESCE\(\$2, name\).*RETURNING`).
		WithArgs("a1", name, nil, true).
		WillReturnRows(sqlmock.NewRows(artifactColumns).
			AddRow("a1", "c1", nil, 1, name, "text/plain", "k1", int64(10), "user", "u1", "u1", time.Now()))

	got, err := repo.Update(context.Background(), "a1", models.ArtifactPatch{Name: &name, ClearPrevious: true})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Name != name || got.PreviousID != "" {
		t.Fatalf("unexpected artifact: %+v", got)
	}

	mock.ExpectQuery(`UPDATE\s+artifacts`).WillReturnError(sql.ErrNoRows)
	if _, err := repo.Update(context.Background(), "nope", models.ArtifactPatch{Name: &name}); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM artifacts WHERE id = \$1`).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "a1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	mock.ExpectExec(`DELETE FROM artifacts`).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "a1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestListChain(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE chain_id = \$1 ORDER BY version`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(artifactColumns).
			AddRow("a1", "c1", nil, 1, "f", "m", "k1", int64(1), "user", "u1", "u1", now).
			AddRow("a2", "c1", "a1", 2, "f", "m", "k2", int64(2), "user", "u1", "u1", now))

	got, err := repo.ListChain(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListChain error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].PreviousID != "a1" {
		t.Fatalf("unexpected chain: %+v", got)
	}

	mock.ExpectQuery(`WHERE chain_id`).WillReturnError(errors.New("boom"))
	if _, err := repo.ListChain(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestListByScopeAndSumSizes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE scope_kind = \$1 AND scope_id = \$2 ORDER BY chain_id, version`).
		WithArgs("space", "s1").
		WillReturnRows(sqlmock.NewRows(artifactColumns).
			AddRow("a1", "c1", nil, 1, "f", "m", "k1", int64(300), "space", "s1", "u1", time.Now()))

	got, err := repo.ListByScope(context.Background(), models.SpaceScope("s1"))
	if err != nil || len(got) != 1 || got[0].Scope != models.SpaceScope("s1") {
		t.Fatalf("ListByScope = %+v, %v", got, err)
	}

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(size\), 0\) FROM artifacts`).
		WithArgs("space", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(900)))

	total, err := repo.SumSizes(context.Background(), models.SpaceScope("s1"))
	if err != nil || total != 900 {
		t.Fatalf("SumSizes = %d, %v", total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
