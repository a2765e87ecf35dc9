package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestAppend(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+audit_log\b.*RETURNING\s+created_at`).
		WithArgs("e1", "u1", "upload", "artifact", "a1", "doc.txt", "600 bytes").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	e := &models.AuditEntry{ID: "e1", ActorID: "u1", Action: "upload", TargetType: "artifact",
		TargetID: "a1", TargetName: "doc.txt", Detail: "600 bytes"}
	require.NoError(t, repo.Append(context.Background(), e))
	assert.True(t, e.CreatedAt.Equal(now))

	mock.ExpectQuery(`INSERT\s+INTO\s+audit_log`).WillReturnError(errors.New("db down"))
	assert.Error(t, repo.Append(context.Background(), e))
}

func TestList_JoinsTargetNames(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cols := []string{"id", "actor_id", "action", "target_type", "target_id", "name", "detail", "created_at"}
	now := time.Now()
	mock.ExpectQuery(`(?s)COALESCE\(a\.name, s\.name, l\.target_name\).*LEFT JOIN artifacts.*LEFT JOIN spaces.*ORDER BY l\.seq DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("e2", "u1", "delete", "artifact", "a1", "doc.txt", "", now).
			AddRow("e1", "", "space-create", "space", "s1", "team", "", now))

	got, err := repo.List(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)
	assert.Equal(t, "team", got[1].TargetName)
	assert.Empty(t, got[1].ActorID)

	mock.ExpectQuery(`WHERE l\.target_id = \$1 ORDER BY l\.seq DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("a1", 10, 5).
		WillReturnRows(sqlmock.NewRows(cols))
	got, err = repo.ListByTarget(context.Background(), "a1", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log WHERE target_id = \$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT action, COUNT\(\*\) FROM audit_log GROUP BY action`).
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).AddRow("upload", int64(5)).AddRow("login", int64(2)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = repo.CountByTarget(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	byAction, err := repo.CountByAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"upload": 5, "login": 2}, byAction)
}
