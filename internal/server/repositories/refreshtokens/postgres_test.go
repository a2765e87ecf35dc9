package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	expires := time.Now().Add(time.Hour)
	created := time.Now()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+refresh_tokens.*RETURNING\s+id,\s*created_at`).
		WithArgs("u1", "tok", expires).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("s1", created))

	tok := &models.RefreshToken{UserID: "u1", Token: "tok", ExpiresAt: expires}
	require.NoError(t, repo.Create(context.Background(), tok))
	assert.Equal(t, "s1", tok.ID)
	assert.True(t, tok.CreatedAt.Equal(created))
}

func TestPostgresCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{UserID: "u1", Token: "tok"})
	assert.ErrorContains(t, err, "insert session: db down")
}

func TestPostgresFind(t *testing.T) {
	q := `(?s)SELECT\s+id,\s*user_id,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		expires := time.Now().Add(10 * time.Minute)
		mock.ExpectQuery(q).WithArgs("tok").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
				AddRow("s1", "u1", expires, time.Now()))

		got, err := repo.Find(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "tok", got.Token)
		assert.True(t, got.ExpiresAt.Equal(expires))
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("nope").WillReturnError(sql.ErrNoRows)

		_, err := repo.Find(context.Background(), "nope")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("tok").WillReturnError(errors.New("db err"))

		_, err := repo.Find(context.Background(), "tok")
		assert.ErrorContains(t, err, "select session: db err")
	})
}

func TestPostgresDeletes(t *testing.T) {
	ctx := context.Background()
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE token = \$1`).WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1`).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at <= \$1`).WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1`).WithArgs("u2").
		WillReturnError(errors.New("db err"))

	require.NoError(t, repo.Delete(ctx, "tok"))

	n, err := repo.DeleteByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = repo.DeleteByUser(ctx, "u2")
	assert.ErrorContains(t, err, "delete sessions of u2: db err")
}
