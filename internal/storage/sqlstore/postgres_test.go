package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

func newPostgresMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

func TestRebindPlaceholders(t *testing.T) {
	pg := conn{dialect: Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b IN ($2, $3)", pg.q("SELECT 1 WHERE a = ? AND b IN (?, ?)"))

	lite := conn{dialect: SQLite}
	assert.Equal(t, "SELECT 1 WHERE a = ?", lite.q("SELECT 1 WHERE a = ?"))

	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestPostgresUpdateStateUsesVersion(t *testing.T) {
	store, mock := newPostgresMock(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE photos\s+SET is_deleted = \$1, is_favorite = \$2, version = version \+ 1\s+WHERE id = \$3 AND user_id = \$4 AND version = \$5`).
		WithArgs(true, false, "p1", "u1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT .* FROM photos\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs("p1", "u1").
		WillReturnRows(photoRows().AddRow(
			"p1", "u1", "users/u1/p1.jpg", "users/u1/thumbnail/p1.jpeg", "a.jpg", "", "image/jpeg",
			int64(10), time.Now(), []byte(`{}`), false, false, int64(4),
		))

	_, err := store.Photos().UpdateState(ctx, "p1", "u1", 3, storage.PhotoState{IsDeleted: true})
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddPhotosRejectsForeignPhotos(t *testing.T) {
	store, mock := newPostgresMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM albums WHERE id = \$1 AND user_id = \$2`).
		WithArgs("a1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM photos\s+WHERE user_id = \$1 AND id IN \(\$2, \$3\)`).
		WithArgs("u1", "p1", "p2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := store.Albums().AddPhotos(ctx, "a1", "u1", []string{"p1", "p2", "p1"})
	assert.ErrorIs(t, err, storage.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserConflict(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Users().Create(context.Background(), storage.UserCreate{Email: "a@example.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeletePhotoRollsBackWhenMissing(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM album_photos`).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM photos WHERE id = \$1 AND user_id = \$2`).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Photos().Delete(context.Background(), "p1", "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUsesDialectDirectory(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, migrate(context.Background(), db, Postgres))
	assert.Equal(t, "postgres", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.Error(t, migrate(context.Background(), db, SQLite))
}

func photoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "original_key", "thumbnail_key", "filename", "caption", "content_type",
		"size_bytes", "uploaded_at", "metadata", "is_deleted", "is_favorite", "version",
	})
}
