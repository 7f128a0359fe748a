package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

var testTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

var recordColumns = []string{"user_id", "provider", "encrypted_key", "iv", "updated_at"}

func newRepoWithMock(t *testing.T) (*CredentialRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewCredentialRepo(db), mock
}

func requireStorageError(t *testing.T, err error) *driven.StorageError {
	t.Helper()
	var storageErr *driven.StorageError
	require.True(t, errors.As(err, &storageErr), "want *driven.StorageError, got %v", err)
	return storageErr
}

func TestCredentialRepo_ListAll(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT user_id, provider, encrypted_key, iv, updated_at FROM user_keys WHERE user_id = \$1 ORDER BY provider$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("u1", "anthropic", "c1", "i1", testTime).
			AddRow("u1", "github", "c2", "i2", testTime))

	records, err := repo.ListAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "anthropic", records[0].Provider)
	assert.Equal(t, "c2", records[1].Ciphertext)
	assert.Equal(t, testTime, records[1].UpdatedAt)
}

func TestCredentialRepo_ListAllEmpty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM user_keys WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	records, err := repo.ListAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestCredentialRepo_ListAllDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM user_keys WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("db down"))

	_, err := repo.ListAll(context.Background(), "u1")
	storageErr := requireStorageError(t, err)
	assert.Contains(t, storageErr.Error(), "db down")
}

func TestCredentialRepo_ListProviders(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND provider IN \(\$2, \$3\) ORDER BY provider$`).
		WithArgs("u1", "github", "openai").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("u1", "github", "c1", "i1", testTime))

	records, err := repo.ListProviders(context.Background(), "u1", []string{"github", "openai"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "github", records[0].Provider)
}

func TestCredentialRepo_ListProvidersEmptySkipsQuery(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	records, err := repo.ListProviders(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCredentialRepo_Get(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND provider = \$2$`).
		WithArgs("u1", "github").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("u1", "github", "c1", "i1", testTime))

	rec, err := repo.Get(context.Background(), "u1", "github")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "c1", rec.Ciphertext)
	assert.Equal(t, "i1", rec.IV)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND provider = \$2$`).
		WithArgs("u1", "github").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.Get(context.Background(), "u1", "github")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCredentialRepo_GetDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND provider = \$2$`).
		WithArgs("u1", "github").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), "u1", "github")
	requireStorageError(t, err)
}

func TestCredentialRepo_Upsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT INTO user_keys .*ON CONFLICT \(user_id, provider\) DO UPDATE SET.*encrypted_key = EXCLUDED\.encrypted_key`).
		WithArgs("u1", "github", "c1", "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), "u1", "github", "c1", "i1")
	require.NoError(t, err)
}

func TestCredentialRepo_UpsertDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO user_keys`).
		WithArgs("u1", "github", "c1", "i1").
		WillReturnError(errors.New("unique violation"))

	err := repo.Upsert(context.Background(), "u1", "github", "c1", "i1")
	storageErr := requireStorageError(t, err)
	assert.Contains(t, storageErr.Op, "github")
}

func TestCredentialRepo_Delete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM user_keys WHERE user_id = \$1 AND provider = \$2$`).
		WithArgs("u1", "github").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "u1", "github")
	assert.NoError(t, err, "deleting an absent row succeeds")
}

func TestCredentialRepo_DeleteDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM user_keys`).
		WithArgs("u1", "github").
		WillReturnError(errors.New("db down"))

	err := repo.Delete(context.Background(), "u1", "github")
	requireStorageError(t, err)
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(_ context.Context, _ *sql.DB, _ string, _ ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/00001_create_user_keys.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "UNIQUE (user_id, provider)")
	assert.Contains(t, string(data), "-- +goose Up")
}
