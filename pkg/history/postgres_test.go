package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestSQLStore_Migrate(t *testing.T) {
	store, mock := setupSQLStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Register(t *testing.T) {
	t.Run("inserts record", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		mock.ExpectExec("INSERT INTO schema_versions").
			WithArgs("users-value", "1.0.0+build.7", "1.0.0", "JSON", userSchema, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Register(context.Background(), mustDoc(t, "users-value", "1.0.0+build.7")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing version", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		mock.ExpectExec("INSERT INTO schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Register(context.Background(), mustDoc(t, "users-value", "1.0.0"))
		assert.True(t, errors.Is(err, ErrVersionExists))
	})

	t.Run("database error", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		mock.ExpectExec("INSERT INTO schema_versions").WillReturnError(errors.New("connection reset"))

		err := store.Register(context.Background(), mustDoc(t, "users-value", "1.0.0"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestSQLStore_History(t *testing.T) {
	t.Run("sorted by version", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		now := time.Now()
		rows := sqlmock.NewRows([]string{"version", "format", "body", "refs", "created_at"}).
			AddRow("2.0.0", "JSON", userSchema, "[]", now).
			AddRow("1.0.0", "JSON", userSchema, "null", now).
			AddRow("1.5.0", "JSON", userSchema, "", now)
		mock.ExpectQuery("SELECT version, format, body, refs, created_at FROM schema_versions").
			WithArgs("users-value").
			WillReturnRows(rows)

		docs, err := store.History(context.Background(), "users-value")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0.0", "1.5.0", "2.0.0"}, versions(docs))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unparsable body", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		rows := sqlmock.NewRows([]string{"version", "format", "body", "refs", "created_at"}).
			AddRow("1.0.0", "JSON", "{", "[]", time.Now())
		mock.ExpectQuery("SELECT version").WillReturnRows(rows)

		_, err := store.History(context.Background(), "users-value")
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		rows := sqlmock.NewRows([]string{"version", "format", "body", "refs", "created_at"}).
			AddRow("1.0.0", "XML", userSchema, "[]", time.Now())
		mock.ExpectQuery("SELECT version").WillReturnRows(rows)

		_, err := store.History(context.Background(), "users-value")
		assert.Error(t, err)
	})

	t.Run("query error", func(t *testing.T) {
		store, mock := setupSQLStore(t)
		mock.ExpectQuery("SELECT version").WillReturnError(errors.New("timeout"))

		_, err := store.History(context.Background(), "users-value")
		assert.Error(t, err)
	})
}

func TestSQLStore_Subjects(t *testing.T) {
	store, mock := setupSQLStore(t)
	mock.ExpectQuery("SELECT DISTINCT subject FROM schema_versions").
		WillReturnRows(sqlmock.NewRows([]string{"subject"}).AddRow("accounts-value").AddRow("orders-value"))

	subjects, err := store.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts-value", "orders-value"}, subjects)
}

func TestSQLStore_Close(t *testing.T) {
	store, mock := setupSQLStore(t)
	mock.ExpectClose()

	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
