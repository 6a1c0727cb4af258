package cache

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "messaging/pkg/errors"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(postgresGetQuery)).
		WithArgs("messaging/propositions").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{}`)))
	value, err := store.Get(ctx, "messaging/propositions")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), value)

	mock.ExpectQuery(regexp.QuoteMeta(postgresGetQuery)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = store.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	mock.ExpectQuery(regexp.QuoteMeta(postgresGetQuery)).
		WithArgs("broken").
		WillReturnError(errors.New("connection reset"))
	_, err = store.Get(ctx, "broken")
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetAndDelete(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(postgresUpsertQuery)).
		WithArgs("k", []byte("v")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Set(ctx, "k", []byte("v")))

	mock.ExpectExec(regexp.QuoteMeta(postgresDeleteQuery)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, "k"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
