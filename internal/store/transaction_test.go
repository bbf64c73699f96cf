package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransaction(t *testing.T) {
	t.Parallel()

	t.Run("commits on success", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
			return nil
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and passes sentinel through", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
			return domain.ErrInsufficientFunds
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrTransactionFailed)
	})

	t.Run("commit failure", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrTransactionFailed)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
