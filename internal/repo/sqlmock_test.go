package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (*GormRepo, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return New(gdb), mock
}

func TestGormRepo_StorageErrorsPropagate(t *testing.T) {
	t.Parallel()

	errConn := errors.New("connection refused")
	ctx := context.Background()

	tests := []struct {
		name string
		call func(r *GormRepo) error
	}{
		{
			name: "find active",
			call: func(r *GormRepo) error {
				_, err := r.FindActive(ctx, "abc", time.Now())
				return err
			},
		},
		{
			name: "find not revoked",
			call: func(r *GormRepo) error {
				_, err := r.FindNotRevoked(ctx, "abc")
				return err
			},
		},
		{
			name: "user by email",
			call: func(r *GormRepo) error {
				_, err := r.UserByEmail(ctx, "a@x.com")
				return err
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, mock := newMockRepo(t)
			mock.ExpectQuery(`SELECT`).WillReturnError(errConn)

			err := tt.call(r)
			require.Error(t, err)
			assert.ErrorIs(t, err, errConn)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormRepo_FindActive_EmptyResultIsNotFound(t *testing.T) {
	t.Parallel()

	r, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "tokens" WHERE .*value = \$1 AND revoked = \$2 AND expiry_at > \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "value", "user_id", "expiry_at", "revoked"}))

	_, err := r.FindActive(context.Background(), "abc", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
