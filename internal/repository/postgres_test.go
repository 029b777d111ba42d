package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/emind-bff/internal/model"
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := newRepository(mock)
	repo.delays = []time.Duration{time.Millisecond, time.Millisecond}
	return repo, mock
}

func TestRecordVerification(t *testing.T) {
	repo, mock := newMockRepository(t)

	detailID := int64(3)
	v := model.Verification{
		AppointmentID:   11,
		PaymentDetailID: &detailID,
		Role:            model.RolePsychologist,
		UserID:          "7",
		Verified:        true,
		Notes:           "ok",
		Succeeded:       true,
	}

	mock.ExpectQuery("INSERT INTO payment_verifications").
		WithArgs(int64(11), pgxmock.AnyArg(), "psychologist", "7", true, "ok", true, "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.RecordVerification(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordVerification_RetriesSerializationFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	v := model.Verification{AppointmentID: 5, Role: model.RoleAdmin, UserID: "1"}

	mock.ExpectQuery("INSERT INTO payment_verifications").
		WithArgs(int64(5), pgxmock.AnyArg(), "admin", "1", false, "", false, "").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectQuery("INSERT INTO payment_verifications").
		WithArgs(int64(5), pgxmock.AnyArg(), "admin", "1", false, "", false, "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	id, err := repo.RecordVerification(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordVerification_DoesNotRetryOtherErrors(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("INSERT INTO payment_verifications").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})

	_, err := repo.RecordVerification(context.Background(), model.Verification{AppointmentID: 5})
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, pgerrcode.UndefinedTable, pgErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListVerifications(t *testing.T) {
	repo, mock := newMockRepository(t)

	detailID := int64(3)
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "appointment_id", "payment_detail_id", "role", "user_id",
		"verified", "notes", "succeeded", "error", "created_at",
	}).
		AddRow(int64(2), int64(11), &detailID, "psychologist", "7", false, "dup", false, "unexpected status 404: Not Found", created).
		AddRow(int64(1), int64(11), &detailID, "psychologist", "7", true, "ok", true, "", created.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM payment_verifications").
		WithArgs(int64(11)).
		WillReturnRows(rows)

	res, err := repo.ListVerifications(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, int64(2), res[0].ID)
	assert.Equal(t, model.RolePsychologist, res[0].Role)
	assert.False(t, res[0].Succeeded)
	assert.Equal(t, "unexpected status 404: Not Found", res[0].Error)
	require.NotNil(t, res[0].PaymentDetailID)
	assert.Equal(t, int64(3), *res[0].PaymentDetailID)
	assert.True(t, res[1].Verified)
	assert.Equal(t, created, res[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListVerifications_Empty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM payment_verifications").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "appointment_id", "payment_detail_id", "role", "user_id",
			"verified", "notes", "succeeded", "error", "created_at",
		}))

	res, err := repo.ListVerifications(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	repo, _ := newMockRepository(t)
	repo.delays = []time.Duration{time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := repo.withRetry(ctx, func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
