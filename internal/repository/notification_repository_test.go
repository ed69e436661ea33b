package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

func TestNotificationRepositoryLifecycle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	n := &models.Notification{BookingID: "b-1", Event: models.EventBookingCreated, Channel: models.NotificationChannelWebhook}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.NotificationStatusPending, n.Status)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET status = $2, attempts = $3, last_error = $4")).
		WithArgs(n.ID, "failed", 1, "connection refused", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkFailed(context.Background(), n.ID, 1, "connection refused"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET status = $2, attempts = $3, last_error = NULL")).
		WithArgs(n.ID, "sent", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSent(context.Background(), n.ID, 2))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRepositoryFindByIDScopesTenant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewServiceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "price_cents", "duration_minutes", "deposit_cents", "full_pay_required", "buffer_minutes", "advance_booking_days", "active", "created_at", "updated_at"}).
		AddRow("svc-1", "tenant-1", "Haircut", nil, 3500, 30, 1000, false, 10, 14, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM services WHERE tenant_id = $1 AND id = $2 AND active = TRUE")).
		WithArgs("tenant-1", "svc-1").
		WillReturnRows(rows)

	svc, err := repo.FindByID(context.Background(), "tenant-1", "svc-1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, svc.Duration())
	assert.Equal(t, 10*time.Minute, svc.Buffer())
	assert.Nil(t, svc.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}
