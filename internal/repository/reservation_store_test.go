package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

func TestReservationStoreLocksInSortedOrderAndInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewReservationStore(db, 2*time.Second)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	staffID := "staff-b"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '2000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("bookbetter:resource:staff-a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("bookbetter:resource:staff-b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.LockResources(context.Background(), []string{"staff-b", "staff-a", "staff-b"}))
	existing, err := tx.ActiveBookings(context.Background(), []string{"staff-a", "staff-b"}, start, start.Add(40*time.Minute), false)
	require.NoError(t, err)
	assert.Empty(t, existing)

	booking := &models.Booking{
		TenantID:  "tenant-1",
		ServiceID: "service-1",
		StaffID:   &staffID,
		ClientID:  "client-1",
		StartUTC:  start,
		EndUTC:    start.Add(30 * time.Minute),
		Status:    models.BookingStatusPending,
	}
	require.NoError(t, tx.Insert(context.Background(), booking))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, "staff-b", booking.ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationStoreInsertOverlapIsClassified(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewReservationStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	err = tx.Insert(context.Background(), &models.Booking{TenantID: "tenant-1", StartUTC: time.Now(), EndUTC: time.Now().Add(time.Hour)})
	require.Error(t, err)
	assert.True(t, IsOverlap(err))
	assert.False(t, IsTransient(err))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationStoreCountActiveOnDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewReservationStore(db, 0)
	dayStart := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY resource_id")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), dayStart, dayStart.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id", "total"}).AddRow("staff-a", 3))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	counts, err := tx.CountActiveOnDay(context.Background(), []string{"staff-a", "staff-b"}, dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 3, counts["staff-a"])
	assert.Equal(t, 0, counts["staff-b"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
