package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

const proFixtureID = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1d004"

type memoryBookings struct {
	mu       sync.Mutex
	rows     map[string]models.Booking
	filter   models.BookingFilter
	updates  int
	stealTo  models.BookingStatus
	listRows []models.Booking
}

func newMemoryBookings(rows ...models.Booking) *memoryBookings {
	m := &memoryBookings{rows: make(map[string]models.Booking)}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memoryBookings) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memoryBookings) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, change repository.StatusChange) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if m.stealTo != "" {
		// Another writer commits first.
		row.Status = m.stealTo
		m.rows[id] = row
		m.stealTo = ""
	}
	allowed := false
	for _, from := range change.From {
		if row.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, sql.ErrNoRows
	}
	m.updates++
	row.Status = change.To
	if change.Payment != nil {
		row.PaymentStatus = *change.Payment
	}
	if change.Reason != nil {
		row.CancellationReason = change.Reason
	}
	at := change.At
	switch change.To {
	case models.BookingStatusConfirmed:
		row.ConfirmedAt = &at
	case models.BookingStatusCancelled:
		row.CancelledAt = &at
	}
	m.rows[id] = row
	return &row, nil
}

func (m *memoryBookings) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.PaymentStatus = status
	m.rows[id] = row
	return &row, nil
}

func (m *memoryBookings) UpdateInternalNotes(ctx context.Context, id string, notes *string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.InternalNotes = notes
	m.rows[id] = row
	return &row, nil
}

func (m *memoryBookings) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	return m.listRows, len(m.listRows), nil
}

type memberStub struct {
	tenant  *models.Tenant
	members map[string]bool
}

func (m memberStub) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	if m.tenant == nil || m.tenant.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.tenant, nil
}

func (m memberStub) IsMember(ctx context.Context, tenantID, userID string) (bool, error) {
	return m.members[userID], nil
}

func pendingBooking(id string) models.Booking {
	b := activeBooking(id, aliceFixtureID, mustUTC("2025-03-10T13:00:00Z"), 30, 10)
	b.Status = models.BookingStatusPending
	b.ClientID = clientFixtureID
	return b
}

func newBookingFixture(rows ...models.Booking) (*BookingService, *memoryBookings, *recordingPublisher) {
	store := newMemoryBookings(rows...)
	publisher := &recordingPublisher{}
	members := memberStub{
		tenant:  newYorkTenant().tenant,
		members: map[string]bool{proFixtureID: true},
	}
	svc := NewBookingService(store, members, publisher, NewMetricsService(), nil, nil)
	svc.now = func() time.Time { return mustUTC("2025-03-09T12:00:00Z") }
	return svc, store, publisher
}

var (
	proActor    = models.Actor{UserID: proFixtureID, Role: models.RolePro, Source: SourceAPI}
	clientActor = models.Actor{UserID: clientFixtureID, Role: models.RoleClient, Source: SourceAPI}
)

func TestBookingLifecycleConfirmThenCancel(t *testing.T) {
	svc, _, publisher := newBookingFixture(pendingBooking("b-1"))
	paid := models.PaymentStatusDeposit

	confirmed, err := svc.MarkConfirmed(context.Background(), "b-1", &paid, proActor)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentStatusDeposit, confirmed.PaymentStatus)
	assert.NotNil(t, confirmed.ConfirmedAt)

	cancelled, err := svc.MarkCancelled(context.Background(), "b-1", "  client moved  ", clientActor)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "client moved", *cancelled.CancellationReason)

	assert.Equal(t, []string{string(models.EventBookingConfirmed), string(models.EventBookingCancelled)}, publisher.types())
}

func TestBookingTransitionRejectsTerminalState(t *testing.T) {
	row := pendingBooking("b-1")
	row.Status = models.BookingStatusCancelled
	svc, store, publisher := newBookingFixture(row)

	_, err := svc.MarkConfirmed(context.Background(), "b-1", nil, proActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, "cancelled", appErrors.FromError(err).Details["from"])
	assert.Zero(t, store.updates)
	assert.Empty(t, publisher.types())
}

func TestBookingTransitionDuplicateIsNoop(t *testing.T) {
	row := pendingBooking("b-1")
	row.Status = models.BookingStatusConfirmed
	row.PaymentStatus = models.PaymentStatusDeposit
	svc, store, publisher := newBookingFixture(row)

	out, err := svc.Transition(context.Background(), Transition{BookingID: "b-1", To: models.BookingStatusConfirmed, Actor: models.Actor{Source: SourceWebhook}})
	require.NoError(t, err)
	assert.False(t, out.Changed)

	paid := models.PaymentStatusPaid
	out, err = svc.Transition(context.Background(), Transition{BookingID: "b-1", To: models.BookingStatusConfirmed, Payment: &paid, Actor: models.Actor{Source: SourceWebhook}})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, models.PaymentStatusPaid, out.Booking.PaymentStatus)
	assert.Zero(t, store.updates)
	assert.Empty(t, publisher.types())
}

func TestBookingTransitionLosingRace(t *testing.T) {
	svc, store, publisher := newBookingFixture(pendingBooking("b-1"), pendingBooking("b-2"))

	store.stealTo = models.BookingStatusCancelled
	_, err := svc.MarkConfirmed(context.Background(), "b-1", nil, proActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	store.stealTo = models.BookingStatusConfirmed
	out, err := svc.Transition(context.Background(), Transition{BookingID: "b-2", To: models.BookingStatusConfirmed, Actor: proActor})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Empty(t, publisher.types())
}

func TestBookingCompleteRequiresEnd(t *testing.T) {
	row := pendingBooking("b-1")
	row.Status = models.BookingStatusConfirmed
	svc, _, _ := newBookingFixture(row)

	_, err := svc.MarkCompleted(context.Background(), "b-1", proActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	svc.now = func() time.Time { return mustUTC("2025-03-10T14:00:00Z") }
	done, err := svc.MarkNoShow(context.Background(), "b-1", proActor)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusNoShow, done.Status)
}

func TestBookingAuthorization(t *testing.T) {
	svc, _, _ := newBookingFixture(pendingBooking("b-1"))
	stranger := models.Actor{UserID: "someone-else", Role: models.RoleClient, Source: SourceAPI}
	outsider := models.Actor{UserID: "other-pro", Role: models.RolePro, Source: SourceAPI}

	_, err := svc.Get(context.Background(), "b-1", clientActor)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), "b-1", stranger)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Get(context.Background(), "b-1", outsider)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.MarkConfirmed(context.Background(), "b-1", nil, clientActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.MarkConfirmed(context.Background(), "b-1", nil, models.Actor{Source: SourceManageLink})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	cancelled, err := svc.MarkCancelled(context.Background(), "b-1", "", models.Actor{Source: SourceManageLink})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)

	_, err = svc.Get(context.Background(), "missing", proActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUpdateInternalNotes(t *testing.T) {
	svc, _, _ := newBookingFixture(pendingBooking("b-1"))

	updated, err := svc.UpdateInternalNotes(context.Background(), "b-1", dto.UpdateNotesRequest{InternalNotes: " prefers clippers "}, proActor)
	require.NoError(t, err)
	require.NotNil(t, updated.InternalNotes)
	assert.Equal(t, "prefers clippers", *updated.InternalNotes)

	_, err = svc.UpdateInternalNotes(context.Background(), "b-1", dto.UpdateNotesRequest{InternalNotes: "x"}, clientActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestListForTenantBuildsFilter(t *testing.T) {
	svc, store, _ := newBookingFixture()

	_, page, err := svc.ListForTenant(context.Background(), tenantFixtureID, dto.ListBookingsQuery{
		Status: []string{"pending,confirmed"},
		From:   "2025-03-10",
		To:     "2025-03-10",
		Page:   2,
	}, proActor)
	require.NoError(t, err)

	assert.Equal(t, tenantFixtureID, store.filter.TenantID)
	assert.Equal(t, []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}, store.filter.Statuses)
	require.NotNil(t, store.filter.From)
	assert.Equal(t, mustUTC("2025-03-10T04:00:00Z"), *store.filter.From)
	assert.Equal(t, mustUTC("2025-03-11T04:00:00Z"), *store.filter.To)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.ListForTenant(context.Background(), tenantFixtureID, dto.ListBookingsQuery{Status: []string{"lost"}}, proActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.ListForTenant(context.Background(), tenantFixtureID, dto.ListBookingsQuery{}, clientActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestListForClientScopesToClient(t *testing.T) {
	svc, store, _ := newBookingFixture()

	bookings, _, err := svc.ListForClient(context.Background(), clientFixtureID, dto.ListBookingsQuery{})
	require.NoError(t, err)
	assert.NotNil(t, bookings)
	assert.Equal(t, clientFixtureID, store.filter.ClientID)
	assert.Empty(t, store.filter.TenantID)
}
