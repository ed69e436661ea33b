package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
)

const (
	tenantFixtureID  = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1b001"
	serviceFixtureID = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1b002"
	aliceFixtureID   = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1a0a1"
	bobFixtureID     = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1b0b2"
	clientFixtureID  = "6f1c1f8e-1f4e-4a57-9d3b-1a63f6a1c003"
)

func mustUTC(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

type fakeTenants struct {
	tenant *models.Tenant
	staff  []models.Staff
	err    error
}

func newYorkTenant(staff ...models.Staff) *fakeTenants {
	return &fakeTenants{
		tenant: &models.Tenant{ID: tenantFixtureID, BusinessName: "Fade Factory", TimeZone: "America/New_York", Active: true},
		staff:  staff,
	}
}

func staffMember(id, name string) models.Staff {
	return models.Staff{ID: id, TenantID: tenantFixtureID, DisplayName: name, Role: models.StaffRoleStaff, Active: true}
}

func (f *fakeTenants) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.tenant == nil || f.tenant.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.tenant, nil
}

func (f *fakeTenants) ListActiveStaff(ctx context.Context, tenantID string) ([]models.Staff, error) {
	return f.staff, nil
}

func (f *fakeTenants) FindStaff(ctx context.Context, tenantID, staffID string) (*models.Staff, error) {
	for _, s := range f.staff {
		if s.ID == staffID {
			member := s
			return &member, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeOfferings struct {
	service *models.Service
}

func haircut(duration, buffer, advance int) *fakeOfferings {
	return &fakeOfferings{service: &models.Service{
		ID:                 serviceFixtureID,
		TenantID:           tenantFixtureID,
		Name:               "Haircut",
		DurationMinutes:    duration,
		BufferMinutes:      buffer,
		AdvanceBookingDays: advance,
		Active:             true,
	}}
}

func (f *fakeOfferings) FindByID(ctx context.Context, tenantID, id string) (*models.Service, error) {
	if f.service == nil || f.service.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.service, nil
}

type fakeCalendars struct {
	rules      []models.WorkingHoursRule
	exceptions []models.AvailabilityException
}

func mondayHours(start, end string) *fakeCalendars {
	return &fakeCalendars{rules: []models.WorkingHoursRule{{ID: "rule-mon", TenantID: tenantFixtureID, DayOfWeek: 1, StartTime: start, EndTime: end, Active: true}}}
}

func (f *fakeCalendars) ListRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.WorkingHoursRule, error) {
	return f.rules, nil
}

func (f *fakeCalendars) ListExceptions(ctx context.Context, exec sqlx.ExtContext, tenantID string, from, to time.Time) ([]models.AvailabilityException, error) {
	var out []models.AvailabilityException
	for _, e := range f.exceptions {
		if e.StartUTC.Before(to) && e.EndUTC.After(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeActiveBookings struct {
	bookings []models.Booking
}

func (f *fakeActiveBookings) ListActiveOverlapping(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error) {
	return filterActive(f.bookings, resourceIDs, from, to, leadBuffer), nil
}

// filterActive mirrors the window predicate of BookingRepository.ListActiveOverlapping.
func filterActive(bookings []models.Booking, resourceIDs []string, from, to time.Time, leadBuffer bool) []models.Booking {
	wanted := make(map[string]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	var out []models.Booking
	for _, b := range bookings {
		starts := b.StartUTC.Before(to) || (leadBuffer && b.StartUTC.Add(-b.Buffer()).Before(to))
		if wanted[b.ResourceID] && b.Status.IsActive() && starts && b.BlockedUntil.After(from) {
			out = append(out, b)
		}
	}
	return out
}

func activeBooking(id, resourceID string, start time.Time, minutes, buffer int) models.Booking {
	staff := resourceID
	end := start.Add(time.Duration(minutes) * time.Minute)
	return models.Booking{
		ID:            id,
		TenantID:      tenantFixtureID,
		ServiceID:     serviceFixtureID,
		StaffID:       &staff,
		ResourceID:    resourceID,
		StartUTC:      start,
		EndUTC:        end,
		BufferMinutes: buffer,
		BlockedUntil:  end.Add(time.Duration(buffer) * time.Minute),
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
}

type snapshotTx struct {
	db *sqlx.DB
}

func newSnapshotTx(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &snapshotTx{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (s *snapshotTx) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, opts)
}

type unusedTx struct{ t *testing.T }

func (u unusedTx) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	u.t.Fatal("transaction must not be opened")
	return nil, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// memoryStore mimics the advisory-lock reservation store in memory: each
// resource has its own mutex held from LockResources until the transaction ends.
type memoryStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	bookings []models.Booking
	begins   int

	beginErrs []error
	insertErr error
}

func newMemoryStore(existing ...models.Booking) *memoryStore {
	return &memoryStore{locks: make(map[string]*sync.Mutex), bookings: existing}
}

func (s *memoryStore) Begin(ctx context.Context) (repository.ReservationTx, error) {
	s.mu.Lock()
	s.begins++
	var err error
	if len(s.beginErrs) > 0 {
		err = s.beginErrs[0]
		if len(s.beginErrs) > 1 {
			s.beginErrs = s.beginErrs[1:]
		}
	}
	s.mu.Unlock()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	return &memoryTx{store: s}, nil
}

func (s *memoryStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *memoryStore) beginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

func (s *memoryStore) committed() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Booking(nil), s.bookings...)
}

type memoryTx struct {
	store   *memoryStore
	held    []*sync.Mutex
	pending []models.Booking
	done    bool
}

func (t *memoryTx) LockResources(ctx context.Context, resourceIDs []string) error {
	ids := append([]string(nil), resourceIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		l := t.store.lockFor(id)
		l.Lock()
		t.held = append(t.held, l)
	}
	return nil
}

func (t *memoryTx) ActiveBookings(ctx context.Context, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return filterActive(t.store.bookings, resourceIDs, from, to, leadBuffer), nil
}

func (t *memoryTx) CountActiveOnDay(ctx context.Context, resourceIDs []string, from, to time.Time) (map[string]int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	counts := make(map[string]int)
	for _, b := range filterActive(t.store.bookings, resourceIDs, from, to, false) {
		counts[b.ResourceID]++
	}
	return counts, nil
}

func (t *memoryTx) Insert(ctx context.Context, booking *models.Booking) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	booking.ID = uuid.NewString()
	t.pending = append(t.pending, *booking)
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	t.store.bookings = append(t.store.bookings, t.pending...)
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.release()
	return nil
}

func (t *memoryTx) release() {
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}
