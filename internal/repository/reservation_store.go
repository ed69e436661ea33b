package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

// ReservationTx is one check-and-insert unit. Every method runs inside the
// same database transaction; nothing is visible to others before Commit.
type ReservationTx interface {
	LockResources(ctx context.Context, resourceIDs []string) error
	ActiveBookings(ctx context.Context, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error)
	CountActiveOnDay(ctx context.Context, resourceIDs []string, from, to time.Time) (map[string]int, error)
	Insert(ctx context.Context, booking *models.Booking) error
	Commit() error
	Rollback() error
}

// ReservationStore opens reservation transactions that serialize writers per
// bookable resource with transaction-scoped advisory locks.
type ReservationStore struct {
	db          *sqlx.DB
	bookings    *BookingRepository
	lockTimeout time.Duration
}

// NewReservationStore constructs a ReservationStore. lockTimeout bounds how
// long a transaction waits for a contended resource before failing with 55P03.
func NewReservationStore(db *sqlx.DB, lockTimeout time.Duration) *ReservationStore {
	return &ReservationStore{db: db, bookings: NewBookingRepository(db), lockTimeout: lockTimeout}
}

// Begin starts a READ COMMITTED transaction. Each statement after the lock is
// granted sees every booking committed by the previous lock holder.
func (s *ReservationStore) Begin(ctx context.Context) (ReservationTx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}
	return &sqlReservationTx{tx: tx, bookings: s.bookings}, nil
}

type sqlReservationTx struct {
	tx       *sqlx.Tx
	bookings *BookingRepository
}

// LockResources takes the advisory locks in sorted order so two transactions
// contending for the same set cannot deadlock.
func (t *sqlReservationTx) LockResources(ctx context.Context, resourceIDs []string) error {
	keys := append([]string(nil), resourceIDs...)
	sort.Strings(keys)
	var last string
	for i, key := range keys {
		if i > 0 && key == last {
			continue
		}
		last = key
		if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "bookbetter:resource:"+key); err != nil {
			return fmt.Errorf("lock resource %s: %w", key, err)
		}
	}
	return nil
}

func (t *sqlReservationTx) ActiveBookings(ctx context.Context, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error) {
	return t.bookings.ListActiveOverlapping(ctx, t.tx, resourceIDs, from, to, leadBuffer)
}

func (t *sqlReservationTx) CountActiveOnDay(ctx context.Context, resourceIDs []string, from, to time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT resource_id, COUNT(*) AS total FROM bookings
WHERE resource_id = ANY($1::uuid[]) AND status = ANY($2) AND start_utc >= $3 AND start_utc < $4
GROUP BY resource_id`
	var rows []struct {
		ResourceID string `db:"resource_id"`
		Total      int    `db:"total"`
	}
	if err := t.tx.SelectContext(ctx, &rows, query, pq.Array(resourceIDs), pq.Array(statusStrings(models.ActiveBookingStatuses)), from, to); err != nil {
		return nil, fmt.Errorf("count active bookings: %w", err)
	}
	for _, row := range rows {
		counts[row.ResourceID] = row.Total
	}
	return counts, nil
}

func (t *sqlReservationTx) Insert(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.ResourceID = booking.TenantID
	if booking.StaffID != nil {
		booking.ResourceID = *booking.StaffID
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, client_id, tenant_id, service_id, staff_id, start_utc, end_utc, buffer_minutes, blocked_until, status, payment_status, client_name, client_email, client_phone, client_notes, created_at, updated_at)
		VALUES (:id, :client_id, :tenant_id, :service_id, :staff_id, :start_utc, :end_utc, :buffer_minutes, :blocked_until, :status, :payment_status, :client_name, :client_email, :client_phone, :client_notes, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (t *sqlReservationTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

func (t *sqlReservationTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}
