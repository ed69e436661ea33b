package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
)

const bookingColumns = `id, client_id, tenant_id, service_id, staff_id, resource_id, start_utc, end_utc, buffer_minutes, blocked_until, status, payment_status, client_name, client_email, client_phone, client_notes, internal_notes, cancellation_reason, cancelled_at, confirmed_at, reminder_sent_24h, reminder_sent_2h, created_at, updated_at`

// BookingRepository reads and updates persisted bookings. Inserts go through
// the ReservationStore so they always run under the resource locks.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// StatusChange describes a conditional lifecycle update.
type StatusChange struct {
	To      models.BookingStatus
	From    []models.BookingStatus
	At      time.Time
	Reason  *string
	Payment *models.PaymentStatus
}

// FindByID fetches a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListActiveOverlapping returns pending and confirmed bookings of the given
// resources whose blocked span touches [from, to). With leadBuffer set a
// booking also matches when its own buffer, counted back from its start,
// reaches before to.
func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings
WHERE resource_id = ANY($1::uuid[]) AND status = ANY($2) AND blocked_until > $4
AND (start_utc < $3 OR ($5 AND start_utc - buffer_minutes * interval '1 minute' < $3))
ORDER BY resource_id, start_utc`
	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, pq.Array(resourceIDs), pq.Array(statusStrings(models.ActiveBookingStatuses)), to, from, leadBuffer); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus applies change only when the booking is still in one of
// change.From. It returns sql.ErrNoRows when no row matched.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, change StatusChange) (*models.Booking, error) {
	var confirmedAt, cancelledAt *time.Time
	switch change.To {
	case models.BookingStatusConfirmed:
		confirmedAt = &change.At
	case models.BookingStatusCancelled:
		cancelledAt = &change.At
	}
	var payment *string
	if change.Payment != nil {
		p := string(*change.Payment)
		payment = &p
	}

	query := `UPDATE bookings SET status = $1,
	payment_status = COALESCE($2, payment_status),
	cancellation_reason = COALESCE($3, cancellation_reason),
	confirmed_at = COALESCE($4, confirmed_at),
	cancelled_at = COALESCE($5, cancelled_at),
	updated_at = $6
WHERE id = $7 AND status = ANY($8)
RETURNING ` + bookingColumns
	var booking models.Booking
	err := sqlx.GetContext(ctx, r.exec(exec), &booking, query,
		string(change.To), payment, change.Reason, confirmedAt, cancelledAt, change.At, id, pq.Array(statusStrings(change.From)))
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdatePaymentStatus records what the payment collaborator reported.
func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Booking, error) {
	query := `UPDATE bookings SET payment_status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + bookingColumns
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, string(status), time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateInternalNotes replaces the pro-only notes.
func (r *BookingRepository) UpdateInternalNotes(ctx context.Context, id string, notes *string) (*models.Booking, error) {
	query := `UPDATE bookings SET internal_notes = $1, updated_at = $2 WHERE id = $3 RETURNING ` + bookingColumns
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, notes, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings matching filter along with the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TenantID != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)+1))
		args = append(args, filter.TenantID)
	}
	if filter.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.StaffID != "" {
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", len(args)+1))
		args = append(args, filter.StaffID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("start_utc >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_utc < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_utc %s LIMIT %d OFFSET %d", bookingColumns, base, order, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// ListAgenda returns the tenant's bookings starting in [from, to) joined with
// service and staff names.
func (r *BookingRepository) ListAgenda(ctx context.Context, tenantID string, from, to time.Time) ([]dto.AgendaRow, error) {
	const query = `SELECT b.id, b.start_utc, b.end_utc, b.status, b.payment_status, s.name AS service_name, st.display_name AS staff_name, b.client_name, b.client_email, b.client_phone
FROM bookings b
JOIN services s ON s.id = b.service_id
LEFT JOIN staff_accounts st ON st.id = b.staff_id
WHERE b.tenant_id = $1 AND b.start_utc >= $2 AND b.start_utc < $3
ORDER BY b.start_utc, st.display_name`
	var rows []dto.AgendaRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, from, to); err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}
	return rows, nil
}

func reminderColumn(kind models.ReminderKind) string {
	if kind == models.Reminder2h {
		return "reminder_sent_2h"
	}
	return "reminder_sent_24h"
}

// ListDueReminders returns confirmed bookings whose start falls in (after, until]
// and whose reminder of kind has not been sent.
func (r *BookingRepository) ListDueReminders(ctx context.Context, kind models.ReminderKind, after, until time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE status = $1 AND %s = FALSE AND start_utc > $2 AND start_utc <= $3
ORDER BY start_utc LIMIT %d`, bookingColumns, reminderColumn(kind), limit)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, string(models.BookingStatusConfirmed), after, until); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return bookings, nil
}

// MarkReminderSent flips the reminder flag and reports whether this caller won.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id string, kind models.ReminderKind) (bool, error) {
	column := reminderColumn(kind)
	query := fmt.Sprintf(`UPDATE bookings SET %s = TRUE, updated_at = $2 WHERE id = $1 AND %s = FALSE`, column, column)
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reminder rows affected: %w", err)
	}
	return affected == 1, nil
}

func statusStrings(statuses []models.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
