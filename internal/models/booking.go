package models

import "time"

// BookingStatus enumerates the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// ActiveBookingStatuses occupy calendar space.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow},
}

// IsActive reports whether the status blocks new reservations.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// IsTerminal reports whether no transition leaves the status.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor lists the statuses from which to is reachable.
func SourcesFor(to BookingStatus) []BookingStatus {
	var out []BookingStatus
	for _, from := range []BookingStatus{BookingStatusPending, BookingStatusConfirmed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// PaymentStatus mirrors what the payment collaborator reported.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusDeposit  PaymentStatus = "deposit"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Booking is a persisted appointment. EndUTC is fixed at creation and
// BlockedUntil is EndUTC plus the buffer snapshot.
type Booking struct {
	ID                 string        `db:"id" json:"id"`
	ClientID           string        `db:"client_id" json:"client_id"`
	TenantID           string        `db:"tenant_id" json:"tenant_id"`
	ServiceID          string        `db:"service_id" json:"service_id"`
	StaffID            *string       `db:"staff_id" json:"staff_id,omitempty"`
	ResourceID         string        `db:"resource_id" json:"-"`
	StartUTC           time.Time     `db:"start_utc" json:"start_utc"`
	EndUTC             time.Time     `db:"end_utc" json:"end_utc"`
	BufferMinutes      int           `db:"buffer_minutes" json:"buffer_minutes"`
	BlockedUntil       time.Time     `db:"blocked_until" json:"-"`
	Status             BookingStatus `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	ClientName         string        `db:"client_name" json:"client_name"`
	ClientEmail        string        `db:"client_email" json:"client_email"`
	ClientPhone        *string       `db:"client_phone" json:"client_phone,omitempty"`
	ClientNotes        *string       `db:"client_notes" json:"client_notes,omitempty"`
	InternalNotes      *string       `db:"internal_notes" json:"internal_notes,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ReminderSent24h    bool          `db:"reminder_sent_24h" json:"-"`
	ReminderSent2h     bool          `db:"reminder_sent_2h" json:"-"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
	ManageToken        string        `db:"-" json:"manage_token,omitempty"`
	ManageTokenExpires *time.Time    `db:"-" json:"manage_token_expires_at,omitempty"`
}

// StaffKey returns the staff id or an empty string for tenant-level bookings.
func (b Booking) StaffKey() string {
	if b.StaffID == nil {
		return ""
	}
	return *b.StaffID
}

// Buffer returns the buffer snapshot.
func (b Booking) Buffer() time.Duration {
	return time.Duration(b.BufferMinutes) * time.Minute
}

// ClientInfo carries contact details supplied with a reservation.
type ClientInfo struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// ReservationRequest asks the core to hold one slot. An empty StaffID lets
// the tenant assign any free staff member.
type ReservationRequest struct {
	TenantID   string     `json:"tenantId" validate:"required,uuid"`
	ServiceID  string     `json:"serviceId" validate:"required,uuid"`
	StaffID    string     `json:"staffId,omitempty" validate:"omitempty,uuid"`
	StartUTC   time.Time  `json:"startUtc" validate:"required"`
	ClientID   string     `json:"-" validate:"required"`
	ClientInfo ClientInfo `json:"clientInfo"`
}

// BookingFilter describes listing criteria.
type BookingFilter struct {
	TenantID  string
	ClientID  string
	StaffID   string
	Statuses  []BookingStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortOrder string
}

// Actor identifies who requested a lifecycle change.
type Actor struct {
	UserID string
	Role   UserRole
	Source string
}

// ReminderKind selects which reminder flag a sweep flips.
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder2h  ReminderKind = "2h"
)

// Lead returns how long before the start the reminder is due.
func (k ReminderKind) Lead() time.Duration {
	if k == Reminder2h {
		return 2 * time.Hour
	}
	return 24 * time.Hour
}
