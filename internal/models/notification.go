package models

import "time"

// BookingEventType names a booking lifecycle event.
type BookingEventType string

const (
	EventBookingCreated     BookingEventType = "booking.created"
	EventBookingConfirmed   BookingEventType = "booking.confirmed"
	EventBookingCancelled   BookingEventType = "booking.cancelled"
	EventBookingCompleted   BookingEventType = "booking.completed"
	EventBookingNoShow      BookingEventType = "booking.no_show"
	EventBookingReminder24h BookingEventType = "booking.reminder_24h"
	EventBookingReminder2h  BookingEventType = "booking.reminder_2h"
)

// EventForStatus returns the event emitted when a booking enters status.
func EventForStatus(status BookingStatus) (BookingEventType, bool) {
	switch status {
	case BookingStatusConfirmed:
		return EventBookingConfirmed, true
	case BookingStatusCancelled:
		return EventBookingCancelled, true
	case BookingStatusCompleted:
		return EventBookingCompleted, true
	case BookingStatusNoShow:
		return EventBookingNoShow, true
	}
	return "", false
}

// BookingEvent is the payload published on the event bus and delivered to
// notification receivers.
type BookingEvent struct {
	Type          BookingEventType `json:"type"`
	BookingID     string           `json:"booking_id"`
	TenantID      string           `json:"tenant_id"`
	ServiceID     string           `json:"service_id"`
	StaffID       *string          `json:"staff_id,omitempty"`
	ClientID      string           `json:"client_id"`
	ClientName    string           `json:"client_name"`
	ClientEmail   string           `json:"client_email"`
	StartUTC      time.Time        `json:"start_utc"`
	EndUTC        time.Time        `json:"end_utc"`
	Status        BookingStatus    `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewBookingEvent snapshots b for publication.
func NewBookingEvent(eventType BookingEventType, b *Booking, reason string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		TenantID:      b.TenantID,
		ServiceID:     b.ServiceID,
		StaffID:       b.StaffID,
		ClientID:      b.ClientID,
		ClientName:    b.ClientName,
		ClientEmail:   b.ClientEmail,
		StartUTC:      b.StartUTC,
		EndUTC:        b.EndUTC,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		Reason:        reason,
		OccurredAt:    at.UTC(),
	}
}

// NotificationChannel identifies how a notification was delivered.
type NotificationChannel string

const (
	NotificationChannelWebhook NotificationChannel = "webhook"
	NotificationChannelLog     NotificationChannel = "log"
)

// NotificationStatus tracks delivery progress.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is the persisted delivery record of one booking event.
type Notification struct {
	ID        string              `db:"id" json:"id"`
	BookingID string              `db:"booking_id" json:"booking_id"`
	Event     BookingEventType    `db:"event" json:"event"`
	Channel   NotificationChannel `db:"channel" json:"channel"`
	Status    NotificationStatus  `db:"status" json:"status"`
	Attempts  int                 `db:"attempts" json:"attempts"`
	LastError *string             `db:"last_error" json:"last_error,omitempty"`
	SentAt    *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}
