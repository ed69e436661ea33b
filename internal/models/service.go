package models

import "time"

// Service is an offering a tenant sells. The duration fixes every slot
// length and the buffer is the idle time kept free after each booking.
type Service struct {
	ID                 string    `db:"id" json:"id"`
	TenantID           string    `db:"tenant_id" json:"tenant_id"`
	Name               string    `db:"name" json:"name"`
	Description        *string   `db:"description" json:"description,omitempty"`
	PriceCents         int       `db:"price_cents" json:"price_cents"`
	DurationMinutes    int       `db:"duration_minutes" json:"duration_minutes"`
	DepositCents       int       `db:"deposit_cents" json:"deposit_cents"`
	FullPayRequired    bool      `db:"full_pay_required" json:"full_pay_required"`
	BufferMinutes      int       `db:"buffer_minutes" json:"buffer_minutes"`
	AdvanceBookingDays int       `db:"advance_booking_days" json:"advance_booking_days"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the slot length.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Buffer returns the idle time enforced after a booking of this service.
func (s Service) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}
