package models

import "time"

// PaymentEventType names an event sent by the payment collaborator.
type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment.succeeded"
	PaymentFailed    PaymentEventType = "payment.failed"
	PaymentExpired   PaymentEventType = "payment.expired"
	PaymentRefunded  PaymentEventType = "payment.refunded"
)

// PaymentWebhookEvent is the signed body posted to the payments webhook.
// PaymentStatus is deposit or paid for succeeded events.
type PaymentWebhookEvent struct {
	ID            string           `json:"id" validate:"required"`
	Type          PaymentEventType `json:"type" validate:"required,oneof=payment.succeeded payment.failed payment.expired payment.refunded"`
	BookingID     string           `json:"booking_id" validate:"required,uuid"`
	PaymentStatus PaymentStatus    `json:"payment_status" validate:"omitempty,oneof=deposit paid"`
	AmountCents   int              `json:"amount_cents" validate:"gte=0"`
	Reason        string           `json:"reason" validate:"omitempty,max=500"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// PaymentWebhookResult reports what the webhook did.
type PaymentWebhookResult struct {
	EventID   string        `json:"event_id"`
	BookingID string        `json:"booking_id"`
	Status    BookingStatus `json:"status"`
	Payment   PaymentStatus `json:"payment_status"`
	Applied   bool          `json:"applied"`
}
