package dto

import "time"

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	TenantID   string            `json:"tenantId" validate:"required,uuid"`
	ServiceID  string            `json:"serviceId" validate:"required,uuid"`
	StaffID    string            `json:"staffId,omitempty" validate:"omitempty,uuid"`
	StartUTC   time.Time         `json:"startUtc" validate:"required"`
	ClientInfo ClientInfoPayload `json:"clientInfo"`
}

// ClientInfoPayload carries client contact details.
type ClientInfoPayload struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// CancelBookingRequest optionally explains a cancellation.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateNotesRequest replaces the pro-only internal notes.
type UpdateNotesRequest struct {
	InternalNotes string `json:"internalNotes" validate:"max=4000"`
}

// ListBookingsQuery binds list query parameters.
type ListBookingsQuery struct {
	Status   []string `form:"status"`
	StaffID  string   `form:"staffId"`
	From     string   `form:"from"`
	To       string   `form:"to"`
	Page     int      `form:"page"`
	PageSize int      `form:"pageSize"`
	Order    string   `form:"order"`
}
