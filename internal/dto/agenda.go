package dto

import "time"

// AgendaQuery selects a tenant's local day and the output format.
type AgendaQuery struct {
	Date   string `form:"date" validate:"required"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// AgendaRow is one booking joined with its service and staff names.
type AgendaRow struct {
	BookingID   string    `db:"id"`
	StartUTC    time.Time `db:"start_utc"`
	EndUTC      time.Time `db:"end_utc"`
	Status      string    `db:"status"`
	Payment     string    `db:"payment_status"`
	ServiceName string    `db:"service_name"`
	StaffName   *string   `db:"staff_name"`
	ClientName  string    `db:"client_name"`
	ClientEmail string    `db:"client_email"`
	ClientPhone *string   `db:"client_phone"`
}

// AgendaFile is a rendered agenda export.
type AgendaFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
