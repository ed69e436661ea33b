package models

import (
	"fmt"
	"time"
)

// DefaultTimeZone is applied to tenants created without an explicit zone.
const DefaultTimeZone = "America/New_York"

// Tenant is a registered business and the multi-tenancy boundary.
type Tenant struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	BusinessName string    `db:"business_name" json:"business_name"`
	Slug         string    `db:"slug" json:"slug"`
	TimeZone     string    `db:"time_zone" json:"time_zone"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the tenant time zone.
func (t Tenant) Location() (*time.Location, error) {
	zone := t.TimeZone
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("tenant %s time zone %q: %w", t.ID, zone, err)
	}
	return loc, nil
}

// StaffRole captures the position of a staff account inside a tenant.
type StaffRole string

const (
	StaffRoleOwner   StaffRole = "owner"
	StaffRoleManager StaffRole = "manager"
	StaffRoleStaff   StaffRole = "staff"
)

// Staff is a bookable resource of a tenant.
type Staff struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        StaffRole `db:"role" json:"role"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
