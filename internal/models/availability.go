package models

import (
	"fmt"
	"time"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
)

// WorkingHoursRule is a recurring weekly template row. A nil StaffID applies
// the rule to every staff member of the tenant.
type WorkingHoursRule struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	StaffID   *string   `db:"staff_id" json:"staff_id,omitempty"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ToRule converts the row into a calendar rule.
func (r WorkingHoursRule) ToRule() (calendar.Rule, error) {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return calendar.Rule{}, fmt.Errorf("working hours %s: day_of_week %d out of range", r.ID, r.DayOfWeek)
	}
	start, err := calendar.ParseClock(r.StartTime)
	if err != nil {
		return calendar.Rule{}, fmt.Errorf("working hours %s: %w", r.ID, err)
	}
	end, err := calendar.ParseClock(r.EndTime)
	if err != nil {
		return calendar.Rule{}, fmt.Errorf("working hours %s: %w", r.ID, err)
	}
	rule := calendar.Rule{
		Scope:       calendar.ScopeFromNullable(r.StaffID),
		Weekday:     time.Weekday(r.DayOfWeek),
		StartMinute: start,
		EndMinute:   end,
	}
	if err := rule.Validate(); err != nil {
		return calendar.Rule{}, fmt.Errorf("working hours %s: %w", r.ID, err)
	}
	return rule, nil
}

// AvailabilityException removes an interval from working hours.
type AvailabilityException struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	StaffID   *string   `db:"staff_id" json:"staff_id,omitempty"`
	StartUTC  time.Time `db:"start_utc" json:"start_utc"`
	EndUTC    time.Time `db:"end_utc" json:"end_utc"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ToException converts the row into a calendar exception.
func (e AvailabilityException) ToException() calendar.Exception {
	reason := ""
	if e.Reason != nil {
		reason = *e.Reason
	}
	return calendar.Exception{
		Scope:  calendar.ScopeFromNullable(e.StaffID),
		Span:   calendar.Interval{Start: e.StartUTC.UTC(), End: e.EndUTC.UTC()},
		Reason: reason,
	}
}

// AvailabilityQuery asks for the bookable slots of a service. From and To
// accept YYYY-MM-DD or RFC3339 and are read as dates in the tenant zone.
type AvailabilityQuery struct {
	TenantID  string `form:"tenantId" json:"tenantId" validate:"required,uuid"`
	ServiceID string `form:"serviceId" json:"serviceId" validate:"required,uuid"`
	StaffID   string `form:"staffId" json:"staffId,omitempty" validate:"omitempty,uuid"`
	From      string `form:"from" json:"from" validate:"required"`
	To        string `form:"to" json:"to" validate:"required"`
}

// AvailabilitySlot is one candidate appointment in an availability answer.
type AvailabilitySlot struct {
	StartUTC  time.Time `json:"startUtc"`
	EndUTC    time.Time `json:"endUtc"`
	Available bool      `json:"available"`
}

// AvailabilityResult is the ordered answer of an availability query.
type AvailabilityResult struct {
	TenantID  string             `json:"tenantId"`
	ServiceID string             `json:"serviceId"`
	StaffID   string             `json:"staffId,omitempty"`
	TimeZone  string             `json:"timeZone"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Slots     []AvailabilitySlot `json:"slots"`
}
