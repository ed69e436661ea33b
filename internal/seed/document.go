package seed

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
)

// Document is the root of a seed file.
type Document struct {
	Tenants []TenantSeed `yaml:"tenants"`
}

// TenantSeed describes one business with its staff, services and schedule.
type TenantSeed struct {
	ID           string          `yaml:"id,omitempty"`
	OwnerID      string          `yaml:"owner_id"`
	BusinessName string          `yaml:"business_name"`
	Slug         string          `yaml:"slug"`
	TimeZone     string          `yaml:"time_zone,omitempty"`
	Staff        []StaffSeed     `yaml:"staff,omitempty"`
	Services     []ServiceSeed   `yaml:"services"`
	WorkingHours []WorkingHours  `yaml:"working_hours"`
	Exceptions   []ExceptionSeed `yaml:"exceptions,omitempty"`
}

// StaffSeed is a bookable staff member. Key is how working hours and
// exceptions refer to it inside the file.
type StaffSeed struct {
	Key         string `yaml:"key"`
	ID          string `yaml:"id,omitempty"`
	UserID      string `yaml:"user_id"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role,omitempty"`
}

// ServiceSeed is a bookable offering.
type ServiceSeed struct {
	ID                 string `yaml:"id,omitempty"`
	Name               string `yaml:"name"`
	Description        string `yaml:"description,omitempty"`
	PriceCents         int    `yaml:"price_cents"`
	DurationMinutes    int    `yaml:"duration_minutes"`
	DepositCents       int    `yaml:"deposit_cents,omitempty"`
	FullPayRequired    bool   `yaml:"full_pay_required,omitempty"`
	BufferMinutes      int    `yaml:"buffer_minutes,omitempty"`
	AdvanceBookingDays *int   `yaml:"advance_booking_days,omitempty"`
}

// WorkingHours expands into one template row per listed weekday
// (0 = Sunday). An empty Staff key applies to the whole tenant.
type WorkingHours struct {
	Staff string `yaml:"staff,omitempty"`
	Days  []int  `yaml:"days"`
	Start string `yaml:"start"` // "09:00"
	End   string `yaml:"end"`   // "17:00", "24:00" allowed
}

// ExceptionSeed blocks time on a local date. Without Start and End the
// whole day is blocked.
type ExceptionSeed struct {
	Staff  string `yaml:"staff,omitempty"`
	Date   string `yaml:"date"` // "2025-12-25"
	Start  string `yaml:"start,omitempty"`
	End    string `yaml:"end,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

const defaultAdvanceBookingDays = 30

// LoadFile reads, parses and validates a seed file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("validate seed file: %w", err)
	}
	return &doc, nil
}

// Validate checks references, clocks, dates and zones before anything is written.
func (d *Document) Validate() error {
	if len(d.Tenants) == 0 {
		return fmt.Errorf("no tenants defined")
	}
	slugs := make(map[string]bool)
	for i, tenant := range d.Tenants {
		where := fmt.Sprintf("tenant[%d]", i)
		if strings.TrimSpace(tenant.BusinessName) == "" || strings.TrimSpace(tenant.Slug) == "" {
			return fmt.Errorf("%s: business_name and slug are required", where)
		}
		if tenant.OwnerID == "" {
			return fmt.Errorf("%s: owner_id is required", where)
		}
		if slugs[tenant.Slug] {
			return fmt.Errorf("%s: duplicate slug %q", where, tenant.Slug)
		}
		slugs[tenant.Slug] = true
		if tenant.TimeZone != "" {
			if _, err := time.LoadLocation(tenant.TimeZone); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		}

		staff := make(map[string]bool)
		for j, member := range tenant.Staff {
			if member.Key == "" || member.UserID == "" || member.DisplayName == "" {
				return fmt.Errorf("%s.staff[%d]: key, user_id and display_name are required", where, j)
			}
			if staff[member.Key] {
				return fmt.Errorf("%s.staff[%d]: duplicate key %q", where, j, member.Key)
			}
			staff[member.Key] = true
		}
		known := func(key string) bool { return key == "" || staff[key] }

		for j, svc := range tenant.Services {
			if svc.Name == "" || svc.DurationMinutes <= 0 {
				return fmt.Errorf("%s.services[%d]: name and a positive duration_minutes are required", where, j)
			}
			if svc.BufferMinutes < 0 || (svc.AdvanceBookingDays != nil && *svc.AdvanceBookingDays < 0) {
				return fmt.Errorf("%s.services[%d]: buffer and advance booking days must not be negative", where, j)
			}
		}
		for j, hours := range tenant.WorkingHours {
			if !known(hours.Staff) {
				return fmt.Errorf("%s.working_hours[%d]: unknown staff %q", where, j, hours.Staff)
			}
			if len(hours.Days) == 0 {
				return fmt.Errorf("%s.working_hours[%d]: days are required", where, j)
			}
			for _, day := range hours.Days {
				if day < 0 || day > 6 {
					return fmt.Errorf("%s.working_hours[%d]: day %d out of range", where, j, day)
				}
			}
			if _, _, err := clockRange(hours.Start, hours.End); err != nil {
				return fmt.Errorf("%s.working_hours[%d]: %w", where, j, err)
			}
		}
		for j, exc := range tenant.Exceptions {
			if !known(exc.Staff) {
				return fmt.Errorf("%s.exceptions[%d]: unknown staff %q", where, j, exc.Staff)
			}
			if _, err := calendar.ParseDate(exc.Date); err != nil {
				return fmt.Errorf("%s.exceptions[%d]: %w", where, j, err)
			}
			if exc.Start != "" || exc.End != "" {
				if _, _, err := clockRange(exc.Start, exc.End); err != nil {
					return fmt.Errorf("%s.exceptions[%d]: %w", where, j, err)
				}
			}
		}
	}
	return nil
}

func clockRange(start, end string) (int, int, error) {
	from, err := calendar.ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	to, err := calendar.ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if to <= from {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return from, to, nil
}
