package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

type tenantReader interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	ListActiveStaff(ctx context.Context, tenantID string) ([]models.Staff, error)
	FindStaff(ctx context.Context, tenantID, staffID string) (*models.Staff, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Service, error)
}

type calendarReader interface {
	ListRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.WorkingHoursRule, error)
	ListExceptions(ctx context.Context, exec sqlx.ExtContext, tenantID string, from, to time.Time) ([]models.AvailabilityException, error)
}

// resource is one bookable calendar: a staff member, or the tenant itself
// when it has no active staff.
type resource struct {
	StaffID    string
	ResourceID string
}

func (r resource) staffPointer() *string {
	if r.StaffID == "" {
		return nil
	}
	id := r.StaffID
	return &id
}

// bookingScope is everything resolved about a (tenant, service, staff) request.
type bookingScope struct {
	Tenant    *models.Tenant
	Location  *time.Location
	Service   *models.Service
	Resources []resource
	Assigned  bool
}

func (s *bookingScope) resourceIDs() []string {
	ids := make([]string, len(s.Resources))
	for i, r := range s.Resources {
		ids[i] = r.ResourceID
	}
	return ids
}

// window returns the first and last bookable local dates at now.
func (s *bookingScope) window(now time.Time) (calendar.Date, calendar.Date) {
	today := calendar.DateIn(now, s.Location)
	return today, today.AddDays(s.Service.AdvanceBookingDays)
}

type scopeResolver struct {
	tenants  tenantReader
	services offeringReader
}

func (r scopeResolver) resolve(ctx context.Context, tenantID, serviceID, staffID string) (*bookingScope, error) {
	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "tenant not found", "failed to load tenant")
	}
	loc, err := tenant.Location()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "tenant time zone is invalid")
	}
	svc, err := r.services.FindByID(ctx, tenantID, serviceID)
	if err != nil {
		return nil, notFoundOr(err, "service not found", "failed to load service")
	}
	if svc.DurationMinutes <= 0 || svc.BufferMinutes < 0 || svc.AdvanceBookingDays < 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "service configuration is invalid")
	}

	scope := &bookingScope{Tenant: tenant, Location: loc, Service: svc}
	if strings.TrimSpace(staffID) != "" {
		staff, err := r.tenants.FindStaff(ctx, tenantID, staffID)
		if err != nil {
			return nil, notFoundOr(err, "staff member not found", "failed to load staff member")
		}
		scope.Resources = []resource{{StaffID: staff.ID, ResourceID: staff.ID}}
		scope.Assigned = true
		return scope, nil
	}

	staff, err := r.tenants.ListActiveStaff(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if len(staff) == 0 {
		scope.Resources = []resource{{ResourceID: tenant.ID}}
		return scope, nil
	}
	for _, member := range staff {
		scope.Resources = append(scope.Resources, resource{StaffID: member.ID, ResourceID: member.ID})
	}
	sort.Slice(scope.Resources, func(i, j int) bool { return scope.Resources[i].StaffID < scope.Resources[j].StaffID })
	return scope, nil
}

// loadCalendar reads the tenant's rules and the exceptions overlapping
// [from, to) through exec and builds the calendar model.
func loadCalendar(ctx context.Context, reader calendarReader, exec sqlx.ExtContext, scope *bookingScope, from, to time.Time) (*calendar.Calendar, error) {
	rows, err := reader.ListRules(ctx, exec, scope.Tenant.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load working hours")
	}
	excRows, err := reader.ListExceptions(ctx, exec, scope.Tenant.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability exceptions")
	}

	rules := make([]calendar.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.ToRule()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored working hours are invalid")
		}
		rules = append(rules, rule)
	}
	exceptions := make([]calendar.Exception, 0, len(excRows))
	for _, row := range excRows {
		exceptions = append(exceptions, row.ToException())
	}
	cal, err := calendar.NewCalendar(scope.Location, rules, exceptions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored calendar is invalid")
	}
	return cal, nil
}

// occupancies groups active bookings by resource id.
func occupancies(bookings []models.Booking) map[string][]calendar.Occupancy {
	out := make(map[string][]calendar.Occupancy)
	for _, b := range bookings {
		if !b.Status.IsActive() {
			continue
		}
		key := b.ResourceID
		if key == "" {
			key = b.TenantID
			if b.StaffID != nil {
				key = *b.StaffID
			}
		}
		out[key] = append(out[key], calendar.Occupancy{ID: b.ID, Start: b.StartUTC.UTC(), End: b.EndUTC.UTC(), Buffer: b.Buffer()})
	}
	return out
}

// parseQueryDate accepts YYYY-MM-DD or RFC3339 and returns the date in loc.
func parseQueryDate(raw string, loc *time.Location) (calendar.Date, error) {
	raw = strings.TrimSpace(raw)
	if d, err := calendar.ParseDate(raw); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("invalid date %q", raw)
	}
	return calendar.DateIn(t, loc), nil
}

func notFoundOr(err error, notFound, internal string) error {
	if repository.IsNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
