package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/models"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type tenantWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, tenant *models.Tenant) error
	CreateStaff(ctx context.Context, exec sqlx.ExtContext, staff *models.Staff) error
}

type serviceWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, service *models.Service) error
}

type scheduleWriter interface {
	CreateRule(ctx context.Context, exec sqlx.ExtContext, rule *models.WorkingHoursRule) error
	CreateException(ctx context.Context, exec sqlx.ExtContext, exception *models.AvailabilityException) error
}

// Summary counts the rows a Load wrote.
type Summary struct {
	Tenants      int
	Staff        int
	Services     int
	WorkingHours int
	Exceptions   int
}

// Loader writes seed documents through the repositories.
type Loader struct {
	db        txBeginner
	tenants   tenantWriter
	services  serviceWriter
	schedules scheduleWriter
	logger    *zap.Logger
}

// NewLoader constructs a Loader.
func NewLoader(db txBeginner, tenants tenantWriter, services serviceWriter, schedules scheduleWriter, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, tenants: tenants, services: services, schedules: schedules, logger: logger}
}

// Load writes every tenant of doc in a single transaction. Nothing is
// committed when any row fails.
func (l *Loader) Load(ctx context.Context, doc *Document) (summary Summary, err error) {
	if err = doc.Validate(); err != nil {
		return summary, err
	}
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, tenant := range doc.Tenants {
		if err = l.loadTenant(ctx, tx, tenant, &summary); err != nil {
			return Summary{}, fmt.Errorf("seed tenant %s: %w", tenant.Slug, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed transaction: %w", err)
	}
	l.logger.Info("seed loaded",
		zap.Int("tenants", summary.Tenants),
		zap.Int("staff", summary.Staff),
		zap.Int("services", summary.Services),
		zap.Int("working_hours", summary.WorkingHours),
		zap.Int("exceptions", summary.Exceptions),
	)
	return summary, nil
}

func (l *Loader) loadTenant(ctx context.Context, tx sqlx.ExtContext, seed TenantSeed, summary *Summary) error {
	tenant := &models.Tenant{
		ID:           seed.ID,
		OwnerID:      seed.OwnerID,
		BusinessName: strings.TrimSpace(seed.BusinessName),
		Slug:         strings.TrimSpace(seed.Slug),
		TimeZone:     seed.TimeZone,
		Active:       true,
	}
	if err := l.tenants.Create(ctx, tx, tenant); err != nil {
		return err
	}
	summary.Tenants++
	loc, err := tenant.Location()
	if err != nil {
		return err
	}

	staffIDs := make(map[string]*string, len(seed.Staff))
	for _, member := range seed.Staff {
		staff := &models.Staff{
			ID:          member.ID,
			TenantID:    tenant.ID,
			UserID:      member.UserID,
			DisplayName: member.DisplayName,
			Role:        models.StaffRole(member.Role),
			Active:      true,
		}
		if err := l.tenants.CreateStaff(ctx, tx, staff); err != nil {
			return err
		}
		id := staff.ID
		staffIDs[member.Key] = &id
		summary.Staff++
	}

	for _, svc := range seed.Services {
		advance := defaultAdvanceBookingDays
		if svc.AdvanceBookingDays != nil {
			advance = *svc.AdvanceBookingDays
		}
		service := &models.Service{
			ID:                 svc.ID,
			TenantID:           tenant.ID,
			Name:               svc.Name,
			PriceCents:         svc.PriceCents,
			DurationMinutes:    svc.DurationMinutes,
			DepositCents:       svc.DepositCents,
			FullPayRequired:    svc.FullPayRequired,
			BufferMinutes:      svc.BufferMinutes,
			AdvanceBookingDays: advance,
			Active:             true,
		}
		if svc.Description != "" {
			description := svc.Description
			service.Description = &description
		}
		if err := l.services.Create(ctx, tx, service); err != nil {
			return err
		}
		summary.Services++
	}

	for _, hours := range seed.WorkingHours {
		for _, day := range hours.Days {
			rule := &models.WorkingHoursRule{
				ID:        uuid.NewString(),
				TenantID:  tenant.ID,
				StaffID:   staffIDs[hours.Staff],
				DayOfWeek: day,
				StartTime: hours.Start,
				EndTime:   hours.End,
				Active:    true,
			}
			if err := l.schedules.CreateRule(ctx, tx, rule); err != nil {
				return err
			}
			summary.WorkingHours++
		}
	}

	for _, exc := range seed.Exceptions {
		start, end, err := exceptionBounds(exc, loc)
		if err != nil {
			return err
		}
		exception := &models.AvailabilityException{
			TenantID: tenant.ID,
			StaffID:  staffIDs[exc.Staff],
			StartUTC: start,
			EndUTC:   end,
		}
		if exc.Reason != "" {
			reason := exc.Reason
			exception.Reason = &reason
		}
		if err := l.schedules.CreateException(ctx, tx, exception); err != nil {
			return err
		}
		summary.Exceptions++
	}
	return nil
}

func exceptionBounds(exc ExceptionSeed, loc *time.Location) (time.Time, time.Time, error) {
	date, err := calendar.ParseDate(exc.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, to := 0, 24*60
	if exc.Start != "" || exc.End != "" {
		if from, to, err = clockRange(exc.Start, exc.End); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return date.At(from, loc).UTC(), date.At(to, loc).UTC(), nil
}
