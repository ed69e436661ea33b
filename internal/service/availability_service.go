package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

type activeBookingReader interface {
	ListActiveOverlapping(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string, from, to time.Time, leadBuffer bool) ([]models.Booking, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// AvailabilityConfig tunes availability answers.
type AvailabilityConfig struct {
	BufferPolicy calendar.BufferPolicy
	MaxRangeDays int
}

// AvailabilityService answers read-only "what is free" queries.
type AvailabilityService struct {
	scopes    scopeResolver
	calendars calendarReader
	bookings  activeBookingReader
	tx        txProvider
	checker   calendar.Checker
	maxRange  int
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAvailabilityService wires availability dependencies.
func NewAvailabilityService(
	tenants tenantReader,
	services offeringReader,
	calendars calendarReader,
	bookings activeBookingReader,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AvailabilityConfig,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 62
	}
	return &AvailabilityService{
		scopes:    scopeResolver{tenants: tenants, services: services},
		calendars: calendars,
		bookings:  bookings,
		tx:        tx,
		checker:   calendar.NewChecker(cfg.BufferPolicy),
		maxRange:  cfg.MaxRangeDays,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// GetAvailability returns the ordered slots of a service in the requested
// date range. A slot reported available may still be taken before it is
// reserved; Reserve is authoritative.
func (s *AvailabilityService) GetAvailability(ctx context.Context, query models.AvailabilityQuery) (*models.AvailabilityResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, invalidPayload(err)
	}
	started := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(started)) }()

	scope, err := s.scopes.resolve(ctx, query.TenantID, query.ServiceID, query.StaffID)
	if err != nil {
		return nil, err
	}
	from, err := parseQueryDate(query.From, scope.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD or RFC3339")
	}
	to, err := parseQueryDate(query.To, scope.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD or RFC3339")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	now := s.now().UTC()
	first, last := scope.window(now)
	from = calendar.MaxDate(from, first)
	to = calendar.MinDate(to, last)
	to = calendar.MinDate(to, from.AddDays(s.maxRange-1))

	result := &models.AvailabilityResult{
		TenantID:  scope.Tenant.ID,
		ServiceID: scope.Service.ID,
		StaffID:   query.StaffID,
		TimeZone:  scope.Location.String(),
		From:      from.String(),
		To:        to.String(),
		Slots:     []models.AvailabilitySlot{},
	}
	if to.Before(from) {
		return result, nil
	}

	slots, err := s.computeSlots(ctx, scope, from, to, now)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		result.Slots = append(result.Slots, models.AvailabilitySlot{StartUTC: slot.Start, EndUTC: slot.End, Available: slot.Available})
	}
	return result, nil
}

// IsAvailable reports whether start is offered as an available slot.
func (s *AvailabilityService) IsAvailable(ctx context.Context, tenantID, serviceID, staffID string, start time.Time) (bool, error) {
	scope, err := s.scopes.resolve(ctx, tenantID, serviceID, staffID)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	if start.Before(now) {
		return false, nil
	}
	day := calendar.DateIn(start, scope.Location)
	first, last := scope.window(now)
	if day.Before(first) || day.After(last) {
		return false, nil
	}
	slots, err := s.computeSlots(ctx, scope, day, day, now)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return slot.Available, nil
		}
	}
	return false, nil
}

// computeSlots reads the calendar and active bookings from one snapshot and
// walks every resource in scope.
func (s *AvailabilityService) computeSlots(ctx context.Context, scope *bookingScope, from, to calendar.Date, now time.Time) ([]calendar.Slot, error) {
	windowStart := from.StartIn(scope.Location).UTC()
	windowEnd := to.AddDays(1).StartIn(scope.Location).UTC()
	buffer := scope.Service.Buffer()

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open availability snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	cal, err := loadCalendar(ctx, s.calendars, tx, scope, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListActiveOverlapping(ctx, tx, scope.resourceIDs(), windowStart.Add(-buffer), windowEnd.Add(buffer), s.checker.LeadsWithExistingBuffer())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close availability snapshot")
	}

	byResource := occupancies(bookings)
	var streams [][]calendar.Slot
	for _, res := range scope.Resources {
		cursor := calendar.GenerateSlots(cal, res.StaffID, from, to, scope.Service.Duration())
		walked := s.checker.Walk(cursor, buffer, byResource[res.ResourceID])
		streams = append(streams, dropPast(walked, now))
	}
	s.logger.Debug("availability computed",
		zap.String("tenant_id", scope.Tenant.ID),
		zap.String("service_id", scope.Service.ID),
		zap.Int("resources", len(scope.Resources)),
		zap.Int("bookings", len(bookings)),
	)
	return mergeSlotStreams(streams), nil
}

func dropPast(slots []calendar.Slot, now time.Time) []calendar.Slot {
	out := slots[:0]
	for _, slot := range slots {
		if !slot.Start.Before(now) {
			out = append(out, slot)
		}
	}
	return out
}

// mergeSlotStreams unions per-resource slots: a slot is available when any
// resource offers it free.
func mergeSlotStreams(streams [][]calendar.Slot) []calendar.Slot {
	if len(streams) == 1 {
		return streams[0]
	}
	type key struct{ start, end int64 }
	index := make(map[key]int)
	var merged []calendar.Slot
	for _, stream := range streams {
		for _, slot := range stream {
			k := key{slot.Start.UnixNano(), slot.End.UnixNano()}
			if i, ok := index[k]; ok {
				merged[i].Available = merged[i].Available || slot.Available
				continue
			}
			index[k] = len(merged)
			merged = append(merged, slot)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Start.Equal(merged[j].Start) {
			return merged[i].End.Before(merged[j].End)
		}
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}
