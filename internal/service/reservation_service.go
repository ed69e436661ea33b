package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
)

// Staff selection strategies for unassigned reservations.
const (
	SelectFirstFree   = "first_free"
	SelectLeastLoaded = "least_loaded"
)

type reservationStore interface {
	Begin(ctx context.Context) (repository.ReservationTx, error)
}

type eventPublisher interface {
	Publish(event events.Event)
}

type manageTokenIssuer interface {
	Generate(purpose, subject string) (string, time.Time, error)
}

// ManageTokenPurpose scopes signed guest management links.
const ManageTokenPurpose = "manage"

// ReservationConfig tunes the reservation transaction.
type ReservationConfig struct {
	BufferPolicy   calendar.BufferPolicy
	StaffSelection string
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// ReservationService creates bookings so that no two active bookings of a
// resource ever overlap once buffers apply.
type ReservationService struct {
	scopes    scopeResolver
	calendars calendarReader
	store     reservationStore
	checker   calendar.Checker
	cfg       ReservationConfig
	publisher eventPublisher
	links     manageTokenIssuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewReservationService wires reservation dependencies. publisher and links may be nil.
func NewReservationService(
	tenants tenantReader,
	services offeringReader,
	calendars calendarReader,
	store reservationStore,
	publisher eventPublisher,
	links manageTokenIssuer,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ReservationConfig,
) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 25 * time.Millisecond
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = 16 * cfg.RetryBaseDelay
	}
	if cfg.StaffSelection != SelectLeastLoaded {
		cfg.StaffSelection = SelectFirstFree
	}
	return &ReservationService{
		scopes:    scopeResolver{tenants: tenants, services: services},
		calendars: calendars,
		store:     store,
		checker:   calendar.NewChecker(cfg.BufferPolicy),
		cfg:       cfg,
		publisher: publisher,
		links:     links,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// reservationPlan is a validated request ready for check-and-insert.
type reservationPlan struct {
	req        models.ReservationRequest
	scope      *bookingScope
	start      time.Time
	end        time.Time
	buffer     time.Duration
	candidates []resource
	dayStart   time.Time
	dayEnd     time.Time
}

// Reserve atomically creates a pending booking or fails with SlotTaken,
// ValidationError, NotFound or Transient.
func (s *ReservationService) Reserve(ctx context.Context, req models.ReservationRequest) (*models.Booking, error) {
	plan, err := s.plan(ctx, req)
	if err != nil {
		s.metrics.ObserveReservation(OutcomeRejected, 0)
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		booking, err := s.tryReserve(ctx, plan)
		if err == nil {
			s.metrics.ObserveReservation(OutcomeCreated, attempt)
			s.logger.Info("booking reserved",
				zap.String("booking_id", booking.ID),
				zap.String("tenant_id", booking.TenantID),
				zap.String("resource_id", booking.ResourceID),
				zap.Time("start_utc", booking.StartUTC),
				zap.Int("attempts", attempt),
			)
			s.afterCommit(booking)
			return booking, nil
		}
		if errors.Is(err, appErrors.ErrSlotTaken) {
			s.metrics.ObserveReservation(OutcomeSlotTaken, attempt)
			s.logger.Debug("slot taken", zap.String("tenant_id", plan.scope.Tenant.ID), zap.Time("start_utc", plan.start))
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.metrics.ObserveReservation(OutcomeTransient, attempt)
			return nil, appErrors.Wrap(ctxErr, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "reservation abandoned before commit")
		}
		if !repository.IsTransient(err) {
			s.metrics.ObserveReservation(OutcomeError, attempt)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve booking")
		}
		if attempt >= s.cfg.MaxAttempts {
			s.metrics.ObserveReservation(OutcomeTransient, attempt)
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
		}
		delay := s.backoff(attempt)
		s.logger.Warn("reservation retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			s.metrics.ObserveReservation(OutcomeTransient, attempt)
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "reservation abandoned before commit")
		}
	}
}

// plan validates the request before any write. Every rejection here is a
// ValidationError or NotFound and is never retried.
func (s *ReservationService) plan(ctx context.Context, req models.ReservationRequest) (*reservationPlan, error) {
	req.ClientInfo.Name = strings.TrimSpace(req.ClientInfo.Name)
	req.ClientInfo.Email = strings.TrimSpace(req.ClientInfo.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	if req.StartUTC.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startUtc is required")
	}

	now := s.now().UTC()
	start := req.StartUTC.UTC()
	if start.Before(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startUtc is in the past")
	}

	scope, err := s.scopes.resolve(ctx, req.TenantID, req.ServiceID, req.StaffID)
	if err != nil {
		return nil, err
	}
	day := calendar.DateIn(start, scope.Location)
	_, last := scope.window(now)
	if day.After(last) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "startUtc is beyond the advance booking window"),
			map[string]interface{}{"advanceBookingDays": scope.Service.AdvanceBookingDays})
	}

	end := start.Add(scope.Service.Duration())
	dayStart := day.StartIn(scope.Location).UTC()
	dayEnd := day.AddDays(1).StartIn(scope.Location).UTC()
	cal, err := loadCalendar(ctx, s.calendars, nil, scope, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	candidate := calendar.Interval{Start: start, End: end}
	var candidates []resource
	for _, res := range scope.Resources {
		for _, working := range cal.EffectiveWorkingIntervals(day, res.StaffID) {
			if working.Contains(candidate) {
				candidates = append(candidates, res)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startUtc is outside working hours")
	}

	req.StartUTC = start
	return &reservationPlan{
		req:        req,
		scope:      scope,
		start:      start,
		end:        end,
		buffer:     scope.Service.Buffer(),
		candidates: candidates,
		dayStart:   dayStart,
		dayEnd:     dayEnd,
	}, nil
}

// tryReserve runs one check-and-insert transaction. The insert is the last
// statement, so an abandoned attempt leaves no row behind.
func (s *ReservationService) tryReserve(ctx context.Context, plan *reservationPlan) (booking *models.Booking, err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("reservation rollback failed", zap.Error(rbErr))
			}
		}
	}()

	ids := make([]string, len(plan.candidates))
	for i, c := range plan.candidates {
		ids[i] = c.ResourceID
	}
	if err = tx.LockResources(ctx, ids); err != nil {
		return nil, err
	}

	existing, err := tx.ActiveBookings(ctx, ids, plan.start.Add(-plan.buffer), plan.end.Add(plan.buffer), s.checker.LeadsWithExistingBuffer())
	if err != nil {
		return nil, err
	}
	byResource := occupancies(existing)
	want := calendar.Occupancy{Start: plan.start, End: plan.end, Buffer: plan.buffer}

	var free []resource
	for _, c := range plan.candidates {
		if s.checker.IsAvailable(want, byResource[c.ResourceID]) {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		err = appErrors.Clone(appErrors.ErrSlotTaken, "")
		return nil, err
	}

	chosen := free[0]
	if s.cfg.StaffSelection == SelectLeastLoaded && len(free) > 1 {
		if chosen, err = s.leastLoaded(ctx, tx, plan, free); err != nil {
			return nil, err
		}
	}

	booking = newPendingBooking(plan, chosen)
	if err = tx.Insert(ctx, booking); err != nil {
		if repository.IsOverlap(err) {
			err = appErrors.Wrap(err, appErrors.ErrSlotTaken.Code, appErrors.ErrSlotTaken.Status, appErrors.ErrSlotTaken.Message)
		}
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *ReservationService) leastLoaded(ctx context.Context, tx repository.ReservationTx, plan *reservationPlan, free []resource) (resource, error) {
	ids := make([]string, len(free))
	for i, f := range free {
		ids[i] = f.ResourceID
	}
	counts, err := tx.CountActiveOnDay(ctx, ids, plan.dayStart, plan.dayEnd)
	if err != nil {
		return resource{}, err
	}
	best := free[0]
	for _, f := range free[1:] {
		if counts[f.ResourceID] < counts[best.ResourceID] {
			best = f
		}
	}
	return best, nil
}

func newPendingBooking(plan *reservationPlan, chosen resource) *models.Booking {
	info := plan.req.ClientInfo
	booking := &models.Booking{
		ClientID:      plan.req.ClientID,
		TenantID:      plan.scope.Tenant.ID,
		ServiceID:     plan.scope.Service.ID,
		StaffID:       chosen.staffPointer(),
		ResourceID:    chosen.ResourceID,
		StartUTC:      plan.start,
		EndUTC:        plan.end,
		BufferMinutes: plan.scope.Service.BufferMinutes,
		BlockedUntil:  plan.end.Add(plan.buffer),
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		ClientName:    info.Name,
		ClientEmail:   info.Email,
	}
	if info.Phone != "" {
		phone := info.Phone
		booking.ClientPhone = &phone
	}
	if info.Notes != "" {
		notes := info.Notes
		booking.ClientNotes = &notes
	}
	return booking
}

// afterCommit attaches the manage link and emits booking.created. Neither may
// fail the reservation.
func (s *ReservationService) afterCommit(booking *models.Booking) {
	if s.links != nil {
		token, expires, err := s.links.Generate(ManageTokenPurpose, booking.ID)
		if err != nil {
			s.logger.Warn("manage token generation failed", zap.String("booking_id", booking.ID), zap.Error(err))
		} else {
			booking.ManageToken = token
			booking.ManageTokenExpires = &expires
		}
	}
	if s.publisher != nil {
		at := s.now().UTC()
		s.publisher.Publish(events.Event{
			Type:       string(models.EventBookingCreated),
			Key:        booking.TenantID,
			Payload:    models.NewBookingEvent(models.EventBookingCreated, booking, "", at),
			OccurredAt: at,
		})
	}
}

// backoff returns an exponential delay with jitter in [d/2, d).
func (s *ReservationService) backoff(attempt int) time.Duration {
	d := s.cfg.RetryBaseDelay << uint(attempt-1)
	if d <= 0 || d > s.cfg.RetryMaxDelay {
		d = s.cfg.RetryMaxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
