package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
)

// Actor sources. Only API actors are subject to membership checks.
const (
	SourceAPI        = "api"
	SourceManageLink = "manage_link"
	SourceWebhook    = "payment_webhook"
	SourceSystem     = "system"
)

type bookingStore interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, change repository.StatusChange) (*models.Booking, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Booking, error)
	UpdateInternalNotes(ctx context.Context, id string, notes *string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

type membershipChecker interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	IsMember(ctx context.Context, tenantID, userID string) (bool, error)
}

// Transition asks for one lifecycle move.
type Transition struct {
	BookingID string
	To        models.BookingStatus
	Reason    string
	Payment   *models.PaymentStatus
	Actor     models.Actor
}

// TransitionOutcome reports the booking after a transition and whether
// anything was written.
type TransitionOutcome struct {
	Booking *models.Booking
	Changed bool
}

// BookingService owns the booking lifecycle after creation.
type BookingService struct {
	bookings  bookingStore
	members   membershipChecker
	publisher eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService creates a BookingService. publisher may be nil.
func NewBookingService(bookings bookingStore, members membershipChecker, publisher eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		members:   members,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns a booking visible to actor.
func (s *BookingService) Get(ctx context.Context, id string, actor models.Actor) (*models.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, booking, actor, true); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListForTenant lists a tenant's bookings for a member of that tenant.
func (s *BookingService) ListForTenant(ctx context.Context, tenantID string, query dto.ListBookingsQuery, actor models.Actor) ([]models.Booking, *models.Pagination, error) {
	tenant, err := s.members.FindByID(ctx, tenantID)
	if err != nil {
		return nil, nil, notFoundOr(err, "tenant not found", "failed to load tenant")
	}
	if err := s.requireMember(ctx, tenant.ID, actor); err != nil {
		return nil, nil, err
	}
	loc, err := tenant.Location()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "tenant time zone is invalid")
	}
	filter, err := buildBookingFilter(query, loc)
	if err != nil {
		return nil, nil, err
	}
	filter.TenantID = tenant.ID
	filter.StaffID = strings.TrimSpace(query.StaffID)
	return s.list(ctx, filter)
}

// ListForClient lists the bookings a client made.
func (s *BookingService) ListForClient(ctx context.Context, clientID string, query dto.ListBookingsQuery) ([]models.Booking, *models.Pagination, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter, err := buildBookingFilter(query, time.UTC)
	if err != nil {
		return nil, nil, err
	}
	filter.ClientID = clientID
	return s.list(ctx, filter)
}

func (s *BookingService) list(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// MarkConfirmed confirms a pending booking, optionally recording a payment status.
func (s *BookingService) MarkConfirmed(ctx context.Context, id string, payment *models.PaymentStatus, actor models.Actor) (*models.Booking, error) {
	out, err := s.Transition(ctx, Transition{BookingID: id, To: models.BookingStatusConfirmed, Payment: payment, Actor: actor})
	if err != nil {
		return nil, err
	}
	return out.Booking, nil
}

// MarkCancelled cancels an active booking and frees its slot.
func (s *BookingService) MarkCancelled(ctx context.Context, id, reason string, actor models.Actor) (*models.Booking, error) {
	out, err := s.Transition(ctx, Transition{BookingID: id, To: models.BookingStatusCancelled, Reason: reason, Actor: actor})
	if err != nil {
		return nil, err
	}
	return out.Booking, nil
}

// MarkCompleted closes a confirmed booking whose end has passed.
func (s *BookingService) MarkCompleted(ctx context.Context, id string, actor models.Actor) (*models.Booking, error) {
	out, err := s.Transition(ctx, Transition{BookingID: id, To: models.BookingStatusCompleted, Actor: actor})
	if err != nil {
		return nil, err
	}
	return out.Booking, nil
}

// MarkNoShow records that the client did not arrive.
func (s *BookingService) MarkNoShow(ctx context.Context, id string, actor models.Actor) (*models.Booking, error) {
	out, err := s.Transition(ctx, Transition{BookingID: id, To: models.BookingStatusNoShow, Actor: actor})
	if err != nil {
		return nil, err
	}
	return out.Booking, nil
}

// Transition applies req with a conditional update so concurrent callers
// cannot both move the same booking. Asking for the state a booking already
// holds is a no-op.
func (s *BookingService) Transition(ctx context.Context, req Transition) (*TransitionOutcome, error) {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason must be at most 500 characters")
	}
	booking, err := s.load(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, booking, req.Actor, req.To == models.BookingStatusCancelled); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if booking.Status == req.To {
		return s.settlePayment(ctx, booking, req.Payment)
	}
	if !models.CanTransition(booking.Status, req.To) {
		return nil, invalidTransition(booking.Status, req.To)
	}
	if (req.To == models.BookingStatusCompleted || req.To == models.BookingStatusNoShow) && now.Before(booking.EndUTC) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking has not ended yet")
	}

	change := repository.StatusChange{To: req.To, From: models.SourcesFor(req.To), At: now, Payment: req.Payment}
	if reason != "" {
		change.Reason = &reason
	}
	updated, err := s.bookings.UpdateStatus(ctx, nil, booking.ID, change)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
		}
		// Lost a race: report what the winner left behind.
		current, loadErr := s.load(ctx, booking.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == req.To {
			return &TransitionOutcome{Booking: current}, nil
		}
		return nil, invalidTransition(current.Status, req.To)
	}

	s.metrics.ObserveTransition(string(req.To))
	s.logger.Info("booking status changed",
		zap.String("booking_id", updated.ID),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("source", req.Actor.Source),
	)
	if eventType, ok := models.EventForStatus(updated.Status); ok {
		s.publish(eventType, updated, reason)
	}
	return &TransitionOutcome{Booking: updated, Changed: true}, nil
}

func (s *BookingService) settlePayment(ctx context.Context, booking *models.Booking, payment *models.PaymentStatus) (*TransitionOutcome, error) {
	if payment == nil || booking.PaymentStatus == *payment {
		return &TransitionOutcome{Booking: booking}, nil
	}
	updated, err := s.bookings.UpdatePaymentStatus(ctx, booking.ID, *payment)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to update payment status")
	}
	return &TransitionOutcome{Booking: updated, Changed: true}, nil
}

// RecordPayment stores a payment status without touching the booking status.
func (s *BookingService) RecordPayment(ctx context.Context, id string, status models.PaymentStatus) (*TransitionOutcome, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.settlePayment(ctx, booking, &status)
}

// UpdateInternalNotes replaces the pro-only notes of a booking.
func (s *BookingService) UpdateInternalNotes(ctx context.Context, id string, req dto.UpdateNotesRequest, actor models.Actor) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, booking.TenantID, actor); err != nil {
		return nil, err
	}
	var notes *string
	if trimmed := strings.TrimSpace(req.InternalNotes); trimmed != "" {
		notes = &trimmed
	}
	updated, err := s.bookings.UpdateInternalNotes(ctx, booking.ID, notes)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to update notes")
	}
	return updated, nil
}

func (s *BookingService) load(ctx context.Context, id string) (*models.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking id is required")
	}
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to load booking")
	}
	return booking, nil
}

// authorize lets tenant members act on any booking of their tenant. The
// booking's client may read it and, when clientMay is set, act on it.
func (s *BookingService) authorize(ctx context.Context, booking *models.Booking, actor models.Actor, clientMay bool) error {
	switch actor.Source {
	case SourceWebhook, SourceSystem:
		return nil
	case SourceManageLink:
		if clientMay {
			return nil
		}
		return appErrors.ErrForbidden
	}
	if actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleClient {
		if actor.UserID != booking.ClientID {
			// Hide other clients' bookings entirely.
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		if clientMay {
			return nil
		}
		return appErrors.ErrForbidden
	}
	return s.requireMember(ctx, booking.TenantID, actor)
}

func (s *BookingService) requireMember(ctx context.Context, tenantID string, actor models.Actor) error {
	if actor.Source == SourceSystem {
		return nil
	}
	return requireTenantMember(ctx, s.members, tenantID, actor)
}

// requireTenantMember admits pro and staff identities that belong to tenantID.
func requireTenantMember(ctx context.Context, members membershipChecker, tenantID string, actor models.Actor) error {
	if actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePro && actor.Role != models.RoleStaff {
		return appErrors.ErrForbidden
	}
	ok, err := members.IsMember(ctx, tenantID, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tenant membership")
	}
	if !ok {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *BookingService) publish(eventType models.BookingEventType, booking *models.Booking, reason string) {
	if s.publisher == nil {
		return
	}
	at := s.now().UTC()
	s.publisher.Publish(events.Event{
		Type:       string(eventType),
		Key:        booking.TenantID,
		Payload:    models.NewBookingEvent(eventType, booking, reason, at),
		OccurredAt: at,
	})
}

func invalidTransition(from, to models.BookingStatus) error {
	return appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]interface{}{"from": string(from), "to": string(to)})
}

func buildBookingFilter(query dto.ListBookingsQuery, loc *time.Location) (models.BookingFilter, error) {
	filter := models.BookingFilter{Page: query.Page, PageSize: query.PageSize, SortOrder: query.Order}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			status := models.BookingStatus(strings.TrimSpace(part))
			if status == "" {
				continue
			}
			switch status {
			case models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusCancelled,
				models.BookingStatusCompleted, models.BookingStatusNoShow:
				filter.Statuses = append(filter.Statuses, status)
			default:
				return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
			}
		}
	}
	if query.From != "" {
		from, err := parseQueryDate(query.From, loc)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD or RFC3339")
		}
		start := from.StartIn(loc).UTC()
		filter.From = &start
	}
	if query.To != "" {
		to, err := parseQueryDate(query.To, loc)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD or RFC3339")
		}
		end := to.AddDays(1).StartIn(loc).UTC()
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}
