package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

type bookingTransitioner interface {
	Get(ctx context.Context, id string, actor models.Actor) (*models.Booking, error)
	Transition(ctx context.Context, req Transition) (*TransitionOutcome, error)
	RecordPayment(ctx context.Context, id string, status models.PaymentStatus) (*TransitionOutcome, error)
}

type webhookVerifier interface {
	Verify(header string, body []byte) error
}

// PaymentService applies signed events from the payment collaborator to the
// booking lifecycle. Replayed deliveries are no-ops.
type PaymentService struct {
	bookings  bookingTransitioner
	verifier  webhookVerifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(bookings bookingTransitioner, verifier webhookVerifier, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{bookings: bookings, verifier: verifier, validator: validate, logger: logger}
}

// HandleWebhook verifies signature over body and applies the event.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, body []byte) (*models.PaymentWebhookResult, error) {
	if err := s.verifier.Verify(signature, body); err != nil {
		s.logger.Warn("payment webhook rejected", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid webhook signature")
	}
	var event models.PaymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "malformed webhook body")
	}
	if err := s.validator.Struct(event); err != nil {
		return nil, invalidPayload(err)
	}

	actor := models.Actor{Source: SourceWebhook}
	var (
		outcome *TransitionOutcome
		err     error
	)
	switch event.Type {
	case models.PaymentSucceeded:
		payment := event.PaymentStatus
		if payment == "" {
			payment = models.PaymentStatusPaid
		}
		outcome, err = s.bookings.Transition(ctx, Transition{BookingID: event.BookingID, To: models.BookingStatusConfirmed, Payment: &payment, Actor: actor})
	case models.PaymentFailed, models.PaymentExpired:
		outcome, err = s.cancelUnpaid(ctx, event, actor)
	case models.PaymentRefunded:
		outcome, err = s.bookings.RecordPayment(ctx, event.BookingID, models.PaymentStatusRefunded)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment webhook applied",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.Bool("changed", outcome.Changed),
	)
	return &models.PaymentWebhookResult{
		EventID:   event.ID,
		BookingID: outcome.Booking.ID,
		Status:    outcome.Booking.Status,
		Payment:   outcome.Booking.PaymentStatus,
		Applied:   outcome.Changed,
	}, nil
}

// cancelUnpaid releases a pending hold. A booking that was confirmed by some
// other path keeps its state.
func (s *PaymentService) cancelUnpaid(ctx context.Context, event models.PaymentWebhookEvent, actor models.Actor) (*TransitionOutcome, error) {
	booking, err := s.bookings.Get(ctx, event.BookingID, actor)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusCancelled {
		return &TransitionOutcome{Booking: booking}, nil
	}
	reason := strings.TrimSpace(event.Reason)
	if reason == "" {
		reason = strings.ReplaceAll(strings.TrimPrefix(string(event.Type), "payment."), "_", " ")
		reason = "payment " + reason
	}
	return s.bookings.Transition(ctx, Transition{BookingID: event.BookingID, To: models.BookingStatusCancelled, Reason: reason, Actor: actor})
}
