package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/signing"
)

const paidBookingID = "0d9b3c1e-5a4f-4d5e-8f7a-2b1c0d9e8f01"

func newPaymentFixture(rows ...models.Booking) (*PaymentService, *memoryBookings, *recordingPublisher, *signing.WebhookSigner) {
	bookings, store, publisher := newBookingFixture(rows...)
	signer := signing.NewWebhookSigner("pay-secret", time.Minute)
	return NewPaymentService(bookings, signer, nil, nil), store, publisher, signer
}

func signedEvent(t *testing.T, signer *signing.WebhookSigner, event models.PaymentWebhookEvent) (string, []byte) {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return signer.Sign(body, time.Now()), body
}

func TestPaymentSucceededConfirmsOnce(t *testing.T) {
	svc, store, publisher, signer := newPaymentFixture(pendingBooking(paidBookingID))
	sig, body := signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_1", Type: models.PaymentSucceeded, BookingID: paidBookingID, PaymentStatus: models.PaymentStatusDeposit})

	result, err := svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.BookingStatusConfirmed, result.Status)
	assert.Equal(t, models.PaymentStatusDeposit, result.Payment)

	replayed, err := svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.False(t, replayed.Applied)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, []string{string(models.EventBookingConfirmed)}, publisher.types())
}

func TestPaymentFailedCancelsPendingOnly(t *testing.T) {
	svc, _, publisher, signer := newPaymentFixture(pendingBooking(paidBookingID))
	sig, body := signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_2", Type: models.PaymentExpired, BookingID: paidBookingID})

	result, err := svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, result.Status)
	assert.True(t, result.Applied)

	again, err := svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, []string{string(models.EventBookingCancelled)}, publisher.types())

	confirmed := pendingBooking(paidBookingID)
	confirmed.Status = models.BookingStatusConfirmed
	svc, store, _, signer := newPaymentFixture(confirmed)
	sig, body = signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_3", Type: models.PaymentFailed, BookingID: paidBookingID})
	result, err = svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, result.Status)
	assert.False(t, result.Applied)
	assert.Zero(t, store.updates)
}

func TestPaymentRefundedRecordsStatus(t *testing.T) {
	row := pendingBooking(paidBookingID)
	row.Status = models.BookingStatusCancelled
	row.PaymentStatus = models.PaymentStatusPaid
	svc, _, _, signer := newPaymentFixture(row)
	sig, body := signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_4", Type: models.PaymentRefunded, BookingID: paidBookingID})

	result, err := svc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, result.Payment)
	assert.Equal(t, models.BookingStatusCancelled, result.Status)
	assert.True(t, result.Applied)
}

func TestPaymentWebhookRejections(t *testing.T) {
	svc, _, _, signer := newPaymentFixture(pendingBooking(paidBookingID))

	_, body := signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_5", Type: models.PaymentSucceeded, BookingID: paidBookingID})
	_, err := svc.HandleWebhook(context.Background(), signing.NewWebhookSigner("other", 0).Sign(body, time.Now()), body)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.HandleWebhook(context.Background(), signer.Sign(body, time.Now().Add(-time.Hour)), body)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "stale")

	garbage := []byte("{")
	_, err = svc.HandleWebhook(context.Background(), signer.Sign(garbage, time.Now()), garbage)
	assert.True(t, errors.Is(err, appErrors.ErrBadRequest))

	sig, body := signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_6", Type: "payment.unknown", BookingID: paidBookingID})
	_, err = svc.HandleWebhook(context.Background(), sig, body)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	sig, body = signedEvent(t, signer, models.PaymentWebhookEvent{ID: "evt_7", Type: models.PaymentSucceeded, BookingID: "8a4f7c2e-0000-4000-8000-000000000000"})
	_, err = svc.HandleWebhook(context.Background(), sig, body)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
