package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
	"github.com/RaMarWilson1/bookbetter/pkg/jobs"
	"github.com/RaMarWilson1/bookbetter/pkg/signing"
)

// Notification outcomes.
const (
	NotifySent       = "sent"
	NotifyRetry      = "retry"
	NotifyDeadLetter = "dead_letter"
	NotifyDropped    = "dropped"
)

// EventHeader names the booking event on webhook deliveries.
const EventHeader = "X-BookBetter-Event"

// BookingEventTypes lists every event the notification dispatcher forwards.
var BookingEventTypes = []models.BookingEventType{
	models.EventBookingCreated,
	models.EventBookingConfirmed,
	models.EventBookingCancelled,
	models.EventBookingCompleted,
	models.EventBookingNoShow,
	models.EventBookingReminder24h,
	models.EventBookingReminder2h,
}

// Sender delivers one booking event to the outside world.
type Sender interface {
	Channel() models.NotificationChannel
	Send(ctx context.Context, event models.BookingEvent) error
}

// WebhookSender POSTs signed JSON events to a single receiver.
type WebhookSender struct {
	url     string
	signer  *signing.WebhookSigner
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewWebhookSender builds a webhook sender. ratePerSecond <= 0 disables pacing.
func NewWebhookSender(url, secret string, timeout time.Duration, ratePerSecond float64) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &WebhookSender{
		url:     url,
		signer:  signing.NewWebhookSigner(secret, 0),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Channel implements Sender.
func (w *WebhookSender) Channel() models.NotificationChannel { return models.NotificationChannelWebhook }

// Send implements Sender.
func (w *WebhookSender) Send(ctx context.Context, event models.BookingEvent) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event.Type))
	req.Header.Set(signing.SignatureHeader, w.signer.Sign(body, w.now()))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook receiver responded %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes events to the log when no receiver is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Channel implements Sender.
func (l *LogSender) Channel() models.NotificationChannel { return models.NotificationChannelLog }

// Send implements Sender.
func (l *LogSender) Send(ctx context.Context, event models.BookingEvent) error {
	l.logger.Info("booking notification",
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("tenant_id", event.TenantID),
		zap.String("client_email", event.ClientEmail),
		zap.Time("start_utc", event.StartUTC),
	)
	return nil
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	MarkSent(ctx context.Context, id string, attempts int) error
	MarkFailed(ctx context.Context, id string, attempts int, cause string) error
}

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
}

// delivery is the queued unit. The pointer survives queue retries so the
// notification row is created once.
type delivery struct {
	event          models.BookingEvent
	notificationID string
}

// NotificationService turns booking events into persisted, retried deliveries.
type NotificationService struct {
	store   notificationStore
	sender  Sender
	queue   jobQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService builds the dispatcher. Call UseQueue before Subscribe.
func NewNotificationService(store notificationStore, sender Sender, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, sender: sender, metrics: metrics, logger: logger}
}

// UseQueue sets the queue whose handler is Deliver.
func (s *NotificationService) UseQueue(queue jobQueue) {
	s.queue = queue
}

// Subscribe registers the dispatcher for every booking event on bus.
func (s *NotificationService) Subscribe(bus *events.Bus) {
	for _, eventType := range BookingEventTypes {
		bus.Subscribe(string(eventType), s.HandleEvent)
	}
}

// HandleEvent enqueues a delivery without blocking the publisher. A full
// queue drops the notification.
func (s *NotificationService) HandleEvent(event events.Event) {
	payload, ok := event.Payload.(models.BookingEvent)
	if !ok {
		s.logger.Warn("ignoring event with unexpected payload", zap.String("type", event.Type))
		return
	}
	if s.queue == nil {
		s.logger.Warn("notification queue not configured", zap.String("type", event.Type))
		return
	}
	job := jobs.Job{ID: payload.BookingID + ":" + string(payload.Type), Type: event.Type, Payload: &delivery{event: payload}}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.ObserveNotification(event.Type, NotifyDropped)
		level := s.logger.Error
		if errors.Is(err, jobs.ErrQueueFull) {
			level = s.logger.Warn
		}
		level("notification dropped", zap.String("type", event.Type), zap.String("booking_id", payload.BookingID), zap.Error(err))
	}
}

// Deliver is the queue handler. Returning an error lets the queue retry.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(*delivery)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if d.notificationID == "" {
		row := &models.Notification{
			BookingID: d.event.BookingID,
			Event:     d.event.Type,
			Channel:   s.sender.Channel(),
			Status:    models.NotificationStatusPending,
		}
		if err := s.store.Create(ctx, row); err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
		d.notificationID = row.ID
	}

	attempts := job.Attempt + 1
	if err := s.sender.Send(ctx, d.event); err != nil {
		s.metrics.ObserveNotification(string(d.event.Type), NotifyRetry)
		if markErr := s.store.MarkFailed(ctx, d.notificationID, attempts, err.Error()); markErr != nil {
			s.logger.Warn("failed to record notification failure", zap.String("notification_id", d.notificationID), zap.Error(markErr))
		}
		return err
	}
	s.metrics.ObserveNotification(string(d.event.Type), NotifySent)
	if err := s.store.MarkSent(ctx, d.notificationID, attempts); err != nil {
		s.logger.Warn("failed to record notification delivery", zap.String("notification_id", d.notificationID), zap.Error(err))
	}
	return nil
}

// DeadLetter observes deliveries that exhausted their retries.
func (s *NotificationService) DeadLetter(job jobs.Job, err error) {
	eventType := job.Type
	if d, ok := job.Payload.(*delivery); ok {
		eventType = string(d.event.Type)
	}
	s.metrics.ObserveNotification(eventType, NotifyDeadLetter)
	s.logger.Error("notification abandoned", zap.String("job_id", job.ID), zap.String("type", eventType), zap.Error(err))
}
