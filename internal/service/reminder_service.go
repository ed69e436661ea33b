package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
)

type reminderStore interface {
	ListDueReminders(ctx context.Context, kind models.ReminderKind, after, until time.Time, limit int) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id string, kind models.ReminderKind) (bool, error)
}

// ReminderService periodically publishes 24h and 2h reminder events for
// confirmed bookings. Each reminder is published at most once: the flag is
// flipped with a conditional update before the event goes out.
type ReminderService struct {
	store     reminderStore
	publisher eventPublisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReminderService builds a sweeper.
func NewReminderService(store reminderStore, publisher eventPublisher, interval time.Duration, batchSize int, logger *zap.Logger) *ReminderService {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs the sweep loop in the background until ctx ends or Stop is called.
func (s *ReminderService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info("reminder sweeper started", zap.Duration("interval", s.interval))
	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Warn("reminder sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()
	<-doneCh
	s.logger.Info("reminder sweeper stopped")
}

// Sweep publishes every reminder due at now and returns how many went out.
// The 24h window is (now+2h, now+24h]; the 2h window is (now, now+2h].
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	sent := 0
	windows := []struct {
		kind        models.ReminderKind
		after, upTo time.Time
	}{
		{models.Reminder24h, now.Add(models.Reminder2h.Lead()), now.Add(models.Reminder24h.Lead())},
		{models.Reminder2h, now, now.Add(models.Reminder2h.Lead())},
	}
	for _, w := range windows {
		n, err := s.sweepKind(ctx, w.kind, w.after, w.upTo)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (s *ReminderService) sweepKind(ctx context.Context, kind models.ReminderKind, after, until time.Time) (int, error) {
	due, err := s.store.ListDueReminders(ctx, kind, after, until, s.batchSize)
	if err != nil {
		return 0, err
	}
	eventType := models.EventBookingReminder24h
	if kind == models.Reminder2h {
		eventType = models.EventBookingReminder2h
	}

	sent := 0
	for i := range due {
		booking := &due[i]
		won, err := s.store.MarkReminderSent(ctx, booking.ID, kind)
		if err != nil {
			return sent, err
		}
		if !won {
			continue
		}
		sent++
		if s.publisher != nil {
			at := s.now().UTC()
			s.publisher.Publish(events.Event{
				Type:       string(eventType),
				Key:        booking.TenantID,
				Payload:    models.NewBookingEvent(eventType, booking, "", at),
				OccurredAt: at,
			})
		}
	}
	if sent > 0 {
		s.logger.Info("reminders published", zap.String("kind", string(kind)), zap.Int("count", sent))
	}
	return sent, nil
}
