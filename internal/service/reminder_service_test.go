package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

type memoryReminders struct {
	mu       sync.Mutex
	bookings []models.Booking
}

func (m *memoryReminders) ListDueReminders(ctx context.Context, kind models.ReminderKind, after, until time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		sent := b.ReminderSent24h
		if kind == models.Reminder2h {
			sent = b.ReminderSent2h
		}
		if b.Status == models.BookingStatusConfirmed && !sent && b.StartUTC.After(after) && !b.StartUTC.After(until) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryReminders) MarkReminderSent(ctx context.Context, id string, kind models.ReminderKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].ID != id {
			continue
		}
		flag := &m.bookings[i].ReminderSent24h
		if kind == models.Reminder2h {
			flag = &m.bookings[i].ReminderSent2h
		}
		if *flag {
			return false, nil
		}
		*flag = true
		return true, nil
	}
	return false, nil
}

func confirmedAt(id, start string) models.Booking {
	b := activeBooking(id, aliceFixtureID, mustUTC(start), 30, 0)
	b.Status = models.BookingStatusConfirmed
	return b
}

func TestReminderSweepWindows(t *testing.T) {
	store := &memoryReminders{bookings: []models.Booking{
		confirmedAt("soon", "2025-03-10T13:30:00Z"),
		confirmedAt("tomorrow", "2025-03-11T10:00:00Z"),
		confirmedAt("later", "2025-03-12T13:00:00Z"),
		confirmedAt("past", "2025-03-10T11:00:00Z"),
	}}
	pending := pendingBooking("pending")
	pending.StartUTC = mustUTC("2025-03-10T14:00:00Z")
	store.bookings = append(store.bookings, pending)

	publisher := &recordingPublisher{}
	svc := NewReminderService(store, publisher, time.Minute, 10, nil)
	svc.now = func() time.Time { return mustUTC("2025-03-10T12:00:00Z") }

	sent, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []string{string(models.EventBookingReminder24h), string(models.EventBookingReminder2h)}, publisher.types())

	sent, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "reminders are published once")
}

func TestReminderConcurrentSweepersNeverDoubleSend(t *testing.T) {
	store := &memoryReminders{bookings: []models.Booking{
		confirmedAt("a", "2025-03-10T13:00:00Z"),
		confirmedAt("b", "2025-03-10T13:30:00Z"),
		confirmedAt("c", "2025-03-11T09:00:00Z"),
	}}
	publisher := &recordingPublisher{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		svc := NewReminderService(store, publisher, time.Minute, 10, nil)
		svc.now = func() time.Time { return mustUTC("2025-03-10T12:00:00Z") }
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Sweep(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, publisher.types(), 3)
}

func TestReminderStartStop(t *testing.T) {
	store := &memoryReminders{bookings: []models.Booking{confirmedAt("a", "2025-03-10T13:00:00Z")}}
	publisher := &recordingPublisher{}
	svc := NewReminderService(store, publisher, 5*time.Millisecond, 10, nil)
	svc.now = func() time.Time { return mustUTC("2025-03-10T12:00:00Z") }

	svc.Start(context.Background())
	require.Eventually(t, func() bool { return len(publisher.types()) == 1 }, time.Second, 5*time.Millisecond)
	svc.Stop()
	svc.Stop()
	assert.Len(t, publisher.types(), 1)
}
