package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversByTypeAndWildcard(t *testing.T) {
	bus := NewBus(nil)
	var typed, all []string
	bus.Subscribe("booking.created", func(e Event) { typed = append(typed, e.Key) })
	bus.Subscribe(Wildcard, func(e Event) { all = append(all, e.Type) })

	bus.Publish(Event{Type: "booking.created", Key: "b1"})
	bus.Publish(Event{Type: "booking.cancelled", Key: "b1"})

	assert.Equal(t, []string{"b1"}, typed)
	assert.Equal(t, []string{"booking.created", "booking.cancelled"}, all)
}

func TestBusIsolatesPanickingSubscriber(t *testing.T) {
	bus := NewBus(nil)
	delivered := false
	bus.Subscribe("x", func(Event) { panic("boom") })
	bus.Subscribe("x", func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(Event{Type: "x"}) })
	assert.True(t, delivered)
}

func TestPublishStampsTime(t *testing.T) {
	bus := NewBus(nil)
	var got Event
	bus.Subscribe("x", func(e Event) { got = e })

	bus.Publish(Event{Type: "x"})

	assert.False(t, got.OccurredAt.IsZero())
}
