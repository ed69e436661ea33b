package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayCalendar(t *testing.T, loc *time.Location, startMinute, endMinute int) *Calendar {
	t.Helper()
	cal, err := NewCalendar(loc, []Rule{{Scope: AllStaff(), Weekday: time.Monday, StartMinute: startMinute, EndMinute: endMinute}}, nil)
	require.NoError(t, err)
	return cal
}

func starts(slots []Slot, loc *time.Location) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.In(loc).Format("15:04")
	}
	return out
}

func TestGenerateSlotsBackToBackStride(t *testing.T) {
	cal := mondayCalendar(t, time.UTC, 9*60, 11*60+15)
	monday := mustDate(t, "2025-03-10")

	slots := GenerateSlots(cal, "", monday, monday, 30*time.Minute).Collect()

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, starts(slots, time.UTC))
	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
	}
}

func TestGenerateSlotsSpansDatesAndSkipsClosedDays(t *testing.T) {
	cal := mondayCalendar(t, time.UTC, 9*60, 10*60)
	from := mustDate(t, "2025-03-09")
	to := mustDate(t, "2025-03-17")

	slots := GenerateSlots(cal, "", from, to, time.Hour).Collect()

	require.Len(t, slots, 2)
	assert.Equal(t, utc("2025-03-10T09:00:00Z"), slots[0].Start)
	assert.Equal(t, utc("2025-03-17T09:00:00Z"), slots[1].Start)
}

func TestGenerateSlotsIsRestartable(t *testing.T) {
	cal := mondayCalendar(t, newYork(t), 9*60, 17*60)
	from := mustDate(t, "2025-03-03")
	to := mustDate(t, "2025-03-17")

	cursor := GenerateSlots(cal, "", from, to, 45*time.Minute)
	first := cursor.Collect()
	cursor.Reset()
	second := cursor.Collect()
	third := GenerateSlots(cal, "", from, to, 45*time.Minute).Collect()

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestGenerateSlotsEmptyRange(t *testing.T) {
	cal := mondayCalendar(t, time.UTC, 9*60, 17*60)

	assert.Empty(t, GenerateSlots(cal, "", mustDate(t, "2025-03-11"), mustDate(t, "2025-03-10"), time.Hour).Collect())
	assert.Empty(t, GenerateSlots(cal, "", mustDate(t, "2025-03-10"), mustDate(t, "2025-03-10"), 0).Collect())
}

func TestSlotCursorSkipTo(t *testing.T) {
	cal := mondayCalendar(t, time.UTC, 9*60, 12*60)
	monday := mustDate(t, "2025-03-10")
	cursor := GenerateSlots(cal, "", monday, monday, 30*time.Minute)

	first, ok := cursor.Next()
	require.True(t, ok)
	assert.Equal(t, utc("2025-03-10T09:00:00Z"), first.Start)

	cursor.SkipTo(utc("2025-03-10T10:10:00Z"))
	cursor.SkipTo(utc("2025-03-10T09:00:00Z"))
	rest := cursor.Collect()

	assert.Equal(t, []string{"10:10", "10:40", "11:10"}, starts(rest, time.UTC))
}

func TestWalkEndToEndScenario(t *testing.T) {
	loc := newYork(t)
	cal := mondayCalendar(t, loc, 9*60, 11*60)
	monday := mustDate(t, "2025-03-10")
	existing := []Occupancy{{
		ID:     "booking-a",
		Start:  monday.At(9*60+30, loc),
		End:    monday.At(10*60, loc),
		Buffer: 10 * time.Minute,
	}}

	slots := NewChecker(BufferExisting).Walk(GenerateSlots(cal, "", monday, monday, 30*time.Minute), 10*time.Minute, existing)

	require.Len(t, slots, 3)
	assert.Equal(t, []string{"09:00", "09:30", "10:10"}, starts(slots, loc))
	assert.Equal(t, []bool{true, false, true}, []bool{slots[0].Available, slots[1].Available, slots[2].Available})
	assert.True(t, monday.At(10*60+40, loc).Equal(slots[2].End))
}

func TestWalkWithoutBookingsKeepsStride(t *testing.T) {
	cal := mondayCalendar(t, time.UTC, 9*60, 11*60)
	monday := mustDate(t, "2025-03-10")

	slots := NewChecker(BufferMax).Walk(GenerateSlots(cal, "", monday, monday, 30*time.Minute), 10*time.Minute, nil)

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, starts(slots, time.UTC))
}
