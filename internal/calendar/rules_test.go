package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func mustDate(t *testing.T, raw string) Date {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func utc(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestEffectiveWorkingIntervalsAcrossDST(t *testing.T) {
	loc := newYork(t)
	cal, err := NewCalendar(loc, []Rule{{Scope: AllStaff(), Weekday: time.Sunday, StartMinute: 9 * 60, EndMinute: 17 * 60}}, nil)
	require.NoError(t, err)

	before := cal.EffectiveWorkingIntervals(mustDate(t, "2025-03-02"), "")
	transition := cal.EffectiveWorkingIntervals(mustDate(t, "2025-03-09"), "")

	require.Len(t, before, 1)
	require.Len(t, transition, 1)
	assert.Equal(t, utc("2025-03-02T14:00:00Z"), before[0].Start)
	assert.Equal(t, utc("2025-03-02T22:00:00Z"), before[0].End)
	assert.Equal(t, utc("2025-03-09T13:00:00Z"), transition[0].Start)
	assert.Equal(t, utc("2025-03-09T21:00:00Z"), transition[0].End)
	assert.Equal(t, 8*time.Hour, transition[0].Duration())
	assert.Equal(t, time.Hour, before[0].Start.Sub(transition[0].Start.AddDate(0, 0, -7)))
}

func TestEffectiveWorkingIntervalsExceptionSplits(t *testing.T) {
	cal, err := NewCalendar(time.UTC,
		[]Rule{{Scope: AllStaff(), Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60}},
		[]Exception{{Scope: AllStaff(), Span: Interval{Start: utc("2025-03-10T12:00:00Z"), End: utc("2025-03-10T13:00:00Z")}, Reason: "lunch"}},
	)
	require.NoError(t, err)

	got := cal.EffectiveWorkingIntervals(mustDate(t, "2025-03-10"), "staff-1")

	assert.Equal(t, []Interval{
		{Start: utc("2025-03-10T09:00:00Z"), End: utc("2025-03-10T12:00:00Z")},
		{Start: utc("2025-03-10T13:00:00Z"), End: utc("2025-03-10T17:00:00Z")},
	}, got)
}

func TestEffectiveWorkingIntervalsMergesSplitShifts(t *testing.T) {
	cal, err := NewCalendar(time.UTC, []Rule{
		{Scope: AllStaff(), Weekday: time.Monday, StartMinute: 13 * 60, EndMinute: 17 * 60},
		{Scope: AllStaff(), Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 14 * 60},
		{Scope: AllStaff(), Weekday: time.Monday, StartMinute: 19 * 60, EndMinute: MinutesPerDay},
	}, nil)
	require.NoError(t, err)

	got := cal.EffectiveWorkingIntervals(mustDate(t, "2025-03-10"), "")

	assert.Equal(t, []Interval{
		{Start: utc("2025-03-10T09:00:00Z"), End: utc("2025-03-10T17:00:00Z")},
		{Start: utc("2025-03-10T19:00:00Z"), End: utc("2025-03-11T00:00:00Z")},
	}, got)
}

func TestStaffSpecificRulesTakePrecedence(t *testing.T) {
	cal, err := NewCalendar(time.UTC, []Rule{
		{Scope: AllStaff(), Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
		{Scope: SpecificStaff("alice"), Weekday: time.Monday, StartMinute: 12 * 60, EndMinute: 20 * 60},
		{Scope: SpecificStaff("alice"), Weekday: time.Tuesday, StartMinute: 8 * 60, EndMinute: 10 * 60},
	}, []Exception{
		{Scope: SpecificStaff("bob"), Span: Interval{Start: utc("2025-03-10T09:00:00Z"), End: utc("2025-03-10T10:00:00Z")}},
	})
	require.NoError(t, err)
	monday := mustDate(t, "2025-03-10")

	assert.Equal(t, []Interval{{Start: utc("2025-03-10T12:00:00Z"), End: utc("2025-03-10T20:00:00Z")}},
		cal.EffectiveWorkingIntervals(monday, "alice"))
	assert.Equal(t, []Interval{{Start: utc("2025-03-10T10:00:00Z"), End: utc("2025-03-10T17:00:00Z")}},
		cal.EffectiveWorkingIntervals(monday, "bob"))
	assert.Equal(t, []Interval{{Start: utc("2025-03-10T09:00:00Z"), End: utc("2025-03-10T17:00:00Z")}},
		cal.EffectiveWorkingIntervals(monday, ""))
	assert.Empty(t, cal.EffectiveWorkingIntervals(mustDate(t, "2025-03-12"), "alice"))
}

func TestNewCalendarRejectsInvalidRules(t *testing.T) {
	_, err := NewCalendar(time.UTC, []Rule{{Weekday: time.Monday, StartMinute: 600, EndMinute: 600}}, nil)
	assert.Error(t, err)

	_, err = NewCalendar(time.UTC, nil, []Exception{{Span: Interval{Start: utc("2025-03-10T10:00:00Z"), End: utc("2025-03-10T09:00:00Z")}}})
	assert.Error(t, err)

	_, err = NewCalendar(nil, nil, nil)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, m)

	for _, bad := range []string{"9", "25:00", "24:30", "10:60", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "07:05", FormatClock(425))
}

func TestScopeApplies(t *testing.T) {
	assert.True(t, AllStaff().Applies(""))
	assert.True(t, AllStaff().Applies("alice"))
	assert.True(t, SpecificStaff("alice").Applies("alice"))
	assert.False(t, SpecificStaff("alice").Applies("bob"))
	assert.False(t, SpecificStaff("alice").Applies(""))

	id := "alice"
	empty := ""
	assert.Equal(t, SpecificStaff("alice"), ScopeFromNullable(&id))
	assert.Equal(t, AllStaff(), ScopeFromNullable(&empty))
	assert.Equal(t, AllStaff(), ScopeFromNullable(nil))
}

func TestDateArithmetic(t *testing.T) {
	d := mustDate(t, "2025-02-27")

	assert.Equal(t, "2025-03-01", d.AddDays(2).String())
	assert.Equal(t, time.Thursday, d.Weekday())
	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.Equal(t, d, MinDate(d, d.AddDays(3)))
	assert.Equal(t, d.AddDays(3), MaxDate(d, d.AddDays(3)))
}
