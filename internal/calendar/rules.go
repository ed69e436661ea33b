package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a wall-clock minute, usable as an end time ("24:00").
const MinutesPerDay = 24 * 60

// Rule is a recurring weekly working-hours window in tenant wall-clock minutes.
type Rule struct {
	Scope       StaffScope
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// Validate enforces 0 <= start < end <= 1440 and a real weekday.
func (r Rule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("day of week %d out of range", r.Weekday)
	}
	if r.StartMinute < 0 || r.EndMinute > MinutesPerDay {
		return fmt.Errorf("working hours %s-%s out of range", FormatClock(r.StartMinute), FormatClock(r.EndMinute))
	}
	if r.StartMinute >= r.EndMinute {
		return fmt.Errorf("working hours start %s must be before end %s", FormatClock(r.StartMinute), FormatClock(r.EndMinute))
	}
	return nil
}

// Exception blocks an absolute instant range regardless of rules.
type Exception struct {
	Scope  StaffScope
	Span   Interval
	Reason string
}

// Calendar is the working-hours model of one tenant.
type Calendar struct {
	Location   *time.Location
	Rules      []Rule
	Exceptions []Exception
}

// NewCalendar validates rules and exceptions and returns the calendar.
func NewCalendar(loc *time.Location, rules []Rule, exceptions []Exception) (*Calendar, error) {
	if loc == nil {
		return nil, fmt.Errorf("calendar location is required")
	}
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	for i, exc := range exceptions {
		if exc.Span.Empty() {
			return nil, fmt.Errorf("exception %d: start must be before end", i)
		}
	}
	return &Calendar{Location: loc, Rules: rules, Exceptions: exceptions}, nil
}

// RulesFor returns the rules that govern staffID on weekday. Staff-specific
// rules for that weekday replace the tenant-wide ones entirely; without any,
// the tenant-wide rules apply.
func (c *Calendar) RulesFor(weekday time.Weekday, staffID string) []Rule {
	var specific, tenantWide []Rule
	for _, rule := range c.Rules {
		if rule.Weekday != weekday {
			continue
		}
		switch rule.Scope.Kind() {
		case ScopeSpecificStaff:
			if rule.Scope.IsSpecificTo(staffID) {
				specific = append(specific, rule)
			}
		case ScopeAllStaff:
			tenantWide = append(tenantWide, rule)
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return tenantWide
}

// EffectiveWorkingIntervals returns the ordered UTC intervals during which
// staffID works on date, with overlapping rules merged and exceptions removed.
func (c *Calendar) EffectiveWorkingIntervals(date Date, staffID string) []Interval {
	rules := c.RulesFor(date.Weekday(), staffID)
	if len(rules) == 0 {
		return nil
	}
	raw := make([]Interval, 0, len(rules))
	for _, rule := range rules {
		raw = append(raw, Interval{
			Start: date.At(rule.StartMinute, c.Location).UTC(),
			End:   date.At(rule.EndMinute, c.Location).UTC(),
		})
	}
	working := Merge(raw)
	if len(working) == 0 {
		return nil
	}

	day := Interval{Start: working[0].Start, End: working[len(working)-1].End}
	var cuts []Interval
	for _, exc := range c.Exceptions {
		if exc.Scope.Applies(staffID) && exc.Span.Overlaps(day) {
			cuts = append(cuts, exc.Span)
		}
	}
	return SubtractAll(working, cuts)
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted.
func ParseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q must be HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("clock %q hour: %w", raw, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock %q minute: %w", raw, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
