package calendar

import "time"

// Slot is one candidate appointment of exactly one service duration.
type Slot struct {
	Start     time.Time `json:"startUtc"`
	End       time.Time `json:"endUtc"`
	Available bool      `json:"available"`
}

// Interval returns the slot bounds.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// SlotCursor lazily walks candidate slots for one staff resource across an
// inclusive date range. Candidates start back to back at the service
// duration stride inside each effective working interval. The cursor reads
// only the calendar, so Reset replays an identical sequence.
type SlotCursor struct {
	cal      *Calendar
	staffID  string
	from     Date
	to       Date
	duration time.Duration

	day       Date
	started   bool
	intervals []Interval
	idx       int
	pos       time.Time
	done      bool
}

// GenerateSlots returns a cursor over [from, to] for staffID. An empty
// staffID walks the tenant-wide calendar.
func GenerateSlots(cal *Calendar, staffID string, from, to Date, duration time.Duration) *SlotCursor {
	c := &SlotCursor{cal: cal, staffID: staffID, from: from, to: to, duration: duration}
	c.Reset()
	return c
}

// Reset rewinds the cursor to the first candidate.
func (c *SlotCursor) Reset() {
	c.day = c.from
	c.started = false
	c.intervals = nil
	c.idx = 0
	c.pos = time.Time{}
	c.done = c.cal == nil || c.duration <= 0 || c.to.Before(c.from)
}

// Next returns the next candidate, marked available, or false when exhausted.
func (c *SlotCursor) Next() (Slot, bool) {
	for !c.done {
		if c.idx < len(c.intervals) {
			iv := c.intervals[c.idx]
			if c.pos.Before(iv.Start) {
				c.pos = iv.Start
			}
			end := c.pos.Add(c.duration)
			if !end.After(iv.End) {
				slot := Slot{Start: c.pos, End: end, Available: true}
				c.pos = end
				return slot, true
			}
			c.idx++
			continue
		}
		if !c.advanceDay() {
			c.done = true
		}
	}
	return Slot{}, false
}

// SkipTo moves the next candidate start to at least t. Starts that would
// fall before t are never produced; later intervals are unaffected beyond that.
func (c *SlotCursor) SkipTo(t time.Time) {
	if t.After(c.pos) {
		c.pos = t.UTC()
	}
}

// Collect drains the remaining candidates.
func (c *SlotCursor) Collect() []Slot {
	var out []Slot
	for {
		slot, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, slot)
	}
}

func (c *SlotCursor) advanceDay() bool {
	if c.started {
		c.day = c.day.AddDays(1)
	}
	c.started = true
	if c.day.After(c.to) {
		return false
	}
	c.intervals = c.cal.EffectiveWorkingIntervals(c.day, c.staffID)
	c.idx = 0
	return true
}
