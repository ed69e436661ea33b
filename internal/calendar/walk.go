package calendar

import "time"

// Walk drains cursor, marking each candidate against existing. After a
// conflicting candidate the cursor jumps to the instant the blocking booking
// releases the resource, so the next candidate starts right after the
// booking's buffer instead of on the original stride.
func (c Checker) Walk(cursor *SlotCursor, buffer time.Duration, existing []Occupancy) []Slot {
	var out []Slot
	for {
		slot, ok := cursor.Next()
		if !ok {
			return out
		}
		candidate := Occupancy{Start: slot.Start, End: slot.End, Buffer: buffer}
		if blocking, conflict := c.FirstConflict(candidate, existing); conflict {
			slot.Available = false
			cursor.SkipTo(c.BlockedUntil(candidate, blocking))
		}
		out = append(out, slot)
	}
}
