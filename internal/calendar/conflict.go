package calendar

import (
	"fmt"
	"time"
)

// BufferPolicy decides how service buffers separate adjacent bookings.
type BufferPolicy string

const (
	// BufferExisting keeps the buffer of the already booked appointment free
	// after it. A candidate may end exactly where an existing booking starts.
	BufferExisting BufferPolicy = "existing"
	// BufferTrailing applies each side's own buffer after it: the candidate's
	// buffer must also fit before the next existing booking.
	BufferTrailing BufferPolicy = "trailing"
	// BufferMax separates the two by the larger of both buffers on either side.
	BufferMax BufferPolicy = "max"
)

// ParseBufferPolicy validates a configured policy name.
func ParseBufferPolicy(raw string) (BufferPolicy, error) {
	switch p := BufferPolicy(raw); p {
	case BufferExisting, BufferTrailing, BufferMax:
		return p, nil
	case "":
		return BufferExisting, nil
	default:
		return "", fmt.Errorf("unknown buffer policy %q", raw)
	}
}

// Occupancy is a booked or candidate span together with the idle time its
// service requires afterwards.
type Occupancy struct {
	ID     string
	Start  time.Time
	End    time.Time
	Buffer time.Duration
}

// Checker evaluates candidates against the active bookings of one resource.
type Checker struct {
	Policy BufferPolicy
}

// NewChecker returns a checker, defaulting to BufferExisting.
func NewChecker(policy BufferPolicy) Checker {
	if policy == "" {
		policy = BufferExisting
	}
	return Checker{Policy: policy}
}

func (c Checker) gaps(candidate, existing Occupancy) (after, before time.Duration) {
	switch c.Policy {
	case BufferTrailing:
		return existing.Buffer, candidate.Buffer
	case BufferMax:
		m := existing.Buffer
		if candidate.Buffer > m {
			m = candidate.Buffer
		}
		return m, m
	default:
		return existing.Buffer, 0
	}
}

// LeadsWithExistingBuffer reports whether an existing booking's own buffer must
// also stay free before it, so a booking starting past candidate.End plus the
// candidate buffer can still conflict.
func (c Checker) LeadsWithExistingBuffer() bool {
	return c.Policy == BufferMax
}

// Conflicts reports whether candidate collides with existing once buffers apply:
// candidate.Start < existing.End + gapAfter AND existing.Start < candidate.End + gapBefore.
func (c Checker) Conflicts(candidate, existing Occupancy) bool {
	after, before := c.gaps(candidate, existing)
	return candidate.Start.Before(existing.End.Add(after)) &&
		existing.Start.Before(candidate.End.Add(before))
}

// BlockedUntil is the earliest instant a candidate may start after existing.
func (c Checker) BlockedUntil(candidate, existing Occupancy) time.Time {
	after, _ := c.gaps(candidate, existing)
	return existing.End.Add(after)
}

// FirstConflict returns the conflicting booking that keeps the resource blocked
// the longest, or false when candidate is free.
func (c Checker) FirstConflict(candidate Occupancy, existing []Occupancy) (Occupancy, bool) {
	var (
		blocking Occupancy
		until    time.Time
		found    bool
	)
	for _, occ := range existing {
		if !c.Conflicts(candidate, occ) {
			continue
		}
		if b := c.BlockedUntil(candidate, occ); !found || b.After(until) {
			blocking, until, found = occ, b, true
		}
	}
	return blocking, found
}

// IsAvailable reports whether candidate conflicts with none of existing.
func (c Checker) IsAvailable(candidate Occupancy, existing []Occupancy) bool {
	_, conflict := c.FirstConflict(candidate, existing)
	return !conflict
}

// FilterAvailable returns a copy of slots with Available corrected against
// existing. buffer is the candidate service's buffer.
func (c Checker) FilterAvailable(slots []Slot, buffer time.Duration, existing []Occupancy) []Slot {
	out := make([]Slot, len(slots))
	for i, slot := range slots {
		out[i] = slot
		out[i].Available = slot.Available && c.IsAvailable(Occupancy{Start: slot.Start, End: slot.End, Buffer: buffer}, existing)
	}
	return out
}
