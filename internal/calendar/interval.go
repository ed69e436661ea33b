package calendar

import (
	"sort"
	"time"
)

// Interval is the half-open instant range [Start, End).
type Interval struct {
	Start time.Time `json:"startUtc"`
	End   time.Time `json:"endUtc"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Empty reports whether the interval holds no instant.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether the two intervals share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Merge sorts intervals and coalesces overlapping or touching ones.
// Empty intervals are dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Start.Equal(sorted[b].Start) {
			return sorted[a].End.Before(sorted[b].End)
		}
		return sorted[a].Start.Before(sorted[b].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes cut from base. The result has zero, one or two intervals.
func Subtract(base, cut Interval) []Interval {
	if !base.Overlaps(cut) {
		return []Interval{base}
	}
	var out []Interval
	if cut.Start.After(base.Start) {
		out = append(out, Interval{Start: base.Start, End: cut.Start})
	}
	if cut.End.Before(base.End) {
		out = append(out, Interval{Start: cut.End, End: base.End})
	}
	return out
}

// SubtractAll removes every cut from the ordered, non-overlapping base set.
func SubtractAll(base []Interval, cuts []Interval) []Interval {
	result := base
	for _, cut := range cuts {
		if cut.Empty() {
			continue
		}
		next := make([]Interval, 0, len(result)+1)
		for _, iv := range result {
			next = append(next, Subtract(iv, cut)...)
		}
		result = next
	}
	return result
}
