// Package scheduler holds the pure interval algebra used to decide room
// availability. Nothing in this package performs I/O.
package scheduler

import (
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// Interval is a half-open [Start, End) range of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval covers no time at all.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps applies the half-open overlap test. Intervals that only touch at a
// boundary do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// FromBusy converts a provider busy interval.
func FromBusy(busy calendar.BusyInterval) Interval {
	return Interval{Start: busy.Start, End: busy.End}
}

// IsFree reports whether none of the busy intervals overlaps window.
func IsFree(busy []calendar.BusyInterval, window Interval) bool {
	for _, b := range busy {
		if FromBusy(b).Overlaps(window) {
			return false
		}
	}
	return true
}
