package scheduler

import "time"

// ChangeDeltas returns the ranges that must be re-checked when a booking
// occupying current is moved to proposed.
//
// The booking's own occupancy shows up as busy on its room, so re-checking the
// whole proposed range would always report a conflict. When the calendar date
// of the start changes (evaluated in loc) the current booking is no longer a
// usable anchor and the full proposed range is returned. Otherwise an earlier
// start yields [proposed.Start, current.Start) and a later end yields
// [current.End, proposed.End). A move that leaves the old slot behind on the
// same day therefore also covers the gap between the two slots. A pure shrink
// yields no ranges.
func ChangeDeltas(current, proposed Interval, loc *time.Location) []Interval {
	if proposed.Empty() {
		return nil
	}
	if !SameCalendarDate(current.Start, proposed.Start, loc) {
		return []Interval{proposed}
	}

	var deltas []Interval
	if proposed.Start.Before(current.Start) {
		deltas = append(deltas, Interval{Start: proposed.Start, End: current.Start})
	}
	if proposed.End.After(current.End) {
		deltas = append(deltas, Interval{Start: current.End, End: proposed.End})
	}
	return deltas
}

// SameCalendarDate compares the wall-clock dates of a and b in loc.
func SameCalendarDate(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// LocationOrUTC resolves an IANA zone name, falling back to UTC when the name
// is empty or unknown.
func LocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
