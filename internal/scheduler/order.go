package scheduler

import (
	"sort"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// SortEvents orders events by start time. Among events that start together
// the most recently created one comes first; events equal on both keys keep
// their input order. The input slice is left untouched.
func SortEvents(events []calendar.Event) []calendar.Event {
	if events == nil {
		return nil
	}
	ordered := make([]calendar.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].Start.Before(ordered[j].Start)
		}
		// TODO: confirm with product whether newest-first is intended; it
		// mirrors how the web client has always listed same-slot meetings.
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	return ordered
}
