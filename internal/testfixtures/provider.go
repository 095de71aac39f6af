package testfixtures

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// ProviderCall records one invocation of the fake provider.
type ProviderCall struct {
	Op         string
	RoomEmails []string
	Start      time.Time
	End        time.Time
	EventID    string
}

// FakeProvider is an in-memory calendar.Provider. Events occupying a room
// are reported as busy for that room, the same way a real calendar reports
// the caller's own booking.
type FakeProvider struct {
	mu       sync.Mutex
	rooms    map[string][]calendar.Room
	busy     map[string][]calendar.BusyInterval
	events   map[string]calendar.Event
	omitted  map[string]bool
	failures map[string]error
	calls    []ProviderCall
	nextID   func() string

	// RejectOverlaps makes CreateEvent and UpdateEvent fail with
	// calendar.ErrRejected when the room already has an overlapping event.
	RejectOverlaps bool
}

// NewFakeProvider returns a provider serving rooms for DefaultDomain.
func NewFakeProvider(rooms ...calendar.Room) *FakeProvider {
	p := &FakeProvider{
		rooms:    make(map[string][]calendar.Room),
		busy:     make(map[string][]calendar.BusyInterval),
		events:   make(map[string]calendar.Event),
		omitted:  make(map[string]bool),
		failures: make(map[string]error),
		nextID:   NewIDGenerator("created").Next,
	}
	p.rooms[DefaultDomain] = calendar.CloneRooms(rooms)
	return p
}

// SetRooms replaces the rooms of a domain.
func (p *FakeProvider) SetRooms(domain string, rooms ...calendar.Room) {
	p.mu.Lock()
	p.rooms[domain] = calendar.CloneRooms(rooms)
	p.mu.Unlock()
}

// AddBusy marks room busy for [start, end) independently of any event.
func (p *FakeProvider) AddBusy(roomEmail string, start, end time.Time) {
	p.mu.Lock()
	p.busy[roomEmail] = append(p.busy[roomEmail], calendar.BusyInterval{Start: start, End: end})
	p.mu.Unlock()
}

// AddEvent stores an event as is.
func (p *FakeProvider) AddEvent(event calendar.Event) {
	p.mu.Lock()
	p.events[event.ID] = event.Clone()
	p.mu.Unlock()
}

// Omit leaves roomEmail out of every FreeBusy answer.
func (p *FakeProvider) Omit(roomEmail string) {
	p.mu.Lock()
	p.omitted[roomEmail] = true
	p.mu.Unlock()
}

// FailOn makes the named operation return err until cleared with a nil err.
func (p *FakeProvider) FailOn(op string, err error) {
	p.mu.Lock()
	if err == nil {
		delete(p.failures, op)
	} else {
		p.failures[op] = err
	}
	p.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (p *FakeProvider) Calls() []ProviderCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProviderCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallsTo returns the recorded calls of one operation.
func (p *FakeProvider) CallsTo(op string) []ProviderCall {
	var out []ProviderCall
	for _, call := range p.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (p *FakeProvider) ResetCalls() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}

// Event returns the stored event.
func (p *FakeProvider) Event(id string) (calendar.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event, ok := p.events[id]
	return event.Clone(), ok
}

func (p *FakeProvider) record(call ProviderCall) error {
	p.calls = append(p.calls, call)
	return p.failures[call.Op]
}

func (p *FakeProvider) ListRooms(ctx context.Context, domain string) ([]calendar.Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "ListRooms"}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return calendar.CloneRooms(p.rooms[domain]), nil
}

func (p *FakeProvider) FreeBusy(ctx context.Context, roomEmails []string, windowStart, windowEnd time.Time, timeZone string) (map[string][]calendar.BusyInterval, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := ProviderCall{Op: "FreeBusy", RoomEmails: append([]string(nil), roomEmails...), Start: windowStart, End: windowEnd}
	if err := p.record(call); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]calendar.BusyInterval, len(roomEmails))
	for _, email := range roomEmails {
		if p.omitted[email] {
			continue
		}
		intervals := []calendar.BusyInterval{}
		for _, b := range p.busy[email] {
			if b.Start.Before(windowEnd) && b.End.After(windowStart) {
				intervals = append(intervals, b)
			}
		}
		for _, ev := range p.events {
			if ev.RoomEmail == email && ev.Start.Before(windowEnd) && ev.End.After(windowStart) {
				intervals = append(intervals, calendar.BusyInterval{Start: ev.Start, End: ev.End})
			}
		}
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
		result[email] = intervals
	}
	return result, nil
}

func (p *FakeProvider) GetEvent(ctx context.Context, eventID string) (calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "GetEvent", EventID: eventID}); err != nil {
		return calendar.Event{}, err
	}
	event, ok := p.events[eventID]
	if !ok {
		return calendar.Event{}, calendar.ErrNotFound
	}
	return event.Clone(), nil
}

func (p *FakeProvider) ListEvents(ctx context.Context, participantEmail string, start, end time.Time, timeZone string) ([]calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "ListEvents", Start: start, End: end}); err != nil {
		return nil, err
	}
	var events []calendar.Event
	for _, ev := range p.events {
		if ev.Start.Before(end) && ev.End.After(start) && participates(ev, participantEmail) {
			events = append(events, ev.Clone())
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (p *FakeProvider) CreateEvent(ctx context.Context, event calendar.Event) (calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "CreateEvent", RoomEmails: []string{event.RoomEmail}, Start: event.Start, End: event.End}); err != nil {
		return calendar.Event{}, err
	}

	if event.IdempotencyKey != "" {
		if existing, ok := p.events[event.IdempotencyKey]; ok {
			return existing.Clone(), nil
		}
		event.ID = event.IdempotencyKey
	} else {
		event.ID = p.nextID()
	}
	if p.RejectOverlaps && p.overlapsLocked(event) {
		return calendar.Event{}, calendar.ErrRejected
	}
	if event.CreateConference {
		event.MeetLink = "https://meet.example.com/" + event.ID
	}
	p.events[event.ID] = event.Clone()
	return event, nil
}

func (p *FakeProvider) UpdateEvent(ctx context.Context, eventID string, event calendar.Event) (calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "UpdateEvent", EventID: eventID, RoomEmails: []string{event.RoomEmail}, Start: event.Start, End: event.End}); err != nil {
		return calendar.Event{}, err
	}
	if _, ok := p.events[eventID]; !ok {
		return calendar.Event{}, calendar.ErrNotFound
	}
	event.ID = eventID
	if p.RejectOverlaps && p.overlapsLocked(event) {
		return calendar.Event{}, calendar.ErrRejected
	}
	if event.CreateConference && event.MeetLink == "" {
		event.MeetLink = "https://meet.example.com/" + event.ID
	}
	p.events[eventID] = event.Clone()
	return event, nil
}

func (p *FakeProvider) DeleteEvent(ctx context.Context, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(ProviderCall{Op: "DeleteEvent", EventID: eventID}); err != nil {
		return err
	}
	if _, ok := p.events[eventID]; !ok {
		return calendar.ErrNotFound
	}
	delete(p.events, eventID)
	return nil
}

func (p *FakeProvider) overlapsLocked(candidate calendar.Event) bool {
	for id, ev := range p.events {
		if id == candidate.ID || ev.RoomEmail != candidate.RoomEmail {
			continue
		}
		if ev.Start.Before(candidate.End) && ev.End.After(candidate.Start) {
			return true
		}
	}
	return false
}

func participates(ev calendar.Event, email string) bool {
	if email == "" || strings.EqualFold(ev.OrganizerEmail, email) {
		return true
	}
	for _, attendee := range ev.Attendees {
		if strings.EqualFold(attendee, email) {
			return true
		}
	}
	return false
}

var _ calendar.Provider = (*FakeProvider)(nil)
