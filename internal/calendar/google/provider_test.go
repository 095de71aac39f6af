package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// fakeWorkspace serves the slices of the Calendar and Directory APIs the
// provider uses.
type fakeWorkspace struct {
	mu     sync.Mutex
	events map[string]*gcal.Event
	seq    int
	busy   map[string]any
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{events: make(map[string]*gcal.Event), busy: make(map[string]any)}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": message}})
}

func (f *fakeWorkspace) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/directory/v1/customer/my_customer/resources/calendars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"resourceId": "1", "resourceName": "Cedar", "resourceEmail": "cedar@resource.example.com", "capacity": 8, "floorName": "F1", "resourceCategory": "CONFERENCE_ROOM"},
			{"resourceId": "2", "resourceName": "Projector", "resourceEmail": "projector@resource.example.com", "resourceCategory": "OTHER"},
		}})
	})

	mux.HandleFunc("POST /calendar/v3/freeBusy", func(w http.ResponseWriter, r *http.Request) {
		var req gcal.FreeBusyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode freebusy request: %v", err)
		}
		if req.CalendarExpansionMax != expansionMax {
			t.Errorf("expected calendarExpansionMax %d, got %d", expansionMax, req.CalendarExpansionMax)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"calendars": f.busy})
	})

	mux.HandleFunc("GET /calendar/v3/calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		event, ok := f.events[r.PathValue("id")]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, event)
	})

	mux.HandleFunc("GET /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		items := make([]*gcal.Event, 0, len(f.events))
		for _, event := range f.events {
			items = append(items, event)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	mux.HandleFunc("POST /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("conferenceDataVersion") != "1" {
			t.Errorf("expected conferenceDataVersion=1, got %q", r.URL.RawQuery)
		}
		var event gcal.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decode event: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if event.Id == "" {
			f.seq++
			event.Id = "g" + string(rune('0'+f.seq))
		} else if _, exists := f.events[event.Id]; exists {
			writeAPIError(w, http.StatusConflict, "The requested identifier already exists.")
			return
		}
		if event.ConferenceData != nil && event.ConferenceData.CreateRequest != nil {
			event.HangoutLink = "https://meet.google.com/" + event.Id
		}
		event.Created = "2024-06-03T08:00:00Z"
		event.Organizer = &gcal.EventOrganizer{Email: "booking@example.com"}
		f.events[event.Id] = &event
		writeJSON(w, http.StatusOK, &event)
	})

	mux.HandleFunc("PUT /calendar/v3/calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		var event gcal.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decode event: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := f.events[id]; !ok {
			writeAPIError(w, http.StatusNotFound, "Not Found")
			return
		}
		event.Id = id
		if event.ConferenceData == nil {
			event.HangoutLink = ""
		} else if event.ConferenceData.CreateRequest != nil {
			event.HangoutLink = "https://meet.google.com/" + id
		}
		f.events[id] = &event
		writeJSON(w, http.StatusOK, &event)
	})

	mux.HandleFunc("DELETE /calendar/v3/calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := f.events[id]; !ok {
			writeAPIError(w, http.StatusGone, "Resource has been deleted")
			return
		}
		delete(f.events, id)
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newTestProvider(t *testing.T) (*Provider, *fakeWorkspace) {
	t.Helper()
	return newTestProviderAs(t, "")
}

func newTestProviderAs(t *testing.T, subject string) (*Provider, *fakeWorkspace) {
	t.Helper()
	workspace := newFakeWorkspace()
	srv := httptest.NewServer(workspace.handler(t))
	t.Cleanup(srv.Close)

	provider, err := New(context.Background(), Config{
		Subject:           subject,
		HTTPClient:        srv.Client(),
		CalendarEndpoint:  srv.URL + "/calendar/v3/",
		DirectoryEndpoint: srv.URL + "/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return provider, workspace
}

var (
	tenAM    = time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)
	elevenAM = tenAM.Add(time.Hour)
)

func TestListRoomsKeepsConferenceRooms(t *testing.T) {
	provider, _ := newTestProvider(t)

	rooms, err := provider.ListRooms(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected one conference room, got %+v", rooms)
	}
	want := calendar.Room{ID: "1", Email: "cedar@resource.example.com", Name: "Cedar", Domain: "example.com", Floor: "F1", Seats: 8}
	if rooms[0] != want {
		t.Fatalf("ListRooms = %+v, want %+v", rooms[0], want)
	}
}

func TestListRoomsServesOnlyTheSubjectDomain(t *testing.T) {
	provider, _ := newTestProviderAs(t, "calendar-admin@Example.com")

	rooms, err := provider.ListRooms(context.Background(), "EXAMPLE.com")
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected one conference room, got %+v", rooms)
	}

	if _, err := provider.ListRooms(context.Background(), "other.org"); !errors.Is(err, calendar.ErrNotFound) {
		t.Fatalf("expected calendar.ErrNotFound for a foreign domain, got %v", err)
	}
}

func TestFreeBusyOmitsRoomsWithErrors(t *testing.T) {
	provider, workspace := newTestProvider(t)
	workspace.busy["cedar@resource.example.com"] = map[string]any{
		"busy": []map[string]string{{"start": "2024-06-03T10:30:00Z", "end": "2024-06-03T10:45:00Z"}},
	}
	workspace.busy["aurora@resource.example.com"] = map[string]any{"busy": []any{}}
	workspace.busy["ghost@resource.example.com"] = map[string]any{
		"errors": []map[string]string{{"domain": "global", "reason": "notFound"}},
	}

	busy, err := provider.FreeBusy(context.Background(),
		[]string{"cedar@resource.example.com", "aurora@resource.example.com", "ghost@resource.example.com"},
		tenAM, elevenAM, "UTC")
	if err != nil {
		t.Fatalf("FreeBusy returned error: %v", err)
	}
	if _, ok := busy["ghost@resource.example.com"]; ok {
		t.Fatal("expected the erroring room to be omitted")
	}
	if intervals, ok := busy["aurora@resource.example.com"]; !ok || len(intervals) != 0 {
		t.Fatalf("expected aurora present and free, got %v", intervals)
	}
	cedar := busy["cedar@resource.example.com"]
	if len(cedar) != 1 || !cedar[0].Start.Equal(tenAM.Add(30*time.Minute)) {
		t.Fatalf("unexpected cedar intervals %+v", cedar)
	}
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	provider, _ := newTestProvider(t)
	createdAt := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

	created, err := provider.CreateEvent(ctx, calendar.Event{
		Summary:          "Sync",
		Location:         "Cedar",
		Start:            tenAM,
		End:              elevenAM,
		TimeZone:         "UTC",
		OrganizerEmail:   "alice@example.com",
		RoomEmail:        "cedar@resource.example.com",
		Attendees:        []string{"bob@example.com"},
		CreatedAt:        createdAt,
		CreateConference: true,
		IdempotencyKey:   "abc123",
	})
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if created.ID != "abc123" || created.MeetLink == "" {
		t.Fatalf("unexpected created event %+v", created)
	}
	if created.OrganizerEmail != "alice@example.com" || created.RoomEmail != "cedar@resource.example.com" {
		t.Fatalf("organizer or room lost: %+v", created)
	}
	if len(created.Attendees) != 1 || created.Attendees[0] != "bob@example.com" {
		t.Fatalf("unexpected attendees %v", created.Attendees)
	}
	if !created.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created at %v, got %v", createdAt, created.CreatedAt)
	}

	again, err := provider.CreateEvent(ctx, calendar.Event{
		Start: tenAM, End: elevenAM, OrganizerEmail: "alice@example.com", IdempotencyKey: "abc123",
	})
	if err != nil || again.ID != "abc123" || again.Summary != "Sync" {
		t.Fatalf("expected retried insert to return stored event, got %+v, %v", again, err)
	}

	created.End = elevenAM.Add(30 * time.Minute)
	updated, err := provider.UpdateEvent(ctx, created.ID, created)
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if !updated.End.Equal(created.End) || updated.MeetLink == "" {
		t.Fatalf("expected conference to survive the update, got %+v", updated)
	}

	updated.CreateConference = false
	plain, err := provider.UpdateEvent(ctx, created.ID, updated)
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if plain.MeetLink != "" {
		t.Fatalf("expected conference to be dropped, got %q", plain.MeetLink)
	}

	mine, err := provider.ListEvents(ctx, "bob@example.com", tenAM, elevenAM.Add(time.Hour), "UTC")
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected bob to see the event, got %+v, %v", mine, err)
	}
	theirs, err := provider.ListEvents(ctx, "carol@example.com", tenAM, elevenAM.Add(time.Hour), "UTC")
	if err != nil || len(theirs) != 0 {
		t.Fatalf("expected carol to see nothing, got %+v, %v", theirs, err)
	}

	if err := provider.DeleteEvent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteEvent returned error: %v", err)
	}
	if _, err := provider.GetEvent(ctx, created.ID); !errors.Is(err, calendar.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := provider.DeleteEvent(ctx, created.ID); !errors.Is(err, calendar.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for gone event, got %v", err)
	}
}

func TestFromGoogleEventFallsBackToOrganizer(t *testing.T) {
	event, err := fromGoogleEvent(&gcal.Event{
		Id:        "x",
		Start:     &gcal.EventDateTime{DateTime: "2024-06-03T10:00:00+09:00", TimeZone: "Asia/Tokyo"},
		End:       &gcal.EventDateTime{DateTime: "2024-06-03T11:00:00+09:00"},
		Organizer: &gcal.EventOrganizer{Email: "erin@example.com"},
		Created:   "2024-06-01T00:00:00Z",
		Location:  "https://zoom.example.com/j/1",
		Attendees: []*gcal.EventAttendee{
			{Email: "erin@example.com"},
			{Email: "zen@resource.example.com", Resource: true},
		},
	})
	if err != nil {
		t.Fatalf("fromGoogleEvent returned error: %v", err)
	}
	if event.OrganizerEmail != "erin@example.com" || event.RoomEmail != "zen@resource.example.com" {
		t.Fatalf("unexpected organizer or room: %+v", event)
	}
	if len(event.Attendees) != 0 {
		t.Fatalf("organizer and room should not be listed as attendees, got %v", event.Attendees)
	}
	if event.TimeZone != "Asia/Tokyo" || !event.Start.Equal(time.Date(2024, time.June, 3, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v in %q", event.Start, event.TimeZone)
	}
	if !event.CreatedAt.Equal(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected created fallback, got %v", event.CreatedAt)
	}
}
