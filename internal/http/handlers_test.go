package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
	"github.com/Cefalo/quick-meet/internal/calendar"
)

var (
	tenAM  = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	room10 = calendar.Room{ID: "r10", Email: "ten@example.com", Name: "Ten", Floor: "F1", Seats: 10}
	room4  = calendar.Room{ID: "r4", Email: "four@example.com", Name: "Four", Floor: "F2", Seats: 4}
)

type stubAvailability struct {
	mu    sync.Mutex
	calls []application.AvailabilityRequest
	find  func(ctx context.Context, req application.AvailabilityRequest, domain string) (application.AvailableRooms, error)
}

func (s *stubAvailability) FindAvailableRooms(ctx context.Context, req application.AvailabilityRequest, domain string) (application.AvailableRooms, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.find(ctx, req, domain)
}

type stubRooms struct {
	rooms  []calendar.Room
	floors []string
	seats  int
	err    error
}

func (s *stubRooms) ListRooms(context.Context, application.Principal) ([]calendar.Room, error) {
	return s.rooms, s.err
}

func (s *stubRooms) ListFloors(context.Context, application.Principal) ([]string, error) {
	return s.floors, s.err
}

func (s *stubRooms) HighestSeatCapacity(context.Context, application.Principal) (int, error) {
	return s.seats, s.err
}

func (s *stubRooms) RefreshRooms(context.Context, application.Principal) ([]calendar.Room, error) {
	return s.rooms, s.err
}

type stubBookings struct {
	created   application.CreateBookingParams
	updated   application.UpdateBookingParams
	deleted   application.DeleteBookingParams
	listed    application.ListBookingsParams
	bookings  []application.Booking
	createErr error
	updateErr error
	deleteErr error
}

func (s *stubBookings) CreateBooking(_ context.Context, params application.CreateBookingParams) (application.Booking, error) {
	s.created = params
	if s.createErr != nil {
		return application.Booking{}, s.createErr
	}
	room := room10
	return application.Booking{
		ID:             "evt-1",
		Summary:        params.Input.Summary,
		Start:          params.Input.Start,
		End:            params.Input.End(),
		OrganizerEmail: params.Principal.Email,
		Room:           &room,
		IsEditable:     true,
	}, nil
}

func (s *stubBookings) UpdateBooking(_ context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	s.updated = params
	if s.updateErr != nil {
		return application.Booking{}, s.updateErr
	}
	return application.Booking{ID: params.EventID, Start: params.Input.Start, End: params.Input.End()}, nil
}

func (s *stubBookings) DeleteBooking(_ context.Context, params application.DeleteBookingParams) error {
	s.deleted = params
	return s.deleteErr
}

func (s *stubBookings) ListBookings(_ context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
	s.listed = params
	return s.bookings, nil
}

type routerDeps struct {
	availability *stubAvailability
	rooms        *stubRooms
	bookings     *stubBookings
}

func newTestRouter(deps routerDeps) http.Handler {
	logger := discardLogger()
	cfg := RouterConfig{Identity: RequireIdentity(logger)}
	if deps.availability != nil {
		cfg.Availability = NewAvailabilityHandler(deps.availability, application.NewQueryCoordinator(), logger)
	}
	if deps.rooms != nil {
		cfg.Rooms = NewRoomHandler(deps.rooms, logger)
	}
	if deps.bookings != nil {
		cfg.Events = NewEventHandler(deps.bookings, logger)
	}
	return NewRouter(cfg)
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(HeaderUserEmail, "alice@example.com")
	return req
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAvailabilityHandler(t *testing.T) {
	t.Parallel()

	t.Run("returns preferred and others", func(t *testing.T) {
		t.Parallel()

		stub := &stubAvailability{find: func(context.Context, application.AvailabilityRequest, string) (application.AvailableRooms, error) {
			return application.AvailableRooms{Preferred: []calendar.Room{room10}, Others: nil}, nil
		}}
		router := newTestRouter(routerDeps{availability: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet,
			"/rooms/available?startTime=2024-01-15T10:00:00Z&duration=30&timeZone=Europe/Oslo&seats=6&floor=F1&eventId=evt-9", ""))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		body := decodeBody[availableRoomsResponse](t, recorder)
		if len(body.Preferred) != 1 || body.Preferred[0].Email != room10.Email {
			t.Fatalf("unexpected preferred rooms: %+v", body.Preferred)
		}
		if body.Others == nil || len(body.Others) != 0 {
			t.Fatalf("expected empty others list, got %+v", body.Others)
		}

		req := stub.calls[0]
		if !req.WindowStart.Equal(tenAM) || !req.WindowEnd.Equal(tenAM.Add(30*time.Minute)) {
			t.Fatalf("unexpected window %v-%v", req.WindowStart, req.WindowEnd)
		}
		if req.MinSeats != 6 || req.Floor != "F1" || req.ExcludeEventID != "evt-9" || req.TimeZone != "Europe/Oslo" {
			t.Fatalf("unexpected request %+v", req)
		}
	})

	t.Run("rejects invalid query", func(t *testing.T) {
		t.Parallel()

		stub := &stubAvailability{find: func(context.Context, application.AvailabilityRequest, string) (application.AvailableRooms, error) {
			t.Fatalf("service must not be called")
			return application.AvailableRooms{}, nil
		}}
		router := newTestRouter(routerDeps{availability: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet, "/rooms/available?startTime=yesterday&duration=0&seats=-1&timeZone=Mars/Base", ""))

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		body := decodeBody[errorResponse](t, recorder)
		for _, field := range []string{"startTime", "duration", "seats", "timeZone"} {
			if _, ok := body.Errors[field]; !ok {
				t.Fatalf("expected field error for %s, got %+v", field, body.Errors)
			}
		}
	})

	t.Run("older query from the same caller is superseded", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		stub := &stubAvailability{}
		stub.find = func(ctx context.Context, req application.AvailabilityRequest, _ string) (application.AvailableRooms, error) {
			if req.MinSeats == 1 {
				close(started)
				<-ctx.Done()
				return application.AvailableRooms{}, context.Cause(ctx)
			}
			return application.AvailableRooms{Others: []calendar.Room{room4}}, nil
		}
		router := newTestRouter(routerDeps{availability: stub})

		first := httptest.NewRecorder()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			router.ServeHTTP(first, newRequest(http.MethodGet, "/rooms/available?startTime=2024-01-15T10:00:00Z&duration=30", ""))
		}()
		<-started

		second := httptest.NewRecorder()
		router.ServeHTTP(second, newRequest(http.MethodGet, "/rooms/available?startTime=2024-01-15T10:00:00Z&duration=30&seats=4", ""))
		wg.Wait()

		if second.Code != http.StatusOK {
			t.Fatalf("expected newer query to succeed, got %d", second.Code)
		}
		if first.Code != http.StatusConflict {
			t.Fatalf("expected superseded query to answer 409, got %d", first.Code)
		}
		body := decodeBody[errorResponse](t, first)
		if body.ErrorCode != "QUERY_SUPERSEDED" {
			t.Fatalf("expected QUERY_SUPERSEDED, got %q", body.ErrorCode)
		}
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(routerDeps{availability: &stubAvailability{}})
		req := httptest.NewRequest(http.MethodGet, "/rooms/available?startTime=2024-01-15T10:00:00Z&duration=30", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	stub := &stubRooms{rooms: []calendar.Room{room4, room10}, floors: []string{"F1", "F2"}, seats: 10}
	router := newTestRouter(routerDeps{rooms: stub})

	t.Run("list rooms", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet, "/rooms", ""))
		body := decodeBody[listRoomsResponse](t, recorder)
		if len(body.Rooms) != 2 || body.Rooms[0].Email != room4.Email {
			t.Fatalf("unexpected rooms %+v", body.Rooms)
		}
	})

	t.Run("floors", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet, "/floors", ""))
		body := decodeBody[floorsResponse](t, recorder)
		if strings.Join(body.Floors, ",") != "F1,F2" {
			t.Fatalf("unexpected floors %v", body.Floors)
		}
	})

	t.Run("highest seat count", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet, "/rooms/highest-seat-count", ""))
		body := decodeBody[seatCountResponse](t, recorder)
		if body.Seats != 10 {
			t.Fatalf("expected 10 seats, got %d", body.Seats)
		}
	})

	t.Run("refresh requires POST", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet, "/rooms/refresh", ""))
		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}

		recorder = httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodPost, "/rooms/refresh", ""))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
	})

	t.Run("upstream failure maps to 502", func(t *testing.T) {
		t.Parallel()
		failing := newTestRouter(routerDeps{rooms: &stubRooms{err: &application.UpstreamError{Op: "list rooms", Err: errors.New("boom")}}})
		recorder := httptest.NewRecorder()
		failing.ServeHTTP(recorder, newRequest(http.MethodGet, "/rooms", ""))
		if recorder.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", recorder.Code)
		}
	})
}

func TestEventHandlers(t *testing.T) {
	t.Parallel()

	const createBody = `{"title":"Standup","startTime":"2024-01-15T10:00:00Z","duration":30,"timeZone":"UTC","room":"ten@example.com","attendees":["bob@example.com"],"conference":true}`

	t.Run("create passes idempotency key", func(t *testing.T) {
		t.Parallel()

		stub := &stubBookings{}
		router := newTestRouter(routerDeps{bookings: stub})

		req := newRequest(http.MethodPost, "/events", createBody)
		req.Header.Set(HeaderIdempotencyKey, "retry-1")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if stub.created.IdempotencyKey != "retry-1" {
			t.Fatalf("expected idempotency key to be forwarded, got %q", stub.created.IdempotencyKey)
		}
		input := stub.created.Input
		if input.Duration != 30*time.Minute || !input.Start.Equal(tenAM) || !input.CreateConference || input.RoomEmail != room10.Email {
			t.Fatalf("unexpected input %+v", input)
		}
		body := decodeBody[eventResponse](t, recorder)
		if body.Event.ID != "evt-1" || body.Event.Room == nil || body.Event.End != "2024-01-15T10:30:00Z" {
			t.Fatalf("unexpected event %+v", body.Event)
		}
	})

	t.Run("conflict carries room and window", func(t *testing.T) {
		t.Parallel()

		stub := &stubBookings{createErr: &application.ConflictError{
			Room:   room10,
			Start:  tenAM,
			End:    tenAM.Add(30 * time.Minute),
			Reason: "room has already been booked",
		}}
		router := newTestRouter(routerDeps{bookings: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodPost, "/events", createBody))

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		body := decodeBody[errorResponse](t, recorder)
		if body.Conflict == nil || body.Conflict.RoomName != "Ten" || body.Conflict.Start != "2024-01-15T10:00:00Z" {
			t.Fatalf("unexpected conflict payload %+v", body.Conflict)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(routerDeps{bookings: &stubBookings{}})
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodPost, "/events", "{"))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("update by non organizer is forbidden", func(t *testing.T) {
		t.Parallel()

		stub := &stubBookings{updateErr: application.ErrForbidden}
		router := newTestRouter(routerDeps{bookings: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodPut, "/events/evt-7", createBody))

		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
		if stub.updated.EventID != "evt-7" {
			t.Fatalf("expected event id from path, got %q", stub.updated.EventID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		stub := &stubBookings{}
		router := newTestRouter(routerDeps{bookings: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodDelete, "/events/evt-7", ""))
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if stub.deleted.EventID != "evt-7" || stub.deleted.Principal.Email != "alice@example.com" {
			t.Fatalf("unexpected delete params %+v", stub.deleted)
		}
	})

	t.Run("delete of missing event", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(routerDeps{bookings: &stubBookings{deleteErr: application.ErrNotFound}})
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodDelete, "/events/missing", ""))
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})

	t.Run("list keeps service order", func(t *testing.T) {
		t.Parallel()

		stub := &stubBookings{bookings: []application.Booking{
			{ID: "c-newer", Start: tenAM, End: tenAM.Add(time.Hour)},
			{ID: "b-older", Start: tenAM, End: tenAM.Add(time.Hour)},
		}}
		router := newTestRouter(routerDeps{bookings: stub})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newRequest(http.MethodGet,
			"/events?startTime=2024-01-15T00:00:00Z&endTime=2024-01-16T00:00:00Z&timeZone=UTC", ""))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		body := decodeBody[listEventsResponse](t, recorder)
		if len(body.Events) != 2 || body.Events[0].ID != "c-newer" || body.Events[1].ID != "b-older" {
			t.Fatalf("unexpected order %+v", body.Events)
		}
		if stub.listed.TimeZone != "UTC" || !stub.listed.End.Equal(tenAM.Add(14*time.Hour)) {
			t.Fatalf("unexpected list params %+v", stub.listed)
		}
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Identity: RequireIdentity(discardLogger()),
		Health:   func(context.Context) error { return errors.New("db down") },
	})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}
