// Package http exposes room availability and booking over HTTP.
//
// Every route except /healthz expects the caller identity in the
// X-User-Email header, set by the authenticating proxy in front of the
// service. X-User-Domain selects the room directory and defaults to the
// domain part of the address.
//
// The router exposes the following endpoints:
//   - GET /rooms/available?startTime&duration&timeZone&seats&floor&eventId:
//     free rooms for the window [startTime, startTime+duration minutes).
//     Response: {"preferred":[roomDTO],"others":[roomDTO]}. eventId names an
//     event being rescheduled so its own room is evaluated with the delta
//     check. A newer query from the same caller cancels an older one, which
//     then answers 409 with error_code QUERY_SUPERSEDED.
//   - GET /rooms, GET /floors, GET /rooms/highest-seat-count: directory
//     lookups served from the room catalog cache.
//   - POST /rooms/refresh: reloads the caller's room directory.
//   - GET /events?startTime&endTime&timeZone: the caller's events ordered by
//     start time, most recently created first among equal starts.
//   - POST /events, PUT /events/{id}, DELETE /events/{id}: booking
//     management exchanging the eventDTO payload defined in event_handler.go.
//     POST honours an Idempotency-Key header. Only the organizer may change
//     or delete an event.
//
// Conflicts answer 409 with the room and window in the "conflict" member,
// provider failures answer 502 and validation failures answer 422 with field
// errors.
package http
