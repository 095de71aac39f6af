package google

import (
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// toGoogleEvent renders event for insert or update. The room joins the
// attendees as a resource and the real organizer travels in a private
// property because the booking calendar owns every event.
func toGoogleEvent(event calendar.Event) *gcal.Event {
	item := &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.TimeZone},
		End:         &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.TimeZone},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{organizerProperty: event.OrganizerEmail},
		},
	}
	if !event.CreatedAt.IsZero() {
		item.ExtendedProperties.Private[createdAtProperty] = event.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	if event.OrganizerEmail != "" {
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: event.OrganizerEmail, ResponseStatus: "accepted"})
	}
	for _, email := range event.Attendees {
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: email})
	}
	if event.RoomEmail != "" {
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: event.RoomEmail, Resource: true})
	}
	return item
}

func fromGoogleEvent(item *gcal.Event) (calendar.Event, error) {
	event := calendar.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		MeetLink:    item.HangoutLink,
	}
	event.CreateConference = item.ConferenceData != nil || item.HangoutLink != ""

	if item.Start == nil || item.End == nil {
		return calendar.Event{}, fmt.Errorf("event %s has no start or end", item.Id)
	}
	var err error
	if event.Start, err = parseDateTime(item.Start); err != nil {
		return calendar.Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	if event.End, err = parseDateTime(item.End); err != nil {
		return calendar.Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	event.TimeZone = item.Start.TimeZone

	var private map[string]string
	if item.ExtendedProperties != nil {
		private = item.ExtendedProperties.Private
	}
	event.OrganizerEmail = private[organizerProperty]
	if event.OrganizerEmail == "" && item.Organizer != nil {
		event.OrganizerEmail = item.Organizer.Email
	}
	if created, err := time.Parse(time.RFC3339Nano, private[createdAtProperty]); err == nil {
		event.CreatedAt = created
	} else if created, err := time.Parse(time.RFC3339, item.Created); err == nil {
		event.CreatedAt = created
	}

	for _, attendee := range item.Attendees {
		switch {
		case attendee.Resource:
			if event.RoomEmail == "" {
				event.RoomEmail = attendee.Email
			}
		case strings.EqualFold(attendee.Email, event.OrganizerEmail):
		default:
			event.Attendees = append(event.Attendees, attendee.Email)
		}
	}
	return event, nil
}

func parseDateTime(value *gcal.EventDateTime) (time.Time, error) {
	if value.DateTime != "" {
		return time.Parse(time.RFC3339, value.DateTime)
	}
	if value.Date != "" {
		loc := time.UTC
		if value.TimeZone != "" {
			if zone, err := time.LoadLocation(value.TimeZone); err == nil {
				loc = zone
			}
		}
		return time.ParseInLocation("2006-01-02", value.Date, loc)
	}
	return time.Time{}, fmt.Errorf("empty date")
}
