// Package google implements calendar.Provider against Google Workspace: the
// Admin SDK directory for rooms and one shared booking calendar for events.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

const (
	// DefaultCustomer addresses the customer of the impersonated admin.
	DefaultCustomer = "my_customer"
	// DefaultCalendarID is the booking calendar of the impersonated user.
	DefaultCalendarID = "primary"

	organizerProperty = "quickMeetOrganizer"
	createdAtProperty = "quickMeetCreatedAt"
	conferenceType    = "hangoutsMeet"
	expansionMax      = 100
)

// Config selects credentials and calendars for the provider.
type Config struct {
	// CredentialsFile is a service account key with domain-wide delegation.
	CredentialsFile string
	// Subject is the Workspace user the service account acts as.
	Subject    string
	Customer   string
	CalendarID string

	// HTTPClient replaces the credential based client. Endpoints override
	// the API base URLs. Both exist for tests.
	HTTPClient        *http.Client
	CalendarEndpoint  string
	DirectoryEndpoint string
}

// Provider talks to Google Calendar and the Admin directory. It serves the
// single Workspace tenant of the delegated subject: room lookups for any other
// domain report calendar.ErrNotFound.
type Provider struct {
	calendar   *gcal.Service
	directory  *admin.Service
	customer   string
	calendarID string
	domain     string
	logger     *slog.Logger
}

// New builds a provider from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Customer == "" {
		cfg.Customer = DefaultCustomer
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = DefaultCalendarID
	}

	client := cfg.HTTPClient
	if client == nil {
		var err error
		if client, err = delegatedClient(ctx, cfg); err != nil {
			return nil, err
		}
	}

	calendarOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.CalendarEndpoint != "" {
		calendarOpts = append(calendarOpts, option.WithEndpoint(cfg.CalendarEndpoint))
	}
	calendarService, err := gcal.NewService(ctx, calendarOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	directoryOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.DirectoryEndpoint != "" {
		directoryOpts = append(directoryOpts, option.WithEndpoint(cfg.DirectoryEndpoint))
	}
	directoryService, err := admin.NewService(ctx, directoryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory service: %w", err)
	}

	return &Provider{
		calendar:   calendarService,
		directory:  directoryService,
		customer:   cfg.Customer,
		calendarID: cfg.CalendarID,
		domain:     subjectDomain(cfg.Subject),
		logger:     logger.With("component", "google_calendar"),
	}, nil
}

func delegatedClient(ctx context.Context, cfg Config) (*http.Client, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("google credentials file is required")
	}
	key, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(key,
		gcal.CalendarScope,
		admin.AdminDirectoryResourceCalendarReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}
	jwtConfig.Subject = cfg.Subject
	return jwtConfig.Client(ctx), nil
}

var _ calendar.Provider = (*Provider)(nil)

func subjectDomain(subject string) string {
	at := strings.LastIndex(subject, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(subject[at+1:]))
}

// ListRooms returns the conference rooms registered in the directory.
func (p *Provider) ListRooms(ctx context.Context, domain string) ([]calendar.Room, error) {
	if p.domain != "" && !strings.EqualFold(strings.TrimSpace(domain), p.domain) {
		p.logger.WarnContext(ctx, "room lookup for foreign domain", "domain", domain, "workspace_domain", p.domain)
		return nil, fmt.Errorf("domain %s is not served by workspace %s: %w", domain, p.domain, calendar.ErrNotFound)
	}

	var rooms []calendar.Room
	err := p.directory.Resources.Calendars.List(p.customer).Pages(ctx, func(page *admin.CalendarResources) error {
		for _, item := range page.Items {
			if item.ResourceEmail == "" {
				continue
			}
			if item.ResourceCategory != "" && item.ResourceCategory != "CONFERENCE_ROOM" {
				continue
			}
			rooms = append(rooms, calendar.Room{
				ID:          item.ResourceId,
				Email:       item.ResourceEmail,
				Name:        item.ResourceName,
				Domain:      domain,
				Floor:       item.FloorName,
				Seats:       int(item.Capacity),
				Description: item.ResourceDescription,
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapError("list rooms", err)
	}
	p.logger.DebugContext(ctx, "directory rooms listed", "domain", domain, "rooms", len(rooms))
	return rooms, nil
}

// FreeBusy queries the busy periods of the rooms. Rooms Google reports an
// error for are left out of the result.
func (p *Provider) FreeBusy(ctx context.Context, roomEmails []string, windowStart, windowEnd time.Time, timeZone string) (map[string][]calendar.BusyInterval, error) {
	items := make([]*gcal.FreeBusyRequestItem, 0, len(roomEmails))
	for _, email := range roomEmails {
		items = append(items, &gcal.FreeBusyRequestItem{Id: email})
	}
	resp, err := p.calendar.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:              windowStart.Format(time.RFC3339),
		TimeMax:              windowEnd.Format(time.RFC3339),
		TimeZone:             timeZone,
		CalendarExpansionMax: expansionMax,
		Items:                items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError("freebusy", err)
	}

	result := make(map[string][]calendar.BusyInterval, len(resp.Calendars))
	for email, cal := range resp.Calendars {
		if len(cal.Errors) > 0 {
			p.logger.WarnContext(ctx, "free/busy unavailable for room", "room_email", email, "reason", cal.Errors[0].Reason)
			continue
		}
		intervals := make([]calendar.BusyInterval, 0, len(cal.Busy))
		for _, period := range cal.Busy {
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
			}
			intervals = append(intervals, calendar.BusyInterval{Start: start, End: end})
		}
		result[email] = intervals
	}
	return result, nil
}

func (p *Provider) GetEvent(ctx context.Context, eventID string) (calendar.Event, error) {
	item, err := p.calendar.Events.Get(p.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, mapError("get event", err)
	}
	if item.Status == "cancelled" {
		return calendar.Event{}, fmt.Errorf("get event %s: %w", eventID, calendar.ErrNotFound)
	}
	return fromGoogleEvent(item)
}

// ListEvents lists the booking calendar and keeps the events the participant
// organizes or attends.
func (p *Provider) ListEvents(ctx context.Context, participantEmail string, start, end time.Time, timeZone string) ([]calendar.Event, error) {
	var events []calendar.Event
	call := p.calendar.Events.List(p.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		OrderBy("startTime")
	if timeZone != "" {
		call = call.TimeZone(timeZone)
	}
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Start == nil || item.Start.DateTime == "" {
				continue
			}
			event, err := fromGoogleEvent(item)
			if err != nil {
				return err
			}
			if participates(event, participantEmail) {
				events = append(events, event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError("list events", err)
	}
	return events, nil
}

// CreateEvent inserts the event. An idempotency key becomes the Google event
// id, so a retried insert that collides returns the stored event.
func (p *Provider) CreateEvent(ctx context.Context, event calendar.Event) (calendar.Event, error) {
	item := toGoogleEvent(event)
	item.Id = event.IdempotencyKey
	if event.CreateConference {
		item.ConferenceData = newConferenceRequest()
	}

	created, err := p.calendar.Events.Insert(p.calendarID, item).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		if event.IdempotencyKey != "" && hasCode(err, http.StatusConflict) {
			p.logger.InfoContext(ctx, "event id already used, returning stored event", "event_id", event.IdempotencyKey)
			return p.GetEvent(ctx, event.IdempotencyKey)
		}
		return calendar.Event{}, mapError("create event", err)
	}
	return fromGoogleEvent(created)
}

// UpdateEvent replaces the event. An existing conference is kept while the
// caller still wants one.
func (p *Provider) UpdateEvent(ctx context.Context, eventID string, event calendar.Event) (calendar.Event, error) {
	current, err := p.calendar.Events.Get(p.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, mapError("get event", err)
	}

	item := toGoogleEvent(event)
	switch {
	case event.CreateConference && current.ConferenceData != nil:
		item.ConferenceData = current.ConferenceData
	case event.CreateConference:
		item.ConferenceData = newConferenceRequest()
	}

	updated, err := p.calendar.Events.Update(p.calendarID, eventID, item).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, mapError("update event", err)
	}
	return fromGoogleEvent(updated)
}

func (p *Provider) DeleteEvent(ctx context.Context, eventID string) error {
	if err := p.calendar.Events.Delete(p.calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapError("delete event", err)
	}
	return nil
}

func newConferenceRequest() *gcal.ConferenceData {
	return &gcal.ConferenceData{
		CreateRequest: &gcal.CreateConferenceRequest{
			RequestId:             uuid.NewString(),
			ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: conferenceType},
		},
	}
}

// mapError sorts Google API failures into the calendar sentinels. Anything
// else is returned wrapped for the caller to treat as an outage.
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch apiErr.Code {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%s: %w: %v", op, calendar.ErrNotFound, err)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%s: %w: %v", op, calendar.ErrRejected, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func hasCode(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func participates(event calendar.Event, email string) bool {
	if email == "" || strings.EqualFold(event.OrganizerEmail, email) {
		return true
	}
	for _, attendee := range event.Attendees {
		if strings.EqualFold(attendee, email) {
			return true
		}
	}
	return false
}
