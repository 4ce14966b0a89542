package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleProvider implements Provider against the Google Calendar API.
type GoogleProvider struct {
	service    *gcal.Service
	calendarID string
}

// NewGoogleProvider creates a Google Calendar provider that writes events to
// the given calendar ("primary" for the account's default calendar).
func NewGoogleProvider(ctx context.Context, client *http.Client, calendarID string) (*GoogleProvider, error) {
	service, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleProvider{
		service:    service,
		calendarID: calendarID,
	}, nil
}

// CreateEvent inserts a new event and returns the ID Google assigned to it.
func (g *GoogleProvider) CreateEvent(ctx context.Context, event *Event) (string, error) {
	created, err := g.service.Events.Insert(g.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}

	return created.Id, nil
}

// UpdateEvent replaces the timed fields of an existing event.
func (g *GoogleProvider) UpdateEvent(ctx context.Context, eventID string, event *Event) error {
	_, err := g.service.Events.Update(g.calendarID, eventID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

// DeleteEvent removes an event from the calendar.
func (g *GoogleProvider) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func toGoogleEvent(event *Event) *gcal.Event {
	return &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
		},
		End: &gcal.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
		},
	}
}
