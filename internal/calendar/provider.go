// Package calendar talks to the calendar side of the sync: creating,
// updating, and deleting deadline events.
package calendar

import (
	"context"
	"time"
)

// Provider is the calendar surface the reconciler drives. Implementations
// must return the provider-assigned event ID from CreateEvent; callers
// persist it and use it for all later updates.
type Provider interface {
	CreateEvent(ctx context.Context, event *Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, event *Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Event is a provider-neutral calendar event.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}
