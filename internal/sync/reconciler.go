// Package sync reconciles accepted assignments against calendar state,
// keeping exactly one deadline event per assignment.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/edusync/classroom-calendar-sync/internal/calendar"
	"github.com/edusync/classroom-calendar-sync/internal/db"
	"github.com/edusync/classroom-calendar-sync/internal/models"
)

// DefaultDuePeriod is the deadline assumed for assignments that arrive
// without one: one week after acceptance.
const DefaultDuePeriod = 7 * 24 * time.Hour

// MappingStore is the persistence surface the reconciler needs.
// CreateMapping must fail with db.ErrMappingExists when a mapping for the
// assignment is already present, and UpdateMappingDueDate must be conditional
// on the previously read due date, failing with db.ErrMappingStale otherwise.
type MappingStore interface {
	SaveAssignment(ctx context.Context, a *models.Assignment) error
	GetMapping(ctx context.Context, assignmentID string) (*models.EventMapping, error)
	CreateMapping(ctx context.Context, m *models.EventMapping) error
	UpdateMappingDueDate(ctx context.Context, assignmentID string, prev, next *time.Time) error
}

// Reconciler ensures each assignment has exactly one calendar event and that
// the event reflects the assignment's current deadline. It is safe for
// concurrent use; reconciliations for the same assignment are serialized.
type Reconciler struct {
	store            MappingStore
	cal              calendar.Provider
	defaultDuePeriod time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler creates a reconciler. A non-positive defaultDuePeriod falls
// back to DefaultDuePeriod.
func NewReconciler(store MappingStore, provider calendar.Provider, defaultDuePeriod time.Duration) *Reconciler {
	if defaultDuePeriod <= 0 {
		defaultDuePeriod = DefaultDuePeriod
	}
	return &Reconciler{
		store:            store,
		cal:              provider,
		defaultDuePeriod: defaultDuePeriod,
		locks:            make(map[string]*sync.Mutex),
	}
}

// Reconcile brings the calendar in line with the assignment. It creates an
// event and mapping on first sight, moves the event when the due date
// changed, and does nothing when nothing changed. Repeated delivery of an
// unchanged assignment performs no calendar call.
func (r *Reconciler) Reconcile(ctx context.Context, assignment *models.Assignment) (Result, error) {
	if err := validate(assignment); err != nil {
		return "", err
	}

	unlock := r.lock(assignment.ID)
	defer unlock()

	if err := r.store.SaveAssignment(ctx, assignment); err != nil {
		return "", &UpstreamError{Op: "store: save assignment", Err: err}
	}

	mapping, err := r.store.GetMapping(ctx, assignment.ID)
	if err != nil {
		return "", &UpstreamError{Op: "store: get mapping", Err: err}
	}

	if mapping == nil {
		return r.create(ctx, assignment)
	}
	if dueEqual(mapping.LastSyncedDueAt, assignment.DueAt) {
		return ResultUnchanged, nil
	}
	return r.update(ctx, assignment, mapping)
}

func (r *Reconciler) create(ctx context.Context, assignment *models.Assignment) (Result, error) {
	eventID, err := r.cal.CreateEvent(ctx, r.eventFor(assignment))
	if err != nil {
		return "", &UpstreamError{Op: "calendar: create event", Err: err}
	}

	mapping := &models.EventMapping{
		AssignmentID:    assignment.ID,
		CalendarEventID: eventID,
		LastSyncedDueAt: copyTime(assignment.DueAt),
	}
	if err := r.store.CreateMapping(ctx, mapping); err != nil {
		if errors.Is(err, db.ErrMappingExists) {
			// Another writer stored a mapping first. Delete the event we
			// just made so it cannot linger as a duplicate.
			if delErr := r.cal.DeleteEvent(ctx, eventID); delErr != nil {
				log.Printf("Failed to delete orphaned event %s for %s: %v", eventID, assignment.ID, delErr)
			}
			return "", &ConflictError{AssignmentID: assignment.ID}
		}
		return "", &UpstreamError{Op: "store: create mapping", Err: err}
	}

	return ResultCreated, nil
}

func (r *Reconciler) update(ctx context.Context, assignment *models.Assignment, mapping *models.EventMapping) (Result, error) {
	if err := r.cal.UpdateEvent(ctx, mapping.CalendarEventID, r.eventFor(assignment)); err != nil {
		return "", &UpstreamError{Op: "calendar: update event", Err: err}
	}

	if err := r.store.UpdateMappingDueDate(ctx, assignment.ID, mapping.LastSyncedDueAt, assignment.DueAt); err != nil {
		if errors.Is(err, db.ErrMappingStale) {
			return "", &ConflictError{AssignmentID: assignment.ID}
		}
		return "", &UpstreamError{Op: "store: update mapping", Err: err}
	}

	return ResultUpdated, nil
}

// eventFor renders the deadline event: a one-hour block ending at the
// effective due date, with the repo link in the description.
func (r *Reconciler) eventFor(assignment *models.Assignment) *calendar.Event {
	due := r.effectiveDue(assignment)

	description := fmt.Sprintf("Assignment %s accepted", assignment.ID)
	if assignment.RepoLink != "" {
		description += "\n" + assignment.RepoLink
	}

	return &calendar.Event{
		Summary:     assignment.Title + " due",
		Description: description,
		Start:       due.Add(-time.Hour),
		End:         due,
	}
}

// effectiveDue falls back to acceptance time plus the default due period for
// assignments that have no deadline yet, so they still show on the calendar.
func (r *Reconciler) effectiveDue(assignment *models.Assignment) time.Time {
	if assignment.DueAt != nil {
		return assignment.DueAt.UTC()
	}
	base := assignment.AcceptedAt
	if base.IsZero() {
		base = time.Now()
	}
	return base.UTC().Add(r.defaultDuePeriod)
}

// lock serializes the read-then-write sequence per assignment, so concurrent
// deliveries of the same assignment cannot both take the create path.
func (r *Reconciler) lock(assignmentID string) func() {
	r.mu.Lock()
	l, ok := r.locks[assignmentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[assignmentID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func validate(assignment *models.Assignment) error {
	if assignment == nil || assignment.ID == "" {
		return &ValidationError{Field: "assignmentId", Reason: "must not be empty"}
	}
	if assignment.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return nil
}

func dueEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
