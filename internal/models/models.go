package models

import (
	"time"
)

// Assignment represents an accepted GitHub Classroom assignment.
type Assignment struct {
	// ID is the unique key from GitHub, in "owner/repo" form.
	ID         string
	Title      string
	Course     string
	RepoLink   string
	AcceptedAt time.Time
	// DueAt is nil when the assignment has no deadline yet.
	DueAt *time.Time
}

// EventMapping associates an assignment with the calendar event created for
// it. There is at most one mapping per assignment, and the calendar event ID
// is assigned exactly once, at creation.
type EventMapping struct {
	AssignmentID    string
	CalendarEventID string
	// LastSyncedDueAt is the due date last written to the calendar event,
	// nil when the assignment had no deadline at the last sync.
	LastSyncedDueAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SyncMetadata tracks the last successful resync for an organization.
type SyncMetadata struct {
	Organization string
	LastSyncTime time.Time
}
