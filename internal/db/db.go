package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/edusync/classroom-calendar-sync/internal/models"
)

var (
	// ErrMappingExists is returned by CreateMapping when a mapping for the
	// assignment was already stored, typically because a concurrent writer
	// won the create race.
	ErrMappingExists = errors.New("event mapping already exists")

	// ErrMappingStale is returned by UpdateMappingDueDate when the stored
	// due date no longer matches the value the caller read.
	ErrMappingStale = errors.New("event mapping changed since read")

	// ErrNoToken is returned by GetToken when no token is stored for the
	// account.
	ErrNoToken = errors.New("no token stored for account")
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		course TEXT NOT NULL,
		repo_link TEXT,
		accepted_at TIMESTAMP NOT NULL,
		due_at TEXT
	);

	CREATE TABLE IF NOT EXISTS event_mappings (
		assignment_id TEXT PRIMARY KEY,
		calendar_event_id TEXT NOT NULL,
		last_synced_due_at TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tokens (
		account_name TEXT PRIMARY KEY,
		token TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		organization TEXT PRIMARY KEY,
		last_sync_time TIMESTAMP NOT NULL
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveAssignment saves the latest observed state of an assignment
func (db *DB) SaveAssignment(ctx context.Context, a *models.Assignment) error {
	query := `
	INSERT INTO assignments (id, title, course, repo_link, accepted_at, due_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		course = excluded.course,
		repo_link = excluded.repo_link,
		accepted_at = excluded.accepted_at,
		due_at = excluded.due_at
	`

	_, err := db.ExecContext(ctx, query, a.ID, a.Title, a.Course, a.RepoLink, a.AcceptedAt.UTC(), formatDue(a.DueAt))
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}

	return nil
}

// GetAssignment returns the last observed state of an assignment, or nil if
// the assignment has never been seen
func (db *DB) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT id, title, course, repo_link, accepted_at, due_at FROM assignments WHERE id = ?`

	var a models.Assignment
	var repoLink sql.NullString
	var due sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Title, &a.Course, &repoLink, &a.AcceptedAt, &due)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	a.RepoLink = repoLink.String
	a.DueAt, err = parseDue(due)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return &a, nil
}

// GetMapping returns the event mapping for an assignment, or nil if no
// mapping exists
func (db *DB) GetMapping(ctx context.Context, assignmentID string) (*models.EventMapping, error) {
	query := `
	SELECT assignment_id, calendar_event_id, last_synced_due_at, created_at, updated_at
	FROM event_mappings WHERE assignment_id = ?`

	var m models.EventMapping
	var due sql.NullString
	err := db.QueryRowContext(ctx, query, assignmentID).Scan(
		&m.AssignmentID, &m.CalendarEventID, &due, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	m.LastSyncedDueAt, err = parseDue(due)
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return &m, nil
}

// CreateMapping stores a new event mapping. It returns ErrMappingExists if a
// mapping for the assignment is already present, so callers can detect lost
// create races instead of duplicating events.
func (db *DB) CreateMapping(ctx context.Context, m *models.EventMapping) error {
	query := `
	INSERT INTO event_mappings (assignment_id, calendar_event_id, last_synced_due_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query, m.AssignmentID, m.CalendarEventID, formatDue(m.LastSyncedDueAt), now, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return ErrMappingExists
		}
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// UpdateMappingDueDate advances last_synced_due_at from prev to next. The
// write is conditional on the stored value still being prev; ErrMappingStale
// is returned when it is not, so the caller can re-read and retry.
func (db *DB) UpdateMappingDueDate(ctx context.Context, assignmentID string, prev, next *time.Time) error {
	query := `
	UPDATE event_mappings SET last_synced_due_at = ?, updated_at = ?
	WHERE assignment_id = ? AND last_synced_due_at IS ?
	`

	res, err := db.ExecContext(ctx, query, formatDue(next), time.Now().UTC(), assignmentID, formatDue(prev))
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	if affected == 0 {
		return ErrMappingStale
	}

	return nil
}

// SaveToken stores an OAuth token blob for an account
func (db *DB) SaveToken(ctx context.Context, accountName string, token []byte) error {
	query := `
	INSERT INTO tokens (account_name, token)
	VALUES (?, ?)
	ON CONFLICT(account_name) DO UPDATE SET token = excluded.token
	`

	_, err := db.ExecContext(ctx, query, accountName, string(token))
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// GetToken returns the stored OAuth token blob for an account
func (db *DB) GetToken(ctx context.Context, accountName string) ([]byte, error) {
	var token string
	err := db.QueryRowContext(ctx, `SELECT token FROM tokens WHERE account_name = ?`, accountName).Scan(&token)
	if err == sql.ErrNoRows {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return []byte(token), nil
}

// GetLastSyncTime returns the last successful resync time for an
// organization, or the zero time if the organization has never been resynced
func (db *DB) GetLastSyncTime(ctx context.Context, organization string) (time.Time, error) {
	var lastSync time.Time
	err := db.QueryRowContext(ctx,
		`SELECT last_sync_time FROM sync_metadata WHERE organization = ?`, organization).Scan(&lastSync)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return lastSync, nil
}

// UpdateLastSyncTime records a successful resync for an organization
func (db *DB) UpdateLastSyncTime(ctx context.Context, organization string, t time.Time) error {
	query := `
	INSERT INTO sync_metadata (organization, last_sync_time)
	VALUES (?, ?)
	ON CONFLICT(organization) DO UPDATE SET last_sync_time = excluded.last_sync_time
	`

	_, err := db.ExecContext(ctx, query, organization, t.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last sync time: %w", err)
	}

	return nil
}

// Due dates are stored as RFC 3339 text in UTC so the conditional update can
// compare them with IS, which treats two NULLs as equal.
func formatDue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDue(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored due date %q: %w", s.String, err)
	}
	return &t, nil
}
