package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/edusync/classroom-calendar-sync/internal/models"
)

// AssignmentSource lists an organization's assignment repositories. The since
// argument lets implementations skip repositories created before the last
// completed resync; passing the zero time lists everything.
type AssignmentSource interface {
	ListOrganizationRepos(ctx context.Context, organization string, since time.Time) ([]*models.Assignment, error)
}

// MetadataStore records the resync watermark per organization.
type MetadataStore interface {
	GetLastSyncTime(ctx context.Context, organization string) (time.Time, error)
	UpdateLastSyncTime(ctx context.Context, organization string, t time.Time) error
}

// Resyncer re-drives an organization's assignment repositories through the
// reconciler, catching up on webhook deliveries that were missed.
type Resyncer struct {
	meta       MetadataStore
	source     AssignmentSource
	reconciler *Reconciler
}

// NewResyncer creates a new resyncer
func NewResyncer(meta MetadataStore, source AssignmentSource, reconciler *Reconciler) *Resyncer {
	return &Resyncer{
		meta:       meta,
		source:     source,
		reconciler: reconciler,
	}
}

// ResyncOrganization reconciles every assignment repository in the
// organization created since the last completed resync. Individual failures
// are logged and counted rather than aborting the pass; the watermark only
// advances when the whole pass succeeded.
func (s *Resyncer) ResyncOrganization(ctx context.Context, organization string) error {
	lastSync, err := s.meta.GetLastSyncTime(ctx, organization)
	if err != nil {
		return fmt.Errorf("failed to get last sync time for %s: %w", organization, err)
	}

	log.Printf("Resyncing organization %s (last sync: %v)", organization, lastSync)
	startTime := time.Now()

	assignments, err := s.source.ListOrganizationRepos(ctx, organization, lastSync)
	if err != nil {
		return fmt.Errorf("failed to list repositories for %s: %w", organization, err)
	}

	log.Printf("Found %d assignment repositories to reconcile", len(assignments))

	counts := make(map[Result]int)
	failed := 0
	for _, assignment := range assignments {
		result, err := s.reconciler.Reconcile(ctx, assignment)
		if err != nil {
			log.Printf("Failed to reconcile %s: %v", assignment.ID, err)
			failed++
			continue
		}
		counts[result]++
	}

	log.Printf("Resync of %s finished: %d created, %d updated, %d unchanged, %d failed",
		organization, counts[ResultCreated], counts[ResultUpdated], counts[ResultUnchanged], failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d assignments failed to reconcile", failed, len(assignments))
	}

	if err := s.meta.UpdateLastSyncTime(ctx, organization, startTime); err != nil {
		return fmt.Errorf("failed to update last sync time for %s: %w", organization, err)
	}

	return nil
}
