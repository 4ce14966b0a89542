package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edusync/classroom-calendar-sync/internal/models"
)

func TestResyncReconcilesEveryRepoAndAdvancesWatermark(t *testing.T) {
	store := newFakeStore()
	cal := newFakeCalendar()
	reconciler := NewReconciler(store, cal, 0)

	due := time.Date(2024, 9, 1, 23, 59, 0, 0, time.UTC)
	source := &stubSource{assignments: []*models.Assignment{
		{ID: "org/hw1-alice", Title: "hw1-alice", Course: "org", DueAt: &due},
		{ID: "org/hw1-bob", Title: "hw1-bob", Course: "org"},
	}}
	meta := &stubMetadata{}

	resyncer := NewResyncer(meta, source, reconciler)
	err := resyncer.ResyncOrganization(context.Background(), "org")
	require.NoError(t, err)

	require.Len(t, store.mappings, 2)
	require.False(t, meta.lastSync.IsZero())
	require.Equal(t, "org", source.listedOrg)
}

func TestResyncSecondPassIsIdempotent(t *testing.T) {
	store := newFakeStore()
	cal := newFakeCalendar()
	reconciler := NewReconciler(store, cal, 0)

	source := &stubSource{assignments: []*models.Assignment{
		{ID: "org/hw1-alice", Title: "hw1-alice", Course: "org"},
	}}
	meta := &stubMetadata{}
	resyncer := NewResyncer(meta, source, reconciler)

	require.NoError(t, resyncer.ResyncOrganization(context.Background(), "org"))
	callsAfterFirst := cal.callCount()

	require.NoError(t, resyncer.ResyncOrganization(context.Background(), "org"))
	require.Equal(t, callsAfterFirst, cal.callCount())
	require.Len(t, store.mappings, 1)
}

func TestResyncFailureKeepsWatermark(t *testing.T) {
	store := newFakeStore()
	cal := newFakeCalendar()
	cal.createErr = errors.New("calendar unavailable")
	reconciler := NewReconciler(store, cal, 0)

	source := &stubSource{assignments: []*models.Assignment{
		{ID: "org/hw1-alice", Title: "hw1-alice", Course: "org"},
	}}
	meta := &stubMetadata{}
	resyncer := NewResyncer(meta, source, reconciler)

	err := resyncer.ResyncOrganization(context.Background(), "org")
	require.Error(t, err)
	require.True(t, meta.lastSync.IsZero())
}

type stubSource struct {
	assignments []*models.Assignment
	listedOrg   string
	err         error
}

func (s *stubSource) ListOrganizationRepos(_ context.Context, organization string, _ time.Time) ([]*models.Assignment, error) {
	s.listedOrg = organization
	return s.assignments, s.err
}

type stubMetadata struct {
	lastSync time.Time
}

func (m *stubMetadata) GetLastSyncTime(_ context.Context, _ string) (time.Time, error) {
	return m.lastSync, nil
}

func (m *stubMetadata) UpdateLastSyncTime(_ context.Context, _ string, t time.Time) error {
	m.lastSync = t
	return nil
}
