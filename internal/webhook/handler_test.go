package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edusync/classroom-calendar-sync/internal/models"
	"github.com/edusync/classroom-calendar-sync/internal/sync"
)

const testSecret = "webhook-secret"

const repoCreatedPayload = `{
	"action": "created",
	"repository": {
		"name": "hw1-alice",
		"full_name": "classroom-org/hw1-alice",
		"html_url": "https://github.com/classroom-org/hw1-alice",
		"created_at": "2024-09-01T10:00:00Z",
		"owner": {"login": "classroom-org"}
	}
}`

func TestHandlerReconcilesAcceptedAssignment(t *testing.T) {
	reconciler := &stubReconciler{result: sync.ResultCreated}
	rec := deliver(t, reconciler, "repository", repoCreatedPayload, testSecret)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, reconciler.calls)
	require.Equal(t, "classroom-org/hw1-alice", reconciler.last.ID)
	require.Equal(t, "hw1-alice", reconciler.last.Title)
	require.Equal(t, "classroom-org", reconciler.last.Course)
	require.Equal(t, "https://github.com/classroom-org/hw1-alice", reconciler.last.RepoLink)
	require.True(t, reconciler.last.AcceptedAt.Equal(time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)))
	require.Nil(t, reconciler.last.DueAt)
	require.JSONEq(t, `{"status":"created","assignment_id":"classroom-org/hw1-alice"}`, rec.Body.String())
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	reconciler := &stubReconciler{result: sync.ResultCreated}
	rec := deliver(t, reconciler, "repository", repoCreatedPayload, "wrong-secret")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 0, reconciler.calls)
}

func TestHandlerIgnoresOtherRepositoryActions(t *testing.T) {
	reconciler := &stubReconciler{result: sync.ResultCreated}
	payload := `{"action": "archived", "repository": {"name": "hw1-alice", "full_name": "classroom-org/hw1-alice", "owner": {"login": "classroom-org"}}}`
	rec := deliver(t, reconciler, "repository", payload, testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, reconciler.calls)
}

func TestHandlerAnswersPing(t *testing.T) {
	reconciler := &stubReconciler{}
	rec := deliver(t, reconciler, "ping", `{"zen": "Keep it logically awesome."}`, testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, reconciler.calls)
}

func TestHandlerIgnoresUnrelatedEvents(t *testing.T) {
	reconciler := &stubReconciler{}
	rec := deliver(t, reconciler, "push", `{"ref": "refs/heads/main"}`, testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, reconciler.calls)
}

func TestHandlerMapsReconcilerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "validation", err: &sync.ValidationError{Field: "title", Reason: "must not be empty"}, status: http.StatusBadRequest},
		{name: "conflict", err: &sync.ConflictError{AssignmentID: "classroom-org/hw1-alice"}, status: http.StatusConflict},
		{name: "upstream", err: &sync.UpstreamError{Op: "calendar: create event", Err: errors.New("boom")}, status: http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reconciler := &stubReconciler{err: tc.err}
			rec := deliver(t, reconciler, "repository", repoCreatedPayload, testSecret)

			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, 1, reconciler.calls)
		})
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	handler := NewHandler([]byte(testSecret), &stubReconciler{})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func deliver(t *testing.T, reconciler Reconciler, eventType, payload, secret string) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewHandler([]byte(testSecret), reconciler)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-Hub-Signature-256", signPayload([]byte(payload), secret))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type stubReconciler struct {
	result sync.Result
	err    error
	calls  int
	last   *models.Assignment
}

func (s *stubReconciler) Reconcile(_ context.Context, assignment *models.Assignment) (sync.Result, error) {
	s.calls++
	s.last = assignment
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}
