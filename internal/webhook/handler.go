// Package webhook receives GitHub webhook deliveries and feeds accepted
// assignments into the reconciler.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/go-github/v57/github"

	"github.com/edusync/classroom-calendar-sync/internal/models"
	"github.com/edusync/classroom-calendar-sync/internal/observability"
	"github.com/edusync/classroom-calendar-sync/internal/sync"
)

// Reconciler is the part of the sync package the handler needs.
type Reconciler interface {
	Reconcile(ctx context.Context, assignment *models.Assignment) (sync.Result, error)
}

// Handler verifies and dispatches GitHub webhook deliveries. GitHub Classroom
// signals an accepted assignment by creating the student's repository, so the
// handler reacts to "repository" events with action "created".
type Handler struct {
	secret     []byte
	reconciler Reconciler
}

// NewHandler builds a Handler. The secret must match the webhook secret
// configured on GitHub; deliveries with a bad signature are rejected.
func NewHandler(secret []byte, reconciler Reconciler) *Handler {
	return &Handler{
		secret:     secret,
		reconciler: reconciler,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.handleDelivery)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_signature", "payload signature validation failed")
		return
	}

	eventType := github.WebHookType(r)
	observability.RecordDelivery(eventType)

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "unable to parse webhook payload")
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		writeJSON(w, http.StatusOK, deliveryResponse{Status: "pong"})
	case *github.RepositoryEvent:
		h.handleRepositoryEvent(w, r, e)
	default:
		writeJSON(w, http.StatusOK, deliveryResponse{Status: "ignored"})
	}
}

func (h *Handler) handleRepositoryEvent(w http.ResponseWriter, r *http.Request, event *github.RepositoryEvent) {
	if event.GetAction() != "created" {
		writeJSON(w, http.StatusOK, deliveryResponse{Status: "ignored"})
		return
	}

	repo := event.GetRepo()
	assignment := &models.Assignment{
		ID:         repo.GetFullName(),
		Title:      repo.GetName(),
		Course:     repo.GetOwner().GetLogin(),
		RepoLink:   repo.GetHTMLURL(),
		AcceptedAt: repo.GetCreatedAt().Time,
	}

	result, err := h.reconciler.Reconcile(r.Context(), assignment)
	if err != nil {
		h.writeReconcileError(w, assignment.ID, err)
		return
	}

	log.Printf("Assignment %s reconciled: %s", assignment.ID, result)
	observability.RecordReconcile(string(result))
	writeJSON(w, http.StatusAccepted, deliveryResponse{
		Status:       string(result),
		AssignmentID: assignment.ID,
	})
}

// writeReconcileError maps the reconciler's error taxonomy onto HTTP status
// codes. Upstream failures answer 502 so GitHub schedules a redelivery;
// validation failures answer 400 so it does not.
func (h *Handler) writeReconcileError(w http.ResponseWriter, assignmentID string, err error) {
	log.Printf("Failed to reconcile %s: %v", assignmentID, err)

	var validationErr *sync.ValidationError
	var conflictErr *sync.ConflictError
	switch {
	case errors.As(err, &validationErr):
		observability.RecordReconcileError("validation")
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.As(err, &conflictErr):
		observability.RecordReconcileError("conflict")
		writeError(w, http.StatusConflict, "conflict", conflictErr.Error())
	default:
		observability.RecordReconcileError("upstream")
		writeError(w, http.StatusBadGateway, "upstream_failed", "calendar or store call failed")
	}
}

type deliveryResponse struct {
	Status       string `json:"status"`
	AssignmentID string `json:"assignment_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
