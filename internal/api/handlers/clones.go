// Package handlers implements the HTTP handlers for the clone service API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mirrorlabs/siteclone/internal/clone"
	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/store"
	"github.com/mirrorlabs/siteclone/internal/validation"
	"github.com/mirrorlabs/siteclone/pkg/logger"
)

// CloneHandler handles clone job requests.
type CloneHandler struct {
	store      store.Store
	controller *clone.Controller
	redeployer *clone.Redeployer
	logger     *logger.Logger
}

// NewCloneHandler creates a new clone handler.
func NewCloneHandler(st store.Store, controller *clone.Controller, redeployer *clone.Redeployer, log *logger.Logger) *CloneHandler {
	return &CloneHandler{
		store:      st,
		controller: controller,
		redeployer: redeployer,
		logger:     log,
	}
}

// cloneRequest is the request body for POST /api/clone.
type cloneRequest struct {
	URL string `json:"url"`
}

// Clone handles POST /api/clone. It accepts the job, persists the pending
// record and streams run progress back as Server-Sent Events.
func (h *CloneHandler) Clone(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := validation.ValidateCloneURL(req.URL); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	job := &models.CloneJob{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.Jobs().Create(r.Context(), job); err != nil {
		log.Error("creating job record failed", "error", err)
		WriteInternalError(w, "Failed to create clone job")
		return
	}

	log.Info("clone job accepted", "job_id", job.ID, "url", job.URL)

	// The run outlives the request if the subscriber disconnects, so it
	// gets a context that survives cancellation, tagged with the job ID.
	runCtx := logger.WithJobID(context.WithoutCancel(r.Context()), job.ID)
	stream := clone.NewStream()
	go h.controller.Run(runCtx, job, stream)

	streamEvents(w, r, stream, h.logger.WithContext(runCtx).Logger)
}

// List handles GET /api/clones.
func (h *CloneHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Jobs().List(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("listing jobs failed", "error", err)
		WriteInternalError(w, "Failed to list clone jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"clones": summaries})
}

// Get handles GET /api/clones/{cloneID}.
func (h *CloneHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cloneID")

	job, err := h.store.Jobs().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Clone job not found")
			return
		}
		h.logger.WithContext(r.Context()).Error("fetching job failed", "job_id", id, "error", err)
		WriteInternalError(w, "Failed to fetch clone job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// Delete handles DELETE /api/clones/{cloneID}.
func (h *CloneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())
	id := chi.URLParam(r, "cloneID")

	if err := h.store.Jobs().Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Clone job not found")
			return
		}
		log.Error("deleting job failed", "job_id", id, "error", err)
		WriteInternalError(w, "Failed to delete clone job")
		return
	}

	log.Info("clone job deleted", "job_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Redeploy handles POST /api/clones/{cloneID}/redeploy. Preconditions are
// checked before streaming starts so failures map to proper status codes.
func (h *CloneHandler) Redeploy(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())
	id := chi.URLParam(r, "cloneID")

	job, err := h.redeployer.Prepare(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			WriteNotFound(w, "Clone job not found")
		case errors.Is(err, clone.ErrNotReady):
			WriteConflict(w, "Clone job has no deployable artifacts")
		case errors.Is(err, clone.ErrSandboxUnavailable):
			WriteConflict(w, "Sandbox provider is not configured")
		default:
			log.Error("redeploy precondition check failed", "job_id", id, "error", err)
			WriteInternalError(w, "Failed to prepare redeploy")
		}
		return
	}

	log.Info("redeploy accepted", "job_id", job.ID, "url", job.URL)

	runCtx := logger.WithJobID(context.WithoutCancel(r.Context()), job.ID)
	stream := clone.NewStream()
	go h.redeployer.Run(runCtx, job, stream)

	streamEvents(w, r, stream, h.logger.WithContext(runCtx).Logger)
}
