package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/fieldops/internal/model"
)

type createTaskRequest struct {
	Title string `json:"title"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.tasks.CreateTask(r.Context(), req.Title); err != nil {
		h.writeMutationError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) startTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.StartTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeMutationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.CompleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeMutationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeMutationError(w http.ResponseWriter, err error) {
	var mutErr *model.MutationError
	if !errors.As(err, &mutErr) {
		mutErr = model.NewMutationError(err)
	}

	code := mutationStatus(mutErr.Reason)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Web handler: task mutation failed",
			"reason", mutErr.Reason,
			"error", err.Error())
	}

	writeJSON(w, code, map[string]string{
		"error":  mutErr.Err.Error(),
		"reason": string(mutErr.Reason),
	})
}

func mutationStatus(reason model.MutationReason) int {
	switch reason {
	case model.MutationReasonValidation:
		return http.StatusBadRequest
	case model.MutationReasonPermissionDenied:
		return http.StatusForbidden
	case model.MutationReasonNotFound:
		return http.StatusNotFound
	case model.MutationReasonNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
