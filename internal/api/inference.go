package api

import (
	"context"
	"net/http"

	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/inference"
)

type inferenceRequest struct {
	Task  inference.TaskID `json:"task"`
	Input string           `json:"input"`
}

type selectTaskRequest struct {
	Task inference.TaskID `json:"task"`
}

func (h *Handler) orchestrator(r *http.Request) *inference.Orchestrator {
	return h.inferences.Get(identity.KeyFromContext(r.Context()))
}

// ListTasks returns the inference task catalog.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"tasks":   inference.Tasks(),
		"default": inference.DefaultTask,
	})
}

// GetInference returns the current tab's result slot.
func (h *Handler) GetInference(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"inference": h.orchestrator(r).Snapshot(),
	})
}

// SelectTask changes the task used when a submission names none.
func (h *Handler) SelectTask(w http.ResponseWriter, r *http.Request) {
	var req selectTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"inference": h.orchestrator(r).Select(req.Task),
	})
}

// SubmitInference runs one task and waits for the result. A client
// disconnect does not cancel the request; its result still lands in the slot.
func (h *Handler) SubmitInference(w http.ResponseWriter, r *http.Request) {
	var req inferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.orchestrator(r).Submit(context.WithoutCancel(r.Context()), req.Task, req.Input)
	respond(w, err, map[string]interface{}{"inference": snap})
}
