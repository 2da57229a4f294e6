package handler

import "net/http"

// HealthResponse reports which backends the server is running with.
type HealthResponse struct {
	Status   string `json:"status"`
	Executor string `json:"executor"` // "docker", "local" or "unavailable"
	Model    bool   `json:"model"`    // a generative model is configured
}

// HealthHandler serves liveness checks.
type HealthHandler struct {
	executor string
	model    bool
}

// NewHealthHandler creates a HealthHandler. executor is the active backend
// name, or "" when none could be started.
func NewHealthHandler(executor string, model bool) *HealthHandler {
	if executor == "" {
		executor = "unavailable"
	}
	return &HealthHandler{executor: executor, model: model}
}

// HandleHealth always answers 200 while the process is serving; degraded
// backends show up in the body, not the status.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Executor: h.executor,
		Model:    h.model,
	})
}
