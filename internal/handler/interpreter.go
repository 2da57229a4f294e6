package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/codeask/internal/model"
)

// CodeRunner is the service surface the interpreter endpoint needs.
// *service.Interpreter satisfies it.
type CodeRunner interface {
	Run(ctx context.Context, code string) (*model.CodeResponse, error)
}

// InterpreterHandler serves the code interpreter endpoint.
type InterpreterHandler struct {
	runner       CodeRunner
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewInterpreterHandler creates a new InterpreterHandler.
func NewInterpreterHandler(runner CodeRunner, maxBodyBytes int64, logger *slog.Logger) *InterpreterHandler {
	return &InterpreterHandler{
		runner:       runner,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleCodeInterpreter runs submitted Python code.
//
// HTTP: POST /code-interpreter
// REQUEST BODY: {"code": "print('hi')"}
//
// RESPONSE FORMAT (always 200 once the code ran, even if it raised):
//
//	{"error": [],  "result": "hi\n"}                     ← success
//	{"error": [2], "result": "Traceback (most recent…"}  ← failure
func (h *InterpreterHandler) HandleCodeInterpreter(w http.ResponseWriter, r *http.Request) {
	var req model.CodeRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		h.logger.Warn("invalid code interpreter request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp, err := h.runner.Run(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
