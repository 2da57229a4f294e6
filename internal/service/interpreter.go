// Package service contains the business logic behind the HTTP surface.
//
// THE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, orchestrates executor + locator
//	Executor (runtime layer) → runs code in a sandbox or subprocess
//
// Interpreter takes an executor.Executor (interface), never a concrete
// Docker client, so tests inject an in-memory fake and the server can
// swap the Docker sandbox for a local subprocess with one line in main.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/codeask/internal/apperror"
	"github.com/sakif/codeask/internal/executor"
	"github.com/sakif/codeask/internal/metrics"
	"github.com/sakif/codeask/internal/model"
)

// DefaultMaxCodeBytes bounds submitted code when no limit is configured.
const DefaultMaxCodeBytes = 64 * 1024

// Execution statuses used as metric labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// Locator attributes a failure trace to source lines.
type Locator interface {
	Locate(ctx context.Context, code, trace string) []int
}

// Interpreter runs submitted code and, on failure, locates the lines that
// caused it.
type Interpreter struct {
	exec         executor.Executor
	locator      Locator
	maxCodeBytes int
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewInterpreter creates an Interpreter. exec may be nil when no backend
// could be started; every call then reports the sandbox as unavailable.
func NewInterpreter(exec executor.Executor, loc Locator, maxCodeBytes int, logger *slog.Logger, m *metrics.Metrics) *Interpreter {
	if maxCodeBytes <= 0 {
		maxCodeBytes = DefaultMaxCodeBytes
	}
	return &Interpreter{
		exec:         exec,
		locator:      loc,
		maxCodeBytes: maxCodeBytes,
		logger:       logger,
		metrics:      m,
	}
}

// Available reports whether an execution backend is configured.
func (s *Interpreter) Available() bool {
	return s.exec != nil
}

// Execute runs code and reports whether it completed without raising.
//
// A script that raises is NOT an error here: it comes back as
// Success=false with the traceback in Output. An error means the request
// was invalid or the backend could not run it at all.
//
// Blank code is a valid program that prints nothing; it succeeds without
// reaching the backend.
func (s *Interpreter) Execute(ctx context.Context, code string) (model.ExecutionResult, error) {
	if err := s.validate(code); err != nil {
		return model.ExecutionResult{}, err
	}
	if strings.TrimSpace(code) == "" {
		s.metrics.RecordExecution(StatusSuccess, 0)
		return model.ExecutionResult{Success: true, Output: ""}, nil
	}
	if s.exec == nil {
		return model.ExecutionResult{}, apperror.Unavailable("sandbox")
	}

	start := time.Now()
	res, err := s.exec.Execute(ctx, executor.Request{Code: code})
	if err != nil {
		s.metrics.RecordExecution(StatusError, time.Since(start))
		s.logger.Error("execution backend failed", slog.String("error", err.Error()))
		if errors.Is(err, context.DeadlineExceeded) {
			return model.ExecutionResult{}, fmt.Errorf("executing code: %w", apperror.Timeout("execution"))
		}
		return model.ExecutionResult{}, fmt.Errorf("executing code: %w", apperror.Unavailable("sandbox"))
	}

	if res.Succeeded() {
		s.metrics.RecordExecution(StatusSuccess, res.Duration)
		return model.ExecutionResult{Success: true, Output: res.Stdout}, nil
	}

	s.metrics.RecordExecution(StatusFailure, res.Duration)
	s.logger.Info("code raised",
		slog.Int("exitCode", res.ExitCode),
		slog.Bool("timedOut", res.TimedOut),
	)
	return model.ExecutionResult{Success: false, Output: failureOutput(res)}, nil
}

// Run executes code and builds the wire response: an empty error list and
// stdout on success, the located lines and the trace on failure.
func (s *Interpreter) Run(ctx context.Context, code string) (*model.CodeResponse, error) {
	res, err := s.Execute(ctx, code)
	if err != nil {
		return nil, err
	}

	if res.Success {
		return &model.CodeResponse{Error: []int{}, Result: res.Output}, nil
	}

	lines := []int{1}
	if s.locator != nil {
		lines = s.locator.Locate(ctx, code, res.Output)
	}
	return &model.CodeResponse{Error: lines, Result: res.Output}, nil
}

func (s *Interpreter) validate(code string) error {
	if len(code) > s.maxCodeBytes {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", s.maxCodeBytes))
	}
	return nil
}

func failureOutput(res *executor.Result) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	return fmt.Sprintf("process exited with status %d", res.ExitCode)
}
