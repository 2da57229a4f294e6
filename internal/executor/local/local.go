// Package local runs submitted code as a python subprocess on the host.
//
// WARNING: this backend is NOT a sandbox. The code runs with the privileges
// of the server process and has full filesystem and network access. It
// exists for development machines without Docker; production deployments
// must use the docker backend.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/sakif/codeask/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Config holds the configuration for local execution.
type Config struct {
	// PythonPath is the interpreter to run, looked up on PATH if not absolute.
	PythonPath string
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
}

// Executor implements executor.Executor with os/exec.
type Executor struct {
	python  string
	timeout time.Duration
	logger  *slog.Logger
}

// New resolves the interpreter and returns an Executor.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	python, err := exec.LookPath(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("local: python interpreter %q not found: %w", cfg.PythonPath, err)
	}

	logger.Warn("local executor runs submitted code UNSANDBOXED on this host",
		slog.String("python", python),
	)

	return &Executor{
		python:  python,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Execute runs the code with `python -c` in a scratch directory that is
// removed afterwards.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "codeask-exec-")
	if err != nil {
		return nil, fmt.Errorf("local: creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(runCtx, e.python, "-B", "-c", req.Code)
	cmd.Dir = dir
	// A minimal environment: no server secrets (GEMINI_API_KEY...) leak
	// into user code.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + dir,
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not hang Wait forever.
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()

	res := &executor.Result{}

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = executor.TimeoutExitCode
		res.TimedOut = true
		stderr.WriteString(executor.TimeoutMessage)
	case runErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("local: running python: %w", runErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Duration = time.Since(start)

	e.logger.Debug("local execution finished",
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}
