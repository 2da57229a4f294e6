// Package executor defines the contract for running submitted Python code.
//
// Implementations live in sub-packages: docker (sandboxed, the default) and
// local (a plain host subprocess, unsandboxed).
package executor

import (
	"context"
	"time"
)

// TimeoutExitCode is reported when an execution is killed for running too
// long, mirroring the unix timeout(1) command.
const TimeoutExitCode = 124

// TimeoutMessage is appended to stderr when an execution times out.
const TimeoutMessage = "\nExecution timed out.\n"

// Request represents a request to execute Python code.
type Request struct {
	Code string `json:"code"`
}

// Result represents the raw output and status of one execution.
//
// A script that raises is NOT an error at this level: it produces a Result
// with a non-zero ExitCode and the traceback on Stderr.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	TimedOut bool          `json:"timedOut"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the script ran to completion without raising.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Executor runs code in some environment. A returned error means the
// environment itself failed (sandbox unavailable, exec could not start).
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}
