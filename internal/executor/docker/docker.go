// Package docker runs submitted code inside throwaway Docker containers.
//
// SANDBOX MODEL:
// Every execution gets a fresh container taken from a pool of pre-warmed
// ones (see pool.go). The container has no network, a read-only root
// filesystem, a small tmpfs at /tmp, memory and CPU limits, and runs as
// "nobody". After the execution it is force-removed, so one script can
// never observe what another one left behind.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/codeask/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the image is pulled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	if _, err := io.Copy(io.Discard, reader); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to read image pull progress: %w", err)
	}
	logger.Info("docker image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Idle reports how many pre-warmed containers are waiting in the pool.
func (e *Executor) Idle() int {
	return e.pool.Idle()
}

// Execute runs the provided Python code in a sandboxed Docker container.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	start := time.Now()

	// Get a pre-warmed container ID from the pool
	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Always ensure we clean up the container that we acquired
	defer e.pool.removeContainer(containerID)

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	// The container idles on `sleep infinity`; the code runs through
	// `docker exec`. Code reaches python via argv, so the traceback names
	// it "<string>", which the error locator keys on.
	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   "/tmp",
		Cmd:          []string{"python", "-B", "-c", req.Code},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the single attach stream into stdout and stderr
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	res := &executor.Result{}

	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		res.ExitCode = inspectResp.ExitCode
	case <-executeCtx.Done():
		// The caller went away: report that instead of a timeout.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Closing the hijacked connection unblocks StdCopy; wait for it so
		// the buffers are no longer written to.
		attachResp.Close()
		<-done
		res.ExitCode = executor.TimeoutExitCode
		res.TimedOut = true
		stderr.WriteString(executor.TimeoutMessage)
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Duration = time.Since(start)

	e.logger.Debug("docker execution finished",
		slog.String("container", shortID(containerID)),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}

// ErrPoolStopped is returned by GetContainer once the pool is shut down.
var ErrPoolStopped = errors.New("docker: container pool stopped")

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
