package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Pool manages a pool of pre-warmed Docker containers for fast code execution.
//
// Containers are handed out at most once: the executor removes each one
// after use and the manager goroutine tops the pool back up.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool initializes a new container pool wrapper.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, cfg.PoolSize),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool with fresh containers in the background.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting docker container pool manager", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and cleans up all pre-warmed containers.
// It is safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down docker container pool")
		close(p.done)
		p.wg.Wait()

		// Drain channel and remove surviving containers
		for {
			select {
			case id := <-p.containers:
				p.removeContainer(id)
			default:
				return
			}
		}
	})
}

// Idle returns the number of containers ready to be handed out.
func (p *Pool) Idle() int {
	return len(p.containers)
}

// GetContainer returns a ready-to-use container ID from the pool.
// It blocks until one is available, the pool stops, or ctx is canceled.
func (p *Pool) GetContainer(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", ErrPoolStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manager continuously ensures the pool is at capacity.
func (p *Pool) manager() {
	defer p.wg.Done()

	// Retry container creation at 1s, 2s, 4s ... capped at 30s, forever.
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = 30 * time.Second
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		if len(p.containers) >= cap(p.containers) {
			// Pool is full, wait a bit
			p.sleep(100 * time.Millisecond)
			continue
		}

		id, err := p.createContainer()
		if err != nil {
			wait := retry.NextBackOff()
			p.logger.Error("failed to create pre-warmed container",
				slog.String("error", err.Error()),
				slog.Duration("retryIn", wait),
			)
			p.sleep(wait)
			continue
		}
		retry.Reset()

		// Try to push to channel, or delete if shutting down
		select {
		case p.containers <- id:
		case <-p.done:
			p.removeContainer(id)
			return
		}
	}
}

// sleep waits for d or until the pool is stopped.
func (p *Pool) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.done:
	}
}

// createContainer starts a locked-down container running `sleep infinity`.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pids := int64(64)
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    p.config.MemoryLimit,
			NanoCPUs:  int64(p.config.CPULimit * 1e9),
			PidsLimit: &pids,
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
		// Scripts may write scratch files, but nothing executable.
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=16m",
		},
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:           p.config.Image,
		Cmd:             []string{"sleep", "infinity"},
		User:            "nobody",
		NetworkDisabled: true,
		Env:             []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"},
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeContainer(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// removeContainer force removes a container by ID.
func (p *Pool) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove container",
			slog.String("id", shortID(id)),
			slog.String("error", err.Error()),
		)
	}
}
