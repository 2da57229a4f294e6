package docker

import (
	"time"

	"github.com/sakif/codeask/internal/config"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Docker image to use for execution.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides sensible defaults for a Python sandbox.
func DefaultConfig() Config {
	return FromConfig(config.DefaultConfig().Executor)
}

// FromConfig maps the application's executor settings onto the sandbox.
func FromConfig(c config.ExecutorConfig) Config {
	return Config{
		Image:       c.Image,
		MemoryLimit: c.MemoryMB * 1024 * 1024,
		CPULimit:    c.CPULimit,
		Timeout:     c.Timeout,
		PoolSize:    c.PoolSize,
	}
}
