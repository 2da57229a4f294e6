package docker_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeask/internal/executor"
	"github.com/sakif/codeask/internal/executor/docker"
)

func TestDockerExecutor(t *testing.T) {
	// Skip in CI environments or when asked to: this needs a docker daemon.
	if os.Getenv("CI") != "" || os.Getenv("SKIP_DOCKER_TESTS") != "" {
		t.Skip("Skipping docker test")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	// reduce pool size for local test speed
	cfg.PoolSize = 1

	exec, err := docker.New(cfg, logger)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer exec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	t.Run("successful execution", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.Request{
			Code: `print("Hello from test sandbox!")`,
		})
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
		assert.Equal(t, "Hello from test sandbox!\n", res.Stdout)
		assert.Empty(t, res.Stderr)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("runtime error names <string> frames", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.Request{
			Code: strings.Join([]string{
				"x = 1",
				"y = 0",
				"print(x / y)",
			}, "\n"),
		})
		require.NoError(t, err)
		assert.False(t, res.Succeeded())
		assert.Contains(t, res.Stderr, `File "<string>", line 3`)
		assert.Contains(t, res.Stderr, "ZeroDivisionError")
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.Request{
			Code: `print("Missing parenthesis"`,
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Empty(t, res.Stdout)
	})

	t.Run("no network", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.Request{
			Code: "import urllib.request\nurllib.request.urlopen('http://example.com', timeout=2)",
		})
		require.NoError(t, err)
		assert.False(t, res.Succeeded())
	})

	t.Run("infinite loop timeout", func(t *testing.T) {
		fastCfg := cfg
		fastCfg.Timeout = 2 * time.Second
		fastExec, err := docker.New(fastCfg, logger)
		require.NoError(t, err)
		defer fastExec.Close()

		res, err := fastExec.Execute(ctx, executor.Request{Code: `while True: pass`})
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.Equal(t, executor.TimeoutExitCode, res.ExitCode)
		assert.Contains(t, res.Stderr, "timed out")
	})
}
