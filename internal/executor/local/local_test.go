package local_test

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeask/internal/executor"
	"github.com/sakif/codeask/internal/executor/local"
)

func newTestExecutor(t *testing.T, timeout time.Duration) *local.Executor {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := local.New(local.Config{PythonPath: "python3", Timeout: timeout}, logger)
	require.NoError(t, err)
	return e
}

func TestNew_MissingInterpreter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := local.New(local.Config{PythonPath: "definitely-not-a-python-binary", Timeout: time.Second}, logger)
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	e := newTestExecutor(t, 5*time.Second)
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := e.Execute(ctx, executor.Request{Code: "print('hello')\nprint(1 + 1)"})
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
		assert.Equal(t, "hello\n2\n", res.Stdout)
		assert.Empty(t, res.Stderr)
	})

	t.Run("traceback on stderr", func(t *testing.T) {
		code := strings.Join([]string{
			"def f():",
			"    return {}['missing']",
			"f()",
		}, "\n")
		res, err := e.Execute(ctx, executor.Request{Code: code})
		require.NoError(t, err)
		assert.False(t, res.Succeeded())
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "Traceback (most recent call last)")
		assert.Contains(t, res.Stderr, `File "<string>", line 2`)
		assert.Contains(t, res.Stderr, "KeyError")
	})

	t.Run("does not leak server environment", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "super-secret")
		res, err := e.Execute(ctx, executor.Request{Code: "import os\nprint(os.environ.get('GEMINI_API_KEY', 'absent'))"})
		require.NoError(t, err)
		assert.Equal(t, "absent\n", res.Stdout)
	})

	t.Run("identical code yields identical output", func(t *testing.T) {
		code := "print(sum(range(10)))"
		first, err := e.Execute(ctx, executor.Request{Code: code})
		require.NoError(t, err)
		second, err := e.Execute(ctx, executor.Request{Code: code})
		require.NoError(t, err)
		assert.Equal(t, first.Stdout, second.Stdout)
	})
}

func TestExecute_Timeout(t *testing.T) {
	e := newTestExecutor(t, 500*time.Millisecond)

	res, err := e.Execute(context.Background(), executor.Request{Code: "while True: pass"})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, executor.TimeoutExitCode, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out")
}

func TestExecute_CallerCancelled(t *testing.T) {
	e := newTestExecutor(t, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := e.Execute(ctx, executor.Request{Code: "import time\ntime.sleep(3)"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
