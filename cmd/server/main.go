// Package main is the entry point for the codeask server.
//
// MAIN PACKAGE IN GO:
// main's job is to:
// 1. Read configuration (.env, optional YAML file, environment)
// 2. Create dependencies (logger, executor, model client, services)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/media, ...).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/codeask/internal/config"
	"github.com/sakif/codeask/internal/executor"
	"github.com/sakif/codeask/internal/executor/docker"
	"github.com/sakif/codeask/internal/executor/local"
	"github.com/sakif/codeask/internal/llm"
	"github.com/sakif/codeask/internal/locator"
	"github.com/sakif/codeask/internal/media"
	"github.com/sakif/codeask/internal/metrics"
	"github.com/sakif/codeask/internal/server"
	"github.com/sakif/codeask/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	// A missing .env file is normal in production; the real environment wins
	// anyway because godotenv.Load never overrides variables already set.
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("failed to read .env file", slog.String("error", envErr.Error()))
	}

	m := metrics.New()
	ctx := context.Background()

	// === 3. INITIALIZE EXECUTOR ===
	// The executor is optional: the server starts without it and
	// /code-interpreter answers 503 until it is fixed.
	exec, executorName, closeExec := newExecutor(cfg, logger, m)
	defer closeExec()

	// === 4. INITIALIZE MODEL CLIENT ===
	// Without an API key the locator always uses its trace fallback and
	// /ask always returns the sentinel with a config error.
	var client llm.Client
	if cfg.LLM.APIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Timeout)
		if err != nil {
			logger.Warn("generative model unavailable", slog.String("error", err.Error()))
		} else {
			client = gemini
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set: error lines come from trace parsing only and /ask is disabled")
	}

	// === 5. BUILD SERVICES ===
	loc := locator.New(client, cfg.LLM.CodeModel, logger, m)
	interpreter := service.NewInterpreter(exec, loc, cfg.Executor.MaxCodeBytes, logger, m)

	downloader := media.NewYtDlp(cfg.Media.YtDlpPath, cfg.Media.DownloadTimeout)
	finder := media.NewFinder(downloader, client, media.ConfigFrom(cfg), logger, m)

	// === 6. CREATE AND START THE SERVER ===
	srv := server.New(cfg, server.Deps{
		Interpreter:     interpreter,
		Finder:          finder,
		ExecutorName:    executorName,
		ModelConfigured: client != nil,
		Metrics:         m,
	}, logger)

	// Start blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		closeExec()
		os.Exit(1)
	}
}

// newExecutor starts the configured backend. On failure it returns a nil
// executor and an empty name, which the services report as unavailable.
func newExecutor(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (executor.Executor, string, func()) {
	noop := func() {}

	switch cfg.Executor.Backend {
	case config.BackendLocal:
		exec, err := local.New(local.Config{
			PythonPath: cfg.Executor.PythonPath,
			Timeout:    cfg.Executor.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("local executor unavailable: /code-interpreter will return 503",
				slog.String("error", err.Error()),
			)
			return nil, "", noop
		}
		return exec, config.BackendLocal, noop

	default:
		exec, err := docker.New(docker.FromConfig(cfg.Executor), logger)
		if err != nil {
			logger.Warn("Docker executor unavailable: /code-interpreter will return 503",
				slog.String("error", err.Error()),
			)
			return nil, "", noop
		}
		m.RegisterPoolGauge(exec.Idle)

		closed := false
		return exec, config.BackendDocker, func() {
			if closed {
				return
			}
			closed = true
			if err := exec.Close(); err != nil {
				logger.Error("failed to close docker executor", slog.String("error", err.Error()))
			}
		}
	}
}
