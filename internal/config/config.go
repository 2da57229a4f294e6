// Package config loads the service configuration.
//
// LAYERING:
// Values are resolved in three steps, each overriding the previous one:
//  1. DefaultConfig():          sensible defaults, enough to run locally
//  2. an optional YAML file:    for deployments that prefer a file
//  3. environment variables:    PORT, GEMINI_API_KEY, ... (12-factor style)
//
// The API key is normally only ever set through the environment (or a .env
// file loaded by main), never committed in YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Executor backends.
const (
	BackendDocker = "docker"
	BackendLocal  = "local"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Executor ExecutorConfig `yaml:"executor"`
	LLM      LLMConfig      `yaml:"llm"`
	Media    MediaConfig    `yaml:"media"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ExecutorConfig controls how submitted code is run.
type ExecutorConfig struct {
	Backend      string        `yaml:"backend"` // "docker" (sandboxed) or "local" (unsandboxed subprocess)
	Image        string        `yaml:"image"`
	MemoryMB     int64         `yaml:"memory_mb"`
	CPULimit     float64       `yaml:"cpu_limit"`
	PoolSize     int           `yaml:"pool_size"`
	Timeout      time.Duration `yaml:"timeout"`
	PythonPath   string        `yaml:"python_path"`
	MaxCodeBytes int           `yaml:"max_code_bytes"`
}

// LLMConfig configures the generative model client.
// An empty APIKey disables every model call; the error locator then always
// uses its trace-parsing fallback and /ask always returns the sentinel.
type LLMConfig struct {
	APIKey     string        `yaml:"api_key"`
	CodeModel  string        `yaml:"code_model"`
	MediaModel string        `yaml:"media_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MediaConfig configures the /ask pipeline.
type MediaConfig struct {
	YtDlpPath       string        `yaml:"ytdlp_path"`
	WorkDir         string        `yaml:"work_dir"`
	Timeout         time.Duration `yaml:"timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxInterval time.Duration `yaml:"poll_max_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    6 * time.Minute, // > media.timeout, /ask is slow
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  1 << 20, // 1MB
			AllowedOrigins:  []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Executor: ExecutorConfig{
			Backend:      BackendDocker,
			Image:        "python:3.12-alpine",
			MemoryMB:     128,
			CPULimit:     0.5,
			PoolSize:     3,
			Timeout:      5 * time.Second,
			PythonPath:   "python3",
			MaxCodeBytes: 64 << 10,
		},
		LLM: LLMConfig{
			CodeModel:  "gemini-2.0-flash",
			MediaModel: "gemini-2.0-flash",
			Timeout:    30 * time.Second,
		},
		Media: MediaConfig{
			YtDlpPath:       "yt-dlp",
			WorkDir:         os.TempDir(),
			Timeout:         5 * time.Minute,
			DownloadTimeout: 2 * time.Minute,
			PollInterval:    2 * time.Second,
			PollMaxInterval: 15 * time.Second,
			PollMaxAttempts: 20,
			PollTimeout:     2 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the process environment. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. getenv is
// os.Getenv in production; tests pass a map lookup instead.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v) // Atoi = ASCII to Integer
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("EXECUTOR"); v != "" {
		c.Executor.Backend = v
	}
	if v := getenv("PYTHON_PATH"); v != "" {
		c.Executor.PythonPath = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv("CODE_MODEL"); v != "" {
		c.LLM.CodeModel = v
	}
	if v := getenv("MEDIA_MODEL"); v != "" {
		c.LLM.MediaModel = v
	}
	if v := getenv("YTDLP_PATH"); v != "" {
		c.Media.YtDlpPath = v
	}
	if v := getenv("WORK_DIR"); v != "" {
		c.Media.WorkDir = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.MaxRequestBody <= 0 {
		return fmt.Errorf("server.max_request_body_bytes must be > 0")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Executor.Backend {
	case BackendDocker, BackendLocal:
	default:
		return fmt.Errorf("executor.backend must be %q or %q, got %q", BackendDocker, BackendLocal, c.Executor.Backend)
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor.timeout must be > 0")
	}
	if c.Executor.PoolSize < 1 {
		return fmt.Errorf("executor.pool_size must be >= 1")
	}
	if c.Executor.MemoryMB < 16 {
		return fmt.Errorf("executor.memory_mb must be >= 16")
	}
	if c.Executor.MaxCodeBytes < 1 {
		return fmt.Errorf("executor.max_code_bytes must be >= 1")
	}
	if c.LLM.CodeModel == "" || c.LLM.MediaModel == "" {
		return fmt.Errorf("llm.code_model and llm.media_model are required")
	}
	if c.Media.PollInterval <= 0 || c.Media.PollMaxInterval < c.Media.PollInterval {
		return fmt.Errorf("media.poll_interval must be > 0 and <= poll_max_interval")
	}
	if c.Media.PollMaxAttempts < 1 {
		return fmt.Errorf("media.poll_max_attempts must be >= 1")
	}
	if c.Media.Timeout <= 0 || c.Media.DownloadTimeout <= 0 || c.Media.PollTimeout <= 0 {
		return fmt.Errorf("media timeouts must be > 0")
	}
	if c.Media.WorkDir == "" {
		return fmt.Errorf("media.work_dir is required")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// SlogLevel returns the configured log level. Validate has already
// rejected unknown names, so the error is ignored here.
func (c LogConfig) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.Level)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}
