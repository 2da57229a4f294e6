// Package media answers "when is this topic first discussed in this video?".
//
// PIPELINE:
//
//	download audio (yt-dlp) → upload to the model's file store → wait until
//	the upload is processed → ask the model → extract HH:MM:SS
//
// Every request works in its own temp directory (named with an xid) and
// owns its uploaded file; both are removed on every exit path, so
// concurrent requests never touch each other's artifacts.
//
// FAILURE CONVENTION:
// Find never returns an error. Any failure yields the sentinel timestamp
// "00:00:00", the request echoed back, and Error set to "<stage>: <cause>".
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"

	"github.com/sakif/codeask/internal/config"
	"github.com/sakif/codeask/internal/llm"
	"github.com/sakif/codeask/internal/metrics"
	"github.com/sakif/codeask/internal/model"
)

// Pipeline stages, reported in TimestampResult.Error and as metric labels.
const (
	StageConfig     = "config"
	StageDownload   = "download"
	StageUpload     = "upload"
	StageProcessing = "processing"
	StageGenerate   = "generate"
	StageParse      = "parse"
	StageInternal   = "internal"

	OutcomeFound = "found"
)

var (
	ErrNotConfigured     = errors.New("generative model not configured")
	ErrProcessingFailed  = errors.New("remote file processing failed")
	ErrProcessingTimeout = errors.New("remote file not ready in time")
	errNotReady          = errors.New("remote file still processing")
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

const promptTemplate = `You are given the audio track of a video.

Find the FIRST timestamp where this topic is spoken.

Topic: %q

Rules:
- Return ONLY the timestamp
- Format MUST be HH:MM:SS
- No explanation
`

// Config tunes the pipeline.
type Config struct {
	WorkDir         string
	Model           string
	Timeout         time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollMaxAttempts int
	PollTimeout     time.Duration
}

// ConfigFrom maps the application config onto the finder's.
func ConfigFrom(c *config.Config) Config {
	return Config{
		WorkDir:         c.Media.WorkDir,
		Model:           c.LLM.MediaModel,
		Timeout:         c.Media.Timeout,
		PollInterval:    c.Media.PollInterval,
		PollMaxInterval: c.Media.PollMaxInterval,
		PollMaxAttempts: c.Media.PollMaxAttempts,
		PollTimeout:     c.Media.PollTimeout,
	}
}

// Finder runs the timestamp pipeline.
type Finder struct {
	downloader Downloader
	files      llm.FileStore
	gen        llm.Generator
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFinder creates a Finder. client may be nil when no API key is
// configured; every Find then fails fast at the config stage.
func NewFinder(dl Downloader, client llm.Client, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Finder {
	f := &Finder{
		downloader: dl,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
	if client != nil {
		f.files = client
		f.gen = client
	}
	return f
}

// Find returns the first timestamp at which topic is discussed in the
// video. See the package doc for the failure convention.
func (f *Finder) Find(ctx context.Context, videoURL, topic string) model.TimestampResult {
	start := time.Now()
	result := model.TimestampResult{
		Timestamp: model.SentinelTimestamp,
		VideoURL:  videoURL,
		Topic:     topic,
	}

	ts, err := f.find(ctx, videoURL, topic)
	if err != nil {
		stage := StageInternal
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		f.logger.Warn("timestamp lookup failed",
			slog.String("stage", stage),
			slog.String("videoURL", videoURL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordAsk(stage, time.Since(start))
		result.Error = err.Error()
		return result
	}

	f.logger.Info("timestamp found",
		slog.String("videoURL", videoURL),
		slog.String("timestamp", ts),
		slog.Duration("duration", time.Since(start)),
	)
	f.metrics.RecordAsk(OutcomeFound, time.Since(start))
	result.Timestamp = ts
	return result
}

func (f *Finder) find(ctx context.Context, videoURL, topic string) (ts string, err error) {
	defer func() {
		if r := recover(); r != nil {
			ts, err = "", stageErr(StageInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	if f.gen == nil || f.files == nil || f.downloader == nil {
		return "", stageErr(StageConfig, ErrNotConfigured)
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	// === 1. PER-REQUEST WORK DIRECTORY ===
	dir, err := os.MkdirTemp(f.cfg.WorkDir, "ask-"+xid.New().String()+"-")
	if err != nil {
		return "", stageErr(StageDownload, fmt.Errorf("creating work directory: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			f.logger.Error("failed to remove work directory",
				slog.String("dir", dir),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	// === 2. DOWNLOAD ===
	target := CanonicalURL(videoURL)
	path, err := f.downloader.Download(ctx, target, dir)
	if err != nil {
		return "", stageErr(StageDownload, err)
	}

	// === 3. UPLOAD ===
	file, err := f.files.Upload(ctx, path, MIMEType(path))
	if err != nil {
		return "", stageErr(StageUpload, err)
	}
	defer f.release(ctx, file.Name)

	// === 4. WAIT FOR PROCESSING ===
	file, err = f.waitActive(ctx, file)
	if err != nil {
		return "", stageErr(StageProcessing, err)
	}

	// === 5. ASK ===
	text, err := f.gen.Generate(ctx, llm.Request{
		Model:  f.cfg.Model,
		Prompt: fmt.Sprintf(promptTemplate, topic),
		File:   file,
	})
	if err != nil {
		return "", stageErr(StageGenerate, err)
	}

	// === 6. EXTRACT ===
	ts, ok := ExtractTimestamp(text)
	if !ok {
		return "", stageErr(StageParse, fmt.Errorf("no HH:MM:SS timestamp in model response %q", truncate(text, 80)))
	}
	return ts, nil
}

// waitActive polls the uploaded file with exponential backoff until it is
// ACTIVE. It gives up after PollMaxAttempts checks, after PollTimeout, or
// when ctx ends, whichever comes first.
func (f *Finder) waitActive(ctx context.Context, file *llm.File) (*llm.File, error) {
	if file.Ready() {
		return file, nil
	}
	if file.State == llm.FileStateFailed {
		return nil, ErrProcessingFailed
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.PollInterval
	b.MaxInterval = f.cfg.PollMaxInterval
	b.Multiplier = 2
	b.MaxElapsedTime = f.cfg.PollTimeout

	retries := uint64(0)
	if f.cfg.PollMaxAttempts > 1 {
		retries = uint64(f.cfg.PollMaxAttempts - 1)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)

	checks := 0
	ready := file
	op := func() error {
		checks++
		cur, err := f.files.Get(ctx, file.Name)
		if err != nil {
			return err
		}
		switch {
		case cur.Ready():
			ready = cur
			return nil
		case cur.State == llm.FileStateFailed:
			return backoff.Permanent(ErrProcessingFailed)
		default:
			return errNotReady
		}
	}

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrProcessingFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d checks: %v", ErrProcessingTimeout, checks, err)
	}
	return ready, nil
}

// release deletes the uploaded file. It runs on a context detached from
// the request so cleanup still happens after a client disconnect or
// pipeline timeout.
func (f *Finder) release(ctx context.Context, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := f.files.Delete(ctx, name); err != nil {
		f.logger.Error("failed to delete uploaded file",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
