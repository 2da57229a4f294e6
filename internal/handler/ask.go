package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/codeask/internal/apperror"
	"github.com/sakif/codeask/internal/model"
)

// TimestampFinder is the service surface the ask endpoint needs.
// *media.Finder satisfies it.
type TimestampFinder interface {
	Find(ctx context.Context, videoURL, topic string) model.TimestampResult
}

// AskHandler serves the video topic endpoint.
type AskHandler struct {
	finder       TimestampFinder
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(finder TimestampFinder, maxBodyBytes int64, logger *slog.Logger) *AskHandler {
	return &AskHandler{
		finder:       finder,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleAsk finds when a topic is first discussed in a video.
//
// HTTP: POST /ask
// REQUEST BODY: {"video_url": "https://youtu.be/…", "topic": "recursion"}
//
// Pipeline failures are NOT HTTP errors: the response is still 200 with
// timestamp "00:00:00" and an "error" field naming the failed stage.
// Only malformed requests get a 400.
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		h.logger.Warn("invalid ask request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.VideoURL) == "" {
		writeError(w, apperror.ValidationFailed("video_url", "video_url is required"))
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, apperror.ValidationFailed("topic", "topic is required"))
		return
	}

	writeJSON(w, http.StatusOK, h.finder.Find(r.Context(), req.VideoURL, req.Topic))
}
