package media

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Downloader fetches the audio track of a video into dir and returns the
// path of the written file. The file must live inside dir.
type Downloader interface {
	Download(ctx context.Context, videoURL, dir string) (string, error)
}

// YtDlp uses the yt-dlp binary to fetch audio.
type YtDlp struct {
	binaryPath string
	timeout    time.Duration
}

// NewYtDlp creates a downloader. binaryPath may be a bare name resolved on
// PATH at call time.
func NewYtDlp(binaryPath string, timeout time.Duration) *YtDlp {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &YtDlp{binaryPath: binaryPath, timeout: timeout}
}

// Download saves the best audio-only stream as dir/audio.<ext>.
func (d *YtDlp) Download(ctx context.Context, videoURL, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binaryPath, ytDlpArgs(videoURL, dir)...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(stderr.String()))
	}

	path := lastLine(out.String())
	if path == "" {
		return "", fmt.Errorf("yt-dlp reported no output file")
	}
	if !within(dir, path) {
		return "", fmt.Errorf("yt-dlp wrote outside the work directory: %s", path)
	}
	return path, nil
}

func ytDlpArgs(videoURL, dir string) []string {
	return []string{
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--no-simulate",
		// print the final path once post-processing is done
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		// "--" keeps a URL starting with "-" from being read as a flag
		"--", videoURL,
	}
}

// audioMIMETypes covers what bestaudio typically yields; the stdlib table
// lacks several of them on minimal systems.
var audioMIMETypes = map[string]string{
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".webm": "audio/webm",
	".opus": "audio/ogg",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

// MIMEType guesses the upload content type from the file extension.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
