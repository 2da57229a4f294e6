package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYtDlpArgs(t *testing.T) {
	args := ytDlpArgs("https://www.youtube.com/watch?v=dQw4w9WgXcQ", "/work/ask-1")

	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "bestaudio[ext=m4a]/bestaudio")
	assert.Contains(t, args, filepath.Join("/work/ask-1", "audio.%(ext)s"))

	// The URL is always last, behind "--".
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "--", args[len(args)-2])
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", args[len(args)-1])
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "audio/mp4", MIMEType("/tmp/x/audio.m4a"))
	assert.Equal(t, "audio/webm", MIMEType("/tmp/x/audio.WEBM"))
	assert.Equal(t, "audio/ogg", MIMEType("audio.opus"))
	assert.Equal(t, "application/octet-stream", MIMEType("audio"))
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/work/ask-1", "/work/ask-1/audio.m4a"))
	assert.False(t, within("/work/ask-1", "/work/ask-2/audio.m4a"))
	assert.False(t, within("/work/ask-1", "/work/ask-1"))
	assert.False(t, within("/work/ask-1", "/etc/passwd"))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "/tmp/a.m4a", lastLine("[info] something\n/tmp/a.m4a\n"))
	assert.Equal(t, "", lastLine(""))
}

// writeScript installs a stand-in for the yt-dlp binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const fakeYtDlp = `
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
f=$(printf '%s' "$out" | sed 's/%(ext)s/m4a/')
printf 'audio' > "$f"
echo "[download] Destination: $f"
echo "$f"
`

func TestYtDlp_Download(t *testing.T) {
	bin := writeScript(t, fakeYtDlp)
	dir := t.TempDir()

	path, err := NewYtDlp(bin, 10*time.Second).Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio.m4a"), path)
	assert.FileExists(t, path)
}

func TestYtDlp_DownloadFailure(t *testing.T) {
	bin := writeScript(t, "echo 'ERROR: Video unavailable' >&2\nexit 1\n")

	_, err := NewYtDlp(bin, 10*time.Second).Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestYtDlp_RejectsPathOutsideDir(t *testing.T) {
	bin := writeScript(t, "echo /etc/passwd\n")

	_, err := NewYtDlp(bin, 10*time.Second).Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the work directory")
}

func TestYtDlp_Timeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5\n")

	start := time.Now()
	_, err := NewYtDlp(bin, 100*time.Millisecond).Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestYtDlp_MissingBinary(t *testing.T) {
	_, err := NewYtDlp(filepath.Join(t.TempDir(), "nope"), time.Second).
		Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir())
	require.Error(t, err)
}
