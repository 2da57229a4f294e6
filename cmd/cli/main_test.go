package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeask/internal/model"
)

// fakeServer answers like the real API: code containing "raise" fails on
// line 1, code over 64 bytes is rejected.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /code-interpreter", func(w http.ResponseWriter, r *http.Request) {
		var req model.CodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case len(req.Code) > 64:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"validation_error","message":"code must be 64 bytes or less"}`))
		case strings.Contains(req.Code, "raise"):
			_ = json.NewEncoder(w).Encode(model.CodeResponse{Error: []int{1}, Result: "Traceback"})
		default:
			_ = json.NewEncoder(w).Encode(model.CodeResponse{Error: []int{}, Result: "ok\n"})
		}
	})
	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		var req model.AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(model.TimestampResult{Timestamp: "00:01:02", VideoURL: req.VideoURL, Topic: req.Topic})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","executor":"docker","model":true}`))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	ts := fakeServer(t)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", ts.URL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestExec(t *testing.T) {
	out, err := run(t, "", "exec", "print('ok')")

	require.NoError(t, err)
	assert.Contains(t, out, `"result": "ok\n"`)
	assert.Contains(t, out, `"error": []`)
}

func TestExec_Stdin(t *testing.T) {
	out, err := run(t, "print('ok')\n", "exec")

	require.NoError(t, err)
	assert.Contains(t, out, `"result"`)
}

func TestExec_CodeRaised(t *testing.T) {
	out, err := run(t, "", "exec", "raise ValueError()")

	assert.ErrorIs(t, err, errCodeFailed)
	assert.Contains(t, out, "Traceback")
}

func TestExec_ServerRejects(t *testing.T) {
	_, err := run(t, "", "exec", strings.Repeat("x", 100))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "code must be 64 bytes or less")
}

func TestExecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte("print('ok')"), 0o600))

	out, err := run(t, "", "exec-file", path)

	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestAsk(t *testing.T) {
	out, err := run(t, "", "ask", "https://youtu.be/dQw4w9WgXcQ", "the chorus")

	require.NoError(t, err)
	assert.Contains(t, out, `"timestamp": "00:01:02"`)
	assert.Contains(t, out, `"topic": "the chorus"`)
}

func TestHealth(t *testing.T) {
	out, err := run(t, "", "health")

	require.NoError(t, err)
	assert.Contains(t, out, `"executor": "docker"`)
}
