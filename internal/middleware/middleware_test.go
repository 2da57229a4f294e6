package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeask/internal/middleware"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestLogger(t *testing.T) {
	logger, buf := newBufferLogger()

	h := chimiddleware.RequestID(middleware.Logger(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}),
	))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/code-interpreter", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "path=/code-interpreter")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=15")
	assert.Regexp(t, `requestID=\S+`, out)
}

func TestLogger_ImplicitOK(t *testing.T) {
	logger, buf := newBufferLogger()

	h := middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestRecover(t *testing.T) {
	logger, buf := newBufferLogger()

	h := middleware.Logger(logger)(middleware.Recover(logger)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("kaboom")
		}),
	))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ask", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"internal_error","message":"An internal error occurred"}`, rr.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), "status=500")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	logger, _ := newBufferLogger()

	h := middleware.Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
