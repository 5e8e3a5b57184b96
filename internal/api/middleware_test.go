package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestCORSHandler_Preflight(t *testing.T) {
	called := false
	h := corsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called, "preflight should not reach the handler")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), DigestHeader)
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := logRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	line := buf.String()
	assert.Equal(t, "WARN", gjson.Get(line, "level").String())
	assert.Equal(t, "/api/health", gjson.Get(line, "path").String())
	assert.EqualValues(t, 503, gjson.Get(line, "status").Int())
	assert.EqualValues(t, 4, gjson.Get(line, "bytes").Int())
}
