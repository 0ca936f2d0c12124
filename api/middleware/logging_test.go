package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

func completionLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "request.complete" {
			return entry
		}
	}
	t.Fatalf("no completion line in %s", buf.String())
	return nil
}

func TestLoggingRecordsStatusAndSize(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	h := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("made"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil))

	entry := completionLine(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
	assert.EqualValues(t, 4, entry["bytes"])
	assert.Equal(t, "/api/v1/reservations", entry["path"])
}

func TestLoggingWarnsOnServerError(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	h := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	entry := completionLine(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.EqualValues(t, http.StatusServiceUnavailable, entry["status"])
}

func TestLoggingDefaultsToOK(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	h := Logging(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.EqualValues(t, http.StatusOK, completionLine(t, buf)["status"])
}
