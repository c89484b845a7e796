package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureRequestLog(t *testing.T, handler http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewLoggingMiddleware(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/launches", nil)
	req.RemoteAddr = "203.0.113.7:51234"

	entry := captureRequestLog(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}, req)

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %v, want GET", entry["method"])
	}
	if entry["path"] != "/api/launches" {
		t.Errorf("path = %v, want /api/launches", entry["path"])
	}
	if entry["client"] != "203.0.113.7" {
		t.Errorf("client = %v, want 203.0.113.7", entry["client"])
	}
	if status, _ := entry["status"].(float64); status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if n, _ := entry["bytes"].(float64); n != float64(len(`{"items":[]}`)) {
		t.Errorf("bytes = %v", entry["bytes"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, want >= 0", entry["duration_ms"])
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		wantLevel  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNoContent, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusConflict, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/launches/reload", nil)
			entry := captureRequestLog(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}, req)

			if status := int(entry["status"].(float64)); status != tt.statusCode {
				t.Errorf("status = %d, want %d", status, tt.statusCode)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}
