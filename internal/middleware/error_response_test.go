package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/launchboard/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError("rocketInfo"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInvalidFilter {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidFilter)
	}
	if body.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Category, "validation")
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("message and action must be set: %+v", body)
	}
}

func TestWriteErrorResponse_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		apiErr     *model.APIError
	}{
		{"invalid request", http.StatusBadRequest, model.NewInvalidRequestError("bad json")},
		{"load in progress", http.StatusConflict, model.NewLoadInProgressError()},
		{"fetch failed", http.StatusBadGateway, model.NewFetchFailedError("timeout")},
		{"rate limited", http.StatusTooManyRequests, model.NewRateLimitedError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.statusCode, tt.apiErr)

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			var raw map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			for _, field := range []string{"code", "message", "category", "action"} {
				if _, ok := raw[field]; !ok {
					t.Errorf("missing required field: %s", field)
				}
			}
			if raw["code"] != tt.apiErr.Code {
				t.Errorf("code = %v, want %q", raw["code"], tt.apiErr.Code)
			}
		})
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want %q", body.Category, "system")
	}
}
