package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/launchboard/internal/aggregate"
	"github.com/hitoshi/launchboard/internal/launch"
	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/middleware"
	"github.com/hitoshi/launchboard/internal/model"
)

func TestRouter_Health(t *testing.T) {
	w := doRequest(t, newTestRouter(newMockStore()), http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_AppliesMiddlewareChain(t *testing.T) {
	w := doRequest(t, newTestRouter(newMockStore()), http.MethodGet, "/api/launches", "")

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	w := doRequest(t, newTestRouter(newMockStore()), http.MethodDelete, "/api/launches", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordAggregation(3, 1, time.Second)

	router := NewRouter(&RouterDeps{
		Store:          newMockStore(),
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MetricsHandler: metrics.Handler(reg),
	})

	w := doRequest(t, router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "launchboard_aggregation_cycles_total 1") {
		t.Errorf("metrics output missing aggregation counter:\n%s", w.Body.String())
	}
}

func TestRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(0.01),
		Burst:           1,
		CleanupInterval: time.Minute,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	defer rl.Stop()

	router := NewRouter(&RouterDeps{
		Store:       newMockStore(),
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		RateLimiter: rl,
	})

	if w := doRequest(t, router, http.MethodGet, "/api/launches", ""); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodGet, "/api/launches", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	// ヘルスチェックはレート制限の対象外
	for i := 0; i < 3; i++ {
		if w := doRequest(t, router, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
			t.Errorf("health request %d: status = %d", i, w.Code)
		}
	}
}

// --- 実際のStoreを使った結合テスト ---

type stubFetcher struct {
	launches []model.LaunchRecord
}

func (s *stubFetcher) FetchLaunches(ctx context.Context) ([]model.LaunchRecord, error) {
	return s.launches, nil
}

type stubRocketFetcher struct{}

func (stubRocketFetcher) FetchRocket(ctx context.Context, id string) (*model.RocketRecord, error) {
	if id == "missing" {
		return nil, model.NewReferenceError("fetch rocket "+id, nil)
	}
	return &model.RocketRecord{ID: id, Description: "rocket " + id}, nil
}

func TestRouter_EndToEndWithStore(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	records := make([]model.LaunchRecord, 25)
	for i := range records {
		rocket := "falcon9"
		if i == 3 {
			rocket = "missing"
		}
		records[i] = model.LaunchRecord{
			ID:        fmt.Sprintf("launch-%02d", i),
			Name:      fmt.Sprintf("Starlink %d", i),
			Outcome:   model.OutcomeSuccess,
			DateLocal: time.Date(2021, 1, 1+i, 0, 0, 0, 0, time.UTC),
			RocketID:  rocket,
		}
	}

	agg := aggregate.NewAggregator(stubRocketFetcher{}, nil, metrics.NewCollector(prometheus.NewRegistry()), logger, aggregate.Config{})
	store := launch.NewStore(&stubFetcher{launches: records}, agg, logger, 20)
	router := NewRouter(&RouterDeps{Store: store, Logger: logger})

	resp := decodeList(t, doRequest(t, router, http.MethodPost, "/api/launches/reload", ""))
	if len(resp.Items) != 20 || !resp.HasMore || resp.Total != 25 {
		t.Fatalf("after reload: items=%d has_more=%v total=%d", len(resp.Items), resp.HasMore, resp.Total)
	}
	if resp.Unresolved != 1 || resp.Items[3].Description != nil {
		t.Errorf("launch-03 should be unresolved: unresolved=%d", resp.Unresolved)
	}

	resp = decodeList(t, doRequest(t, router, http.MethodPost, "/api/launches/more", ""))
	if len(resp.Items) != 25 || resp.HasMore {
		t.Errorf("after more: items=%d has_more=%v", len(resp.Items), resp.HasMore)
	}

	resp = decodeList(t, doRequest(t, router, http.MethodPut, "/api/launches/criteria", `{"search_term":"STARLINK 2"}`))
	// "Starlink 2", "Starlink 20".."Starlink 24"
	if resp.FilteredTotal != 6 || len(resp.Items) != 6 || resp.HasMore {
		t.Errorf("after search: filtered=%d items=%d has_more=%v", resp.FilteredTotal, len(resp.Items), resp.HasMore)
	}

	resp = decodeList(t, doRequest(t, router, http.MethodPut, "/api/launches/criteria", `{"search_term":"zzz"}`))
	if len(resp.Items) != 0 || resp.HasMore || resp.Error != nil {
		t.Errorf("zero-match search: items=%d has_more=%v error=%v", len(resp.Items), resp.HasMore, resp.Error)
	}
}

func TestRouter_MoreWithHugeStepKeepsViewReadable(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	records := make([]model.LaunchRecord, 25)
	for i := range records {
		records[i] = model.LaunchRecord{
			ID:       fmt.Sprintf("launch-%02d", i),
			Name:     fmt.Sprintf("Starlink %d", i),
			Outcome:  model.OutcomeSuccess,
			RocketID: "falcon9",
		}
	}

	agg := aggregate.NewAggregator(stubRocketFetcher{}, nil, metrics.NewCollector(prometheus.NewRegistry()), logger, aggregate.Config{})
	store := launch.NewStore(&stubFetcher{launches: records}, agg, logger, 20)
	router := NewRouter(&RouterDeps{Store: store, Logger: logger})

	if w := doRequest(t, router, http.MethodPost, "/api/launches/reload", ""); w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}

	w := doRequest(t, router, http.MethodPost, "/api/launches/more", fmt.Sprintf(`{"step":%d}`, math.MaxInt))
	if w.Code != http.StatusOK {
		t.Fatalf("more status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp := decodeList(t, w); len(resp.Items) != 25 || resp.HasMore || resp.VisibleCount != 25 {
		t.Errorf("after more: items=%d has_more=%v visible=%d", len(resp.Items), resp.HasMore, resp.VisibleCount)
	}

	w = doRequest(t, router, http.MethodGet, "/api/launches", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp := decodeList(t, w); len(resp.Items) != 25 {
		t.Errorf("list items = %d, want 25", len(resp.Items))
	}
}
