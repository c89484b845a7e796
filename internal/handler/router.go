// Package handler は打ち上げ一覧の表示状態をJSON APIとして公開する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/launchboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Store             LaunchStore
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MetricsHandler    http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → RateLimit（/api/* のみ）
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	h := NewLaunchHandler(deps.Store, logger)

	r.Route("/api/launches", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Get("/", h.List)
		r.Put("/criteria", h.UpdateCriteria)
		r.Post("/more", h.More)
		r.Post("/reload", h.Reload)
	})

	return r
}

// healthHandler はプロセスの生存を返す。
// 上流APIの状態には依存しない。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
