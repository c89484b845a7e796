package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/launchboard/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate            rate.Limit    // クライアントごとのレート（req/sec）
	Burst           int           // クライアントごとのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// PerMinuteConfig は1分あたりのリクエスト数からRateLimiterConfigを生成する。
// バーストサイズは1分間の上限と同じにする。
func PerMinuteConfig(perMinute int) RateLimiterConfig {
	if perMinute <= 0 {
		perMinute = 120
	}
	return RateLimiterConfig{
		Rate:            rate.Limit(float64(perMinute) / 60.0),
		Burst:           perMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成し、期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware はクライアントIPごとのレート制限ミドルウェアを返す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)

			if !rl.limiterFor(client).Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("client", client),
					slog.String("path", r.URL.Path),
				)
				writeRateLimitResponse(w, rl.config.Rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientCount は現在管理しているクライアント数を返す。
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiterFor(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if cl, ok := rl.clients[client]; ok {
		cl.lastAccess = now
		return cl.limiter
	}

	cl := &clientLimiter{
		limiter:    rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		lastAccess: now,
	}
	rl.clients[client] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.clients, client)
		}
	}
}

// clientKey はリクエスト元のIPアドレスを返す。
// RemoteAddrがhost:port形式でない場合はそのまま使う。
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429レスポンスを書き込む。
// Retry-Afterには1トークンが補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
