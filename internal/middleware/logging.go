package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ステータスが5xxならError、4xxならWarn、それ以外はInfoで出力する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client", clientKey(r)),
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", durationMs),
			)
		})
	}
}
