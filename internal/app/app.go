// Package app は設定の読み込み、依存関係の組み立て、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/launchboard/internal/aggregate"
	"github.com/hitoshi/launchboard/internal/config"
	"github.com/hitoshi/launchboard/internal/handler"
	"github.com/hitoshi/launchboard/internal/launch"
	"github.com/hitoshi/launchboard/internal/logger"
	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/middleware"
	"github.com/hitoshi/launchboard/internal/model"
	"github.com/hitoshi/launchboard/internal/security"
	"github.com/hitoshi/launchboard/internal/spacex"
)

// Init はアプリケーションの初期化を行う。
// 設定読み込み前にinfoレベルでログを使えるようにし、読み込み後にLOG_LEVELで再設定する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	log := logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		log.Error("設定の読み込みに失敗しました", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Run はアプリケーションのメインエントリーポイント。
// outにはlistの出力、logwにはログを書き込む。argsにはos.Args[1:]を渡す。
func Run(out, logw io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("aggregation_policy", cfg.AggregationPolicy),
		slog.Int("page_size", cfg.PageSize),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandList:
		return runList(ctx, cfg, log, out, rest)
	default:
		return runServe(ctx, cfg, log)
	}
}

// session は1セッション分の依存関係。
type session struct {
	store    *launch.Store
	registry *prometheus.Registry
}

// newSession は上流APIクライアント、集約処理、表示状態を組み立てる。
func newSession(cfg *config.Config, log *slog.Logger) (*session, error) {
	guard := security.NewSSRFGuard(cfg.SSRFProtection)
	if err := guard.ValidateEndpoints(cfg.LaunchesAPIURL, cfg.RocketsAPIURL); err != nil {
		return nil, err
	}
	if !guard.Enabled() {
		log.Warn("SSRF防止が無効です。本番環境では有効にしてください")
	}

	policy, err := aggregate.ParsePolicy(cfg.AggregationPolicy)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	client := spacex.NewClient(
		guard.NewHTTPClient(cfg.FetchTimeout),
		log,
		collector,
		spacex.ClientConfig{
			LaunchesURL: cfg.LaunchesAPIURL,
			RocketsURL:  cfg.RocketsAPIURL,
			MaxBodySize: cfg.FetchMaxSize,
		},
	)

	aggregator := aggregate.NewAggregator(client, security.NewTextSanitizer(), collector, log, aggregate.Config{
		Policy:        policy,
		MaxConcurrent: cfg.FetchMaxConcurrent,
		RocketTimeout: cfg.RocketFetchTimeout,
	})

	return &session{
		store:    launch.NewStore(client, aggregator, log, cfg.PageSize),
		registry: reg,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// 起動と同時にバックグラウンドで打ち上げ一覧を読み込み、
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	sess, err := newSession(cfg, log)
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral), log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Store:             sess.store,
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		MetricsHandler:    metrics.Handler(sess.registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// セッション開始時の読み込み。失敗は表示状態のerrorとして公開される
	go func() {
		if err := sess.store.Load(ctx); err != nil {
			log.Warn("初回の読み込みに失敗しました。POST /api/launches/reload で再試行できます",
				slog.String("error", err.Error()),
			)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runList は1回だけ読み込み、検索条件とページ数を適用した表示範囲をoutに書き出す。
//
//	launchboard list [-q term] [-status all|successful|future] [-pages n]
func runList(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	term := fs.String("q", "", "search term (case-insensitive substring of the launch name)")
	status := fs.String("status", string(model.StatusFilterAll), "status filter: all, successful or future")
	pages := fs.Int("pages", 1, "number of pages to show")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid list arguments: %w", err)
	}

	filter, err := model.ParseStatusFilter(*status)
	if err != nil {
		return err
	}
	if *pages < 1 {
		return fmt.Errorf("invalid list arguments: -pages must be >= 1, got %d", *pages)
	}

	sess, err := newSession(cfg, log)
	if err != nil {
		return err
	}

	if err := sess.store.Load(ctx); err != nil {
		return err
	}

	sess.store.SetSearchTerm(*term)
	sess.store.SetStatusFilter(filter)
	for i := 1; i < *pages; i++ {
		sess.store.AdvanceVisibleWindow(sess.store.PageSize())
	}

	return handler.EncodeView(out, sess.store.Snapshot())
}

// runHealthcheck は/healthエンドポイントにリクエストを送り、結果を返す。
// distroless環境でのDockerヘルスチェック用。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
