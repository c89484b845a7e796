// Package aggregate は打ち上げ一覧と各ロケットの説明を並行に結合する。
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/model"
	"github.com/hitoshi/launchboard/internal/security"
)

// Policy はロケット情報取得失敗時の集約ポリシー。
type Policy string

const (
	// PolicyPartial は失敗したロケットを参照する打ち上げのみ説明なしとし、集約を継続する。
	PolicyPartial Policy = "partial"
	// PolicyFailFast は最初の失敗で残りの取得を中断し、エラーを返す。
	PolicyFailFast Policy = "fail_fast"
)

// ParsePolicy は文字列をPolicyに変換する。空文字はPolicyPartialとして扱う。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPartial:
		return PolicyPartial, nil
	case PolicyFailFast:
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("unknown aggregation policy: %q", s)
	}
}

const defaultRocketTimeout = 10 * time.Second

// RocketFetcher はロケット情報の取得を抽象化するインターフェース。
type RocketFetcher interface {
	FetchRocket(ctx context.Context, id string) (*model.RocketRecord, error)
}

// Config は集約処理の設定。
type Config struct {
	Policy        Policy
	MaxConcurrent int           // 0以下は無制限
	RocketTimeout time.Duration // ロケット1件あたりのタイムアウト
}

// Result は1回の集約サイクルの結果。
type Result struct {
	CycleID    string
	Launches   []model.AggregatedLaunch
	Unresolved int // 説明を解決できなかった打ち上げ数
}

// Aggregator は打ち上げとロケット説明の結合を行う。
type Aggregator struct {
	fetcher   RocketFetcher
	sanitizer *security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       Config
}

// NewAggregator はAggregatorを生成する。
func NewAggregator(
	fetcher RocketFetcher,
	sanitizer *security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg Config,
) *Aggregator {
	if cfg.Policy == "" {
		cfg.Policy = PolicyPartial
	}
	if cfg.RocketTimeout <= 0 {
		cfg.RocketTimeout = defaultRocketTimeout
	}
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	return &Aggregator{
		fetcher:   fetcher,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		cfg:       cfg,
	}
}

// Aggregate は各打ち上げのロケット説明を並行に取得し、入力と同じ順序で結合する。
// 同一サイクル内で重複するロケットIDは1回だけ取得する。
// 全ての取得が完了するまで待機してから結合する。
func (a *Aggregator) Aggregate(ctx context.Context, launches []model.LaunchRecord) (*Result, error) {
	cycleID := uuid.New().String()
	start := time.Now()

	if len(launches) == 0 {
		a.metrics.RecordAggregation(0, 0, time.Since(start))
		return &Result{CycleID: cycleID, Launches: []model.AggregatedLaunch{}}, nil
	}

	// ロケットIDを出現順に重複排除し、打ち上げ位置からの索引を作る
	rocketIDs := make([]string, 0, len(launches))
	slot := make([]int, len(launches))
	seen := make(map[string]int, len(launches))
	for i, l := range launches {
		idx, ok := seen[l.RocketID]
		if !ok {
			idx = len(rocketIDs)
			seen[l.RocketID] = idx
			rocketIDs = append(rocketIDs, l.RocketID)
		}
		slot[i] = idx
	}

	descriptions, err := a.fetchDescriptions(ctx, cycleID, rocketIDs)
	if err != nil {
		a.metrics.RecordAggregationFailure()
		a.logger.Error("集約サイクルが失敗しました",
			slog.String("cycle_id", cycleID),
			slog.String("policy", string(a.cfg.Policy)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	result := &Result{
		CycleID:  cycleID,
		Launches: make([]model.AggregatedLaunch, len(launches)),
	}
	for i, l := range launches {
		l.Details = a.sanitizer.Text(l.Details)
		l.PatchURL = a.sanitizer.ImageURL(l.PatchURL)
		result.Launches[i] = model.AggregatedLaunch{
			LaunchRecord: l,
			Description:  descriptions[slot[i]],
		}
		if descriptions[slot[i]] == nil {
			result.Unresolved++
		}
	}

	duration := time.Since(start)
	a.metrics.RecordAggregation(len(result.Launches), result.Unresolved, duration)
	a.logger.Info("集約サイクルが完了しました",
		slog.String("cycle_id", cycleID),
		slog.Int("launch_count", len(result.Launches)),
		slog.Int("rocket_count", len(rocketIDs)),
		slog.Int("unresolved", result.Unresolved),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}

// fetchDescriptions はロケット説明を並行に取得し、rocketIDsと同じ位置に格納して返す。
// 取得に失敗した位置はnilとなる。PolicyFailFastの場合は最初のエラーを返す。
func (a *Aggregator) fetchDescriptions(ctx context.Context, cycleID string, rocketIDs []string) ([]*string, error) {
	descriptions := make([]*string, len(rocketIDs))

	var g *errgroup.Group
	gctx := ctx
	if a.cfg.Policy == PolicyFailFast {
		// 最初の失敗で残りの取得をキャンセルする
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if a.cfg.MaxConcurrent > 0 {
		g.SetLimit(a.cfg.MaxConcurrent)
	}

	for i, id := range rocketIDs {
		g.Go(func() error {
			desc, err := a.fetchDescription(gctx, id)
			if err != nil {
				a.logger.Warn("ロケット情報の取得に失敗しました",
					slog.String("cycle_id", cycleID),
					slog.String("rocket_id", id),
					slog.String("error_kind", string(model.KindOf(err))),
					slog.String("error", err.Error()),
				)
				if a.cfg.Policy == PolicyFailFast {
					return fmt.Errorf("aggregate rocket %q: %w", id, err)
				}
				return nil
			}
			descriptions[i] = desc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 呼び出し元のキャンセルはポリシーに関わらずサイクル全体の中断とする
	if err := ctx.Err(); err != nil {
		return nil, model.NewNetworkError("aggregate launches", err)
	}

	return descriptions, nil
}

// fetchDescription はタイムアウト付きでロケット1件の説明を取得する。
func (a *Aggregator) fetchDescription(ctx context.Context, id string) (*string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RocketTimeout)
	defer cancel()

	rocket, err := a.fetcher.FetchRocket(ctx, id)
	if err != nil {
		return nil, err
	}
	desc := a.sanitizer.Text(rocket.Description)
	return &desc, nil
}
