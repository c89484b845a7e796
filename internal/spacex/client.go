// Package spacex は打ち上げ一覧APIとロケット詳細APIへの読み取り専用アクセスを提供する。
// 通信失敗・解析失敗・参照解決失敗をmodel.FetchErrorとして分類して返す。
// リトライは行わない。
package spacex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/model"
)

const (
	// DefaultLaunchesURL は打ち上げ一覧APIのエンドポイント。
	DefaultLaunchesURL = "https://api.spacexdata.com/v5/launches"
	// DefaultRocketsURL はロケット詳細APIのベースURL。末尾にロケットIDを付与する。
	DefaultRocketsURL = "https://api.spacexdata.com/v4/rockets"
	// defaultMaxBodySize はレスポンスボディの最大サイズ（10MiB）。
	defaultMaxBodySize = 10 << 20

	userAgent = "Launchboard/1.0"
)

// ClientConfig はClientの接続先と制限値。
type ClientConfig struct {
	LaunchesURL string
	RocketsURL  string
	MaxBodySize int64
}

// Client は打ち上げ一覧APIとロケット詳細APIのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	launchesURL string
	rocketsURL  string
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// 未設定の項目はデフォルト値を使用する。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	cfg ClientConfig,
) *Client {
	if cfg.LaunchesURL == "" {
		cfg.LaunchesURL = DefaultLaunchesURL
	}
	if cfg.RocketsURL == "" {
		cfg.RocketsURL = DefaultRocketsURL
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     collector,
		launchesURL: cfg.LaunchesURL,
		rocketsURL:  cfg.RocketsURL,
		maxBodySize: cfg.MaxBodySize,
	}
}

// launchResponse は打ち上げ一覧APIの1要素。必要なフィールドのみ定義する。
type launchResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Details   *string `json:"details"`
	Success   *bool   `json:"success"`
	DateLocal string  `json:"date_local"`
	Rocket    string  `json:"rocket"`
	Links     struct {
		Patch struct {
			Small *string `json:"small"`
		} `json:"patch"`
	} `json:"links"`
}

// rocketResponse はロケット詳細APIのレスポンス。
type rocketResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// FetchLaunches は打ち上げ一覧を1回のリクエストで取得する。
// 返却順はAPIのレスポンス順を維持する。
func (c *Client) FetchLaunches(ctx context.Context) ([]model.LaunchRecord, error) {
	const op = "fetch launches"

	var raw []launchResponse
	if err := c.getJSON(ctx, metrics.ResourceLaunches, op, c.launchesURL, &raw); err != nil {
		return nil, err
	}

	launches := make([]model.LaunchRecord, 0, len(raw))
	for i, r := range raw {
		launch, err := convertLaunch(r)
		if err != nil {
			c.recordFailure(metrics.ResourceLaunches, model.ErrorKindParse)
			c.logger.Error("打ち上げレコードの変換に失敗しました",
				slog.Int("index", i),
				slog.String("launch_id", r.ID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewParseError(op, fmt.Errorf("launch[%d]: %w", i, err))
		}
		launches = append(launches, launch)
	}

	c.recordSuccess(metrics.ResourceLaunches)
	c.logger.Info("打ち上げ一覧を取得しました",
		slog.Int("launch_count", len(launches)),
	)

	return launches, nil
}

// FetchRocket はロケットIDに対応するロケット情報を取得する。
// IDが空、またはAPIが404を返した場合はReferenceErrorを返す。
func (c *Client) FetchRocket(ctx context.Context, id string) (*model.RocketRecord, error) {
	op := "fetch rocket " + id

	if id == "" {
		c.recordFailure(metrics.ResourceRocket, model.ErrorKindReference)
		return nil, model.NewReferenceError(op, errors.New("empty rocket id"))
	}

	var raw rocketResponse
	if err := c.getJSON(ctx, metrics.ResourceRocket, op, c.rocketsURL+"/"+url.PathEscape(id), &raw); err != nil {
		return nil, err
	}

	c.recordSuccess(metrics.ResourceRocket)

	rocketID := raw.ID
	if rocketID == "" {
		rocketID = id
	}
	return &model.RocketRecord{
		ID:          rocketID,
		Description: raw.Description,
	}, nil
}

// getJSON はGETリクエストを実行し、レスポンスJSONをoutにデコードする。
// 失敗時は分類済みのmodel.FetchErrorを返す。
func (c *Client) getJSON(ctx context.Context, resource, op, reqURL string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.recordFailure(resource, model.ErrorKindNetwork)
		return model.NewNetworkError(op, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(resource, model.ErrorKindNetwork)
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("resource", resource),
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.metrics.RecordHTTPStatus(resp.StatusCode)
	c.metrics.RecordFetchLatency(resource, duration)

	switch {
	case resp.StatusCode == http.StatusOK:
		// 以下で処理を続行
	case resp.StatusCode == http.StatusNotFound && resource == metrics.ResourceRocket:
		c.recordFailure(resource, model.ErrorKindReference)
		c.logger.Warn("ロケットIDに対応するレコードが存在しません",
			slog.String("url", reqURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewReferenceError(op, fmt.Errorf("上流APIがステータス %d を返しました", resp.StatusCode))
	default:
		c.recordFailure(resource, model.ErrorKindNetwork)
		c.logger.Error("上流APIがエラーステータスを返しました",
			slog.String("resource", resource),
			slog.String("url", reqURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewNetworkError(op, fmt.Errorf("上流APIがステータス %d を返しました", resp.StatusCode))
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		c.recordFailure(resource, model.ErrorKindNetwork)
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("resource", resource),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkError(op, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}
	if int64(len(body)) > c.maxBodySize {
		c.recordFailure(resource, model.ErrorKindParse)
		return model.NewParseError(op, fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", c.maxBodySize))
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.recordFailure(resource, model.ErrorKindParse)
		c.logger.Error("上流APIのレスポンスのパースに失敗しました",
			slog.String("resource", resource),
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return model.NewParseError(op, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}

	c.logger.Debug("上流APIの呼び出しが完了しました",
		slog.String("resource", resource),
		slog.String("url", reqURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

func (c *Client) recordSuccess(resource string) {
	c.metrics.RecordFetchSuccess(resource)
}

func (c *Client) recordFailure(resource string, kind model.ErrorKind) {
	c.metrics.RecordFetchFailure(resource, string(kind))
}

// convertLaunch はAPIレスポンスをmodel.LaunchRecordに変換する。
// date_localはオフセット付きのRFC3339として解釈し、現地のオフセットを保持する。
func convertLaunch(r launchResponse) (model.LaunchRecord, error) {
	if r.ID == "" {
		return model.LaunchRecord{}, errors.New("id is missing")
	}

	launch := model.LaunchRecord{
		ID:       r.ID,
		Name:     r.Name,
		Outcome:  model.OutcomeFromPointer(r.Success),
		RocketID: r.Rocket,
	}
	if r.Details != nil {
		launch.Details = *r.Details
	}
	if r.Links.Patch.Small != nil {
		launch.PatchURL = *r.Links.Patch.Small
	}

	if r.DateLocal != "" {
		t, err := time.Parse(time.RFC3339, r.DateLocal)
		if err != nil {
			return model.LaunchRecord{}, fmt.Errorf("invalid date_local %q: %w", r.DateLocal, err)
		}
		launch.DateLocal = t
	}

	return launch, nil
}
