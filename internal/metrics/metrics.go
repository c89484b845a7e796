// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 取得対象リソースのラベル値
const (
	ResourceLaunches = "launches"
	ResourceRocket   = "rocket"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイと集約処理から利用する。
type MetricsCollector interface {
	RecordFetchSuccess(resource string)
	RecordFetchFailure(resource string, kind string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(resource string, duration time.Duration)
	RecordAggregation(launches int, unresolved int, duration time.Duration)
	RecordAggregationFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     *prometheus.CounterVec
	fetchFail        *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	aggregations     prometheus.Counter
	aggregationFail  prometheus.Counter
	aggregatedTotal  prometheus.Gauge
	unresolvedTotal  prometheus.Gauge
	aggregationTimer prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_fetch_success_total",
			Help: "上流API取得成功の合計数",
		}, []string{"resource"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_fetch_fail_total",
			Help: "上流API取得失敗の合計数（エラー分類別）",
		}, []string{"resource", "kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchboard_http_status_total",
			Help: "上流APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launchboard_fetch_latency_seconds",
			Help:    "上流API取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchboard_aggregation_cycles_total",
			Help: "完了した集約サイクルの合計数",
		}),
		aggregationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchboard_aggregation_fail_total",
			Help: "失敗した集約サイクルの合計数",
		}),
		aggregatedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launchboard_aggregated_launches",
			Help: "直近の集約サイクルで生成された打ち上げ件数",
		}),
		unresolvedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launchboard_unresolved_launches",
			Help: "直近の集約サイクルでロケット説明を解決できなかった打ち上げ件数",
		}),
		aggregationTimer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "launchboard_aggregation_duration_seconds",
			Help:    "集約サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.aggregations,
		c.aggregationFail,
		c.aggregatedTotal,
		c.unresolvedTotal,
		c.aggregationTimer,
	)

	return c
}

// RecordFetchSuccess は取得成功を記録する。
func (c *Collector) RecordFetchSuccess(resource string) {
	c.fetchSuccess.WithLabelValues(resource).Inc()
}

// RecordFetchFailure は取得失敗を記録する。
func (c *Collector) RecordFetchFailure(resource string, kind string) {
	c.fetchFail.WithLabelValues(resource, kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(resource string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordAggregation は完了した集約サイクルを記録する。
func (c *Collector) RecordAggregation(launches int, unresolved int, duration time.Duration) {
	c.aggregations.Inc()
	c.aggregatedTotal.Set(float64(launches))
	c.unresolvedTotal.Set(float64(unresolved))
	c.aggregationTimer.Observe(duration.Seconds())
}

// RecordAggregationFailure は失敗した集約サイクルを記録する。
func (c *Collector) RecordAggregationFailure() {
	c.aggregationFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
