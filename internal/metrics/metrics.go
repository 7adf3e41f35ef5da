// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 取り込みサービスやハンドラー層から利用する。
type MetricsCollector interface {
	RecordIngestSuccess()
	RecordIngestFailure(code string)
	RecordParseFailure()
	RecordEpisodesInserted(count int)
	RecordEpisodesDropped(count int)
	RecordIngestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestSuccess    prometheus.Counter
	ingestFail       *prometheus.CounterVec
	parseFail        prometheus.Counter
	episodesInserted prometheus.Counter
	episodesDropped  prometheus.Counter
	ingestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podcatch_ingest_success_total",
			Help: "フィード取り込み成功の合計数",
		}),
		ingestFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podcatch_ingest_fail_total",
			Help: "エラーコード別のフィード取り込み失敗数",
		}, []string{"code"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podcatch_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		episodesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podcatch_episodes_inserted_total",
			Help: "保存されたエピソードの合計数",
		}),
		episodesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podcatch_episodes_dropped_total",
			Help: "必須フィールド欠落で除外されたエピソードの合計数",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcatch_ingest_latency_seconds",
			Help:    "フィード取り込み全体のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.ingestSuccess,
		c.ingestFail,
		c.parseFail,
		c.episodesInserted,
		c.episodesDropped,
		c.ingestLatency,
	)

	return c
}

// RecordIngestSuccess は取り込み成功を記録する。
func (c *Collector) RecordIngestSuccess() {
	c.ingestSuccess.Inc()
}

// RecordIngestFailure はエラーコード別の取り込み失敗を記録する。
func (c *Collector) RecordIngestFailure(code string) {
	c.ingestFail.WithLabelValues(code).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordEpisodesInserted は保存されたエピソード数を記録する。
func (c *Collector) RecordEpisodesInserted(count int) {
	c.episodesInserted.Add(float64(count))
}

// RecordEpisodesDropped は除外されたエピソード数を記録する。
func (c *Collector) RecordEpisodesDropped(count int) {
	c.episodesDropped.Add(float64(count))
}

// RecordIngestLatency は取り込み全体のレイテンシを記録する。
func (c *Collector) RecordIngestLatency(duration time.Duration) {
	c.ingestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
