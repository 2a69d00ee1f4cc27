// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はAPIクライアントのメトリクス収集インターフェース。
type Recorder interface {
	RecordRequest(method string, statusCode int)
	RecordLatency(duration time.Duration)
	RecordRetry()
	RecordTimeout()
}

// Noop は何も記録しないRecorder。メトリクス不要な呼び出し元やテストで使用する。
type Noop struct{}

// RecordRequest は何もしない。
func (Noop) RecordRequest(method string, statusCode int) {}

// RecordLatency は何もしない。
func (Noop) RecordLatency(duration time.Duration) {}

// RecordRetry は何もしない。
func (Noop) RecordRetry() {}

// RecordTimeout は何もしない。
func (Noop) RecordTimeout() {}

// Collector はPrometheusメトリクスを収集するRecorderの実装。
type Collector struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
	retries  prometheus.Counter
	timeouts prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nekomap_api_requests_total",
			Help: "HTTPメソッド・ステータスコード別のAPIリクエスト数",
		}, []string{"method", "status_code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nekomap_api_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nekomap_api_retries_total",
			Help: "リトライ実行の合計数",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nekomap_api_timeouts_total",
			Help: "タイムアウトしたリクエストの合計数",
		}),
	}

	reg.MustRegister(c.requests, c.latency, c.retries, c.timeouts)

	return c
}

// RecordRequest はリクエストの完了をメソッドとステータスコード別に記録する。
func (c *Collector) RecordRequest(method string, statusCode int) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordLatency(duration time.Duration) {
	c.latency.Observe(duration.Seconds())
}

// RecordRetry はリトライの実行を記録する。
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

// RecordTimeout はタイムアウトの発生を記録する。
func (c *Collector) RecordTimeout() {
	c.timeouts.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ウォッチモードでのPrometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
