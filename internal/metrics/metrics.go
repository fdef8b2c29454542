// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、APIクライアント、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(result string)
	RecordRegistration(result string)
	ObserveRemoteRequest(method string, status int, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts   *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	remoteRequests *prometheus.CounterVec
	remoteLatency  prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalaya_auth_attempts_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalaya_registrations_total",
			Help: "アカウント登録の結果別の合計数",
		}, []string{"result"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalaya_remote_api_requests_total",
			Help: "バックエンドAPI呼び出しのメソッド・ステータス別の合計数",
		}, []string{"method", "status"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalaya_remote_api_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalaya_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.registrations,
		c.remoteRequests,
		c.remoteLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(result string) {
	c.authAttempts.WithLabelValues(result).Inc()
}

// RecordRegistration は登録の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// ObserveRemoteRequest はバックエンドAPI呼び出しを記録する。
// 通信に失敗した場合の status は0で、"error" として記録する。
func (c *Collector) ObserveRemoteRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.remoteRequests.WithLabelValues(method, label).Inc()
	c.remoteLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーは500にせず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
