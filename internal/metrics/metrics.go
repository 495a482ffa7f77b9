// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル。
const (
	AuthResultSuccess        = "success"
	AuthResultBadCredentials = "bad_credentials"
	AuthResultError          = "error"
)

// トークン発行理由のラベル。
const (
	TokenReasonLogin          = "login"
	TokenReasonRegister       = "register"
	TokenReasonPasswordChange = "password_change"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(result string)
	RecordTokenIssued(reason string)
	RecordWebhookEvent(kind, outcome string)
	RecordWebhookLatency(duration time.Duration)
	RecordWebhookEventsPruned(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts   *prometheus.CounterVec
	tokensIssued   *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	webhookLatency prometheus.Histogram
	eventsPruned   prometheus.Counter
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ainotes_auth_attempts_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"result"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ainotes_tokens_issued_total",
			Help: "発行したセッショントークンの理由別の合計数",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ainotes_webhook_events_total",
			Help: "受信したWebhookイベントの種別・処理結果別の合計数",
		}, []string{"type", "outcome"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ainotes_webhook_processing_seconds",
			Help:    "Webhookイベント処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		eventsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ainotes_webhook_events_pruned_total",
			Help: "保持期間超過で削除したWebhookイベント記録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ainotes_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.tokensIssued,
		c.webhookEvents,
		c.webhookLatency,
		c.eventsPruned,
		c.httpStatus,
	)

	return c
}

// RecordAuthAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(result string) {
	c.authAttempts.WithLabelValues(result).Inc()
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued(reason string) {
	c.tokensIssued.WithLabelValues(reason).Inc()
}

// RecordWebhookEvent はWebhookイベントの処理結果を記録する。
// kindには内部のイベント種別名を渡し、プロバイダーの生の種別文字列は渡さない。
func (c *Collector) RecordWebhookEvent(kind, outcome string) {
	c.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordWebhookLatency はWebhook処理のレイテンシを記録する。
func (c *Collector) RecordWebhookLatency(duration time.Duration) {
	c.webhookLatency.Observe(duration.Seconds())
}

// RecordWebhookEventsPruned は削除したWebhookイベント記録数を記録する。
func (c *Collector) RecordWebhookEventsPruned(count int64) {
	c.eventsPruned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordAuthAttempt(string) {}
func (Nop) RecordTokenIssued(string) {}
func (Nop) RecordWebhookEvent(string, string) {}
func (Nop) RecordWebhookLatency(time.Duration) {}
func (Nop) RecordWebhookEventsPruned(int64) {}
func (Nop) RecordHTTPStatus(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
