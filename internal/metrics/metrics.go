// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログインコールバックの結果ラベル。
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidState     = "invalid_state"
	OutcomeMissingCode      = "missing_code"
	OutcomeEmailNotVerified = "email_not_verified"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeInternalError    = "internal_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ミドルウェア、IdPクライアントから利用する。
type MetricsCollector interface {
	RecordLoginStarted()
	RecordLoginCallback(outcome string)
	RecordUserCreated()
	RecordSessionCheck(status string)
	RecordProviderLatency(step string, d time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginStarted    prometheus.Counter
	loginCallback   *prometheus.CounterVec
	usersCreated    prometheus.Counter
	sessionCheck    *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todaylaw_login_started_total",
			Help: "ログイン開始（IdPへのリダイレクト）の合計数",
		}),
		loginCallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todaylaw_login_callback_total",
			Help: "OAuthコールバックの結果別の合計数",
		}, []string{"outcome"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todaylaw_users_created_total",
			Help: "新規作成されたユーザープロフィールの合計数",
		}),
		sessionCheck: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todaylaw_session_check_total",
			Help: "セッショントークン検証の結果別の合計数",
		}, []string{"status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todaylaw_provider_request_duration_seconds",
			Help:    "IdP呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todaylaw_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginStarted,
		c.loginCallback,
		c.usersCreated,
		c.sessionCheck,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordLoginStarted はログイン開始を記録する。
func (c *Collector) RecordLoginStarted() {
	c.loginStarted.Inc()
}

// RecordLoginCallback はコールバックの結果を記録する。
func (c *Collector) RecordLoginCallback(outcome string) {
	c.loginCallback.WithLabelValues(outcome).Inc()
}

// RecordUserCreated は新規プロフィール作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordSessionCheck はトークン検証結果を記録する。
func (c *Collector) RecordSessionCheck(status string) {
	c.sessionCheck.WithLabelValues(status).Inc()
}

// RecordProviderLatency はIdP呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(step string, d time.Duration) {
	c.providerLatency.WithLabelValues(step).Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordLoginStarted()                          {}
func (NopCollector) RecordLoginCallback(string)                   {}
func (NopCollector) RecordUserCreated()                           {}
func (NopCollector) RecordSessionCheck(string)                    {}
func (NopCollector) RecordProviderLatency(string, time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
