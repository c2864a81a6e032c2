// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証操作の種別。
const (
	OperationSignup  = "signup"
	OperationLogin   = "login"
	OperationRefresh = "refresh"
	OperationLogout  = "logout"
)

// DecisionAllow はセッション検証が許可されたことを表すラベル値。
const DecisionAllow = "allow"

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(operation, outcome string)
	RecordSessionDecision(decision string)
	RecordHTTPStatus(statusCode int)
	RecordAskLatency(duration time.Duration)
	RecordAskFailure(reason string)
	RecordRevocationsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts       *prometheus.CounterVec
	sessionDecisions   *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	askLatency         prometheus.Histogram
	askFail            *prometheus.CounterVec
	revocationsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govqa_auth_attempts_total",
			Help: "認証操作の結果別の合計数",
		}, []string{"operation", "outcome"}),
		sessionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govqa_session_decisions_total",
			Help: "セッション検証の判定結果（allowまたは拒否理由）別の合計数",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govqa_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		askLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "govqa_ask_latency_seconds",
			Help:    "QAバックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		askFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govqa_ask_fail_total",
			Help: "QAバックエンド呼び出し失敗の理由別の合計数",
		}, []string{"reason"}),
		revocationsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "govqa_revocations_cleaned_total",
			Help: "削除された期限切れ失効記録の合計数",
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.sessionDecisions,
		c.httpStatus,
		c.askLatency,
		c.askFail,
		c.revocationsCleaned,
	)

	return c
}

// RecordAuthAttempt は認証操作の結果を記録する。
func (c *Collector) RecordAuthAttempt(operation, outcome string) {
	c.authAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionDecision はセッション検証の判定結果を記録する。
func (c *Collector) RecordSessionDecision(decision string) {
	c.sessionDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAskLatency はQAバックエンド呼び出しのレイテンシを記録する。
func (c *Collector) RecordAskLatency(duration time.Duration) {
	c.askLatency.Observe(duration.Seconds())
}

// RecordAskFailure はQAバックエンド呼び出しの失敗を記録する。
func (c *Collector) RecordAskFailure(reason string) {
	c.askFail.WithLabelValues(reason).Inc()
}

// RecordRevocationsCleaned は削除された失効記録数を記録する。
func (c *Collector) RecordRevocationsCleaned(count int64) {
	c.revocationsCleaned.Add(float64(count))
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

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordAuthAttempt(string, string) {}
func (Nop) RecordSessionDecision(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordAskLatency(time.Duration) {}
func (Nop) RecordAskFailure(string) {}
func (Nop) RecordRevocationsCleaned(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
