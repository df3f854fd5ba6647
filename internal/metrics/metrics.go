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
// 認証・監査ログ・ゲートキーパー・ワーカーから利用する。
type MetricsCollector interface {
	RecordIdentityCacheHit()
	RecordIdentityCacheMiss()
	RecordAuditEntry(kind string)
	RecordGatekeeperOutcome(outcome string)
	RecordActionResult(action, kind string)
	RecordEmailSent(template string, success bool)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(deleted int64, duration time.Duration)
}

var _ MetricsCollector = (*Collector)(nil) // compile-time interface check

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit        prometheus.Counter
	cacheMiss       prometheus.Counter
	auditEntries    *prometheus.CounterVec
	gateOutcomes    *prometheus.CounterVec
	actionResults   *prometheus.CounterVec
	emailsSent      *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	cleanupDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mjeti360_identity_cache_hit_total",
			Help: "アイデンティティキャッシュのヒット数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mjeti360_identity_cache_miss_total",
			Help: "アイデンティティキャッシュのミス数",
		}),
		auditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mjeti360_audit_entries_total",
			Help: "種別ごとの監査ログ記録数",
		}, []string{"kind"}),
		gateOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mjeti360_gatekeeper_outcomes_total",
			Help: "ゲートキーパーの判定結果別のリクエスト数",
		}, []string{"outcome"}),
		actionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mjeti360_action_results_total",
			Help: "アクションの結果種別ごとの実行数",
		}, []string{"action", "kind"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mjeti360_emails_sent_total",
			Help: "テンプレート・結果別のメール送信数",
		}, []string{"template", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mjeti360_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mjeti360_cleanup_deleted_total",
			Help: "クリーンアップで削除された期限切れトークンの合計数",
		}),
		cleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mjeti360_cleanup_duration_seconds",
			Help:    "クリーンアップジョブの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.auditEntries,
		c.gateOutcomes,
		c.actionResults,
		c.emailsSent,
		c.httpStatus,
		c.cleanupDeleted,
		c.cleanupDuration,
	)

	return c
}

// RecordIdentityCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordIdentityCacheHit() {
	c.cacheHit.Inc()
}

// RecordIdentityCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordIdentityCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordAuditEntry は監査ログの記録を種別ごとに数える。
func (c *Collector) RecordAuditEntry(kind string) {
	c.auditEntries.WithLabelValues(kind).Inc()
}

// RecordGatekeeperOutcome はゲートキーパーの判定結果を記録する。
func (c *Collector) RecordGatekeeperOutcome(outcome string) {
	c.gateOutcomes.WithLabelValues(outcome).Inc()
}

// RecordActionResult はアクションの結果種別を記録する。
func (c *Collector) RecordActionResult(action, kind string) {
	c.actionResults.WithLabelValues(action, kind).Inc()
}

// RecordEmailSent はメール送信の成否を記録する。
func (c *Collector) RecordEmailSent(template string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.emailsSent.WithLabelValues(template, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップジョブの削除件数と所要時間を記録する。
func (c *Collector) RecordCleanup(deleted int64, duration time.Duration) {
	c.cleanupDeleted.Add(float64(deleted))
	c.cleanupDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを登録したServeMuxを返す。
// APIサーバーを持たないワーカーが単独でメトリクスを公開する場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
