// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/storeadmin/internal/model"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	// ResultNotConfigured はSession Store未設定によるログイン拒否を表す。
	ResultNotConfigured = "not_configured"

	OutcomeOK               = "ok"
	OutcomeEmpty            = "empty"
	OutcomeFault            = "fault"
	OutcomeNotAuthenticated = "not_authenticated"
	OutcomeStale            = "stale"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッション管理と一覧の読み込みから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	SetSessionActive(active bool)
	RecordDirectoryLoad(outcome string, duration time.Duration)
	SetDirectoryEntries(count int)
	RecordStoreFault(collection string, kind model.FaultKind)
	RecordDirectoryDelete(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginTotal       *prometheus.CounterVec
	sessionActive    prometheus.Gauge
	loadTotal        *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	directoryEntries prometheus.Gauge
	storeFaults      *prometheus.CounterVec
	deleteTotal      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeadmin_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storeadmin_session_active",
			Help: "管理者セッションが有効な場合は1",
		}),
		loadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeadmin_directory_load_total",
			Help: "結果別のユーザー一覧読み込み数",
		}, []string{"outcome"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storeadmin_directory_load_duration_seconds",
			Help:    "ユーザー一覧読み込みの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		directoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storeadmin_directory_entries",
			Help: "直近に反映されたユーザー一覧の件数",
		}),
		storeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeadmin_store_fault_total",
			Help: "テーブル・分類別のストアエラー数",
		}, []string{"collection", "kind"}),
		deleteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeadmin_directory_delete_total",
			Help: "結果別のユーザー削除数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.loginTotal,
		c.sessionActive,
		c.loadTotal,
		c.loadDuration,
		c.directoryEntries,
		c.storeFaults,
		c.deleteTotal,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.loginTotal.WithLabelValues(result).Inc()
}

// SetSessionActive はセッションの有無を記録する。
func (c *Collector) SetSessionActive(active bool) {
	if active {
		c.sessionActive.Set(1)
		return
	}
	c.sessionActive.Set(0)
}

// RecordDirectoryLoad は一覧読み込みの結果と所要時間を記録する。
func (c *Collector) RecordDirectoryLoad(outcome string, duration time.Duration) {
	c.loadTotal.WithLabelValues(outcome).Inc()
	c.loadDuration.Observe(duration.Seconds())
}

// SetDirectoryEntries は反映された一覧の件数を記録する。
func (c *Collector) SetDirectoryEntries(count int) {
	c.directoryEntries.Set(float64(count))
}

// RecordStoreFault は分類済みのストアエラーを記録する。
func (c *Collector) RecordStoreFault(collection string, kind model.FaultKind) {
	c.storeFaults.WithLabelValues(collection, string(kind)).Inc()
}

// RecordDirectoryDelete はユーザー削除の結果を記録する。
func (c *Collector) RecordDirectoryDelete(result string) {
	c.deleteTotal.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string) {}
func (Nop) SetSessionActive(bool) {}
func (Nop) RecordDirectoryLoad(string, time.Duration) {}
func (Nop) SetDirectoryEntries(int) {}
func (Nop) RecordStoreFault(string, model.FaultKind) {}
func (Nop) RecordDirectoryDelete(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
