package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// サーガ操作の総数（operation: create/confirm/cancel, result: success/エラー種別）
	BookingsTotal *prometheus.CounterVec

	// 補償処理の実行数（step: create/cancel/expire/reconcile, result: success/failed/skipped）
	CompensationsTotal *prometheus.CounterVec

	// 在庫と予約レコードの食い違いを検出した回数（operation: confirm/reconcile）
	SagaInconsistenciesTotal *prometheus.CounterVec

	// イベント発行の失敗数（topic, reason: buffer_full/publish_error）
	EventPublishFailuresTotal *prometheus.CounterVec

	// 在庫サービス呼び出しのレイテンシ（method, status）
	InventoryCallDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 期限切れにした予約の総数
	BookingsExpiredTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking saga executions",
			},
			[]string{"operation", "result"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saga_compensations_total",
				Help: "Total number of seat release compensations",
			},
			[]string{"step", "result"},
		),
		SagaInconsistenciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saga_inconsistencies_total",
				Help: "Total number of detected mismatches between inventory and booking records",
			},
			[]string{"operation"},
		),
		EventPublishFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_publish_failures_total",
				Help: "Total number of domain events that could not be published",
			},
			[]string{"topic", "reason"},
		),
		InventoryCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_call_duration_seconds",
				Help:    "Latency of inventory service calls",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		BookingsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bookings_expired_total",
				Help: "Total number of pending bookings moved to EXPIRED",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.CompensationsTotal,
		m.SagaInconsistenciesTotal,
		m.EventPublishFailuresTotal,
		m.InventoryCallDuration,
		m.DistributedLockDuration,
		m.BookingsExpiredTotal,
	)

	return m
}

// NewNop は登録先を持たないメトリクスを返す（テスト用）
func NewNop() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
