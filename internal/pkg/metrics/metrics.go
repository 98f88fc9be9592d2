package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 予約確定の結果ラベル
const (
	OutcomeSuccess        = "success"
	OutcomeConflict       = "conflict"
	OutcomeRejected       = "rejected"
	OutcomeLockFailed     = "lock_failed"
	OutcomeCommitFailed   = "commit_failed"
	OutcomeLedgerDegraded = "ledger_unavailable"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約確定の総数（outcome: success, conflict, rejected, lock_failed, commit_failed）
	BookingsTotal *prometheus.CounterVec

	// 予約確定処理の所要時間（outcome）
	BookingCommitDuration *prometheus.HistogramVec

	// 分散ロック取得までの時間（status: acquired, contended, error）
	DistributedLockDuration *prometheus.HistogramVec

	// レシート出力の総数（sink, status: success, failed）
	ReceiptExportsTotal *prometheus.CounterVec

	// キャッシュ済み残数と台帳から導出した残数の差（musical）
	InventoryDrift *prometheus.GaugeVec

	// 進行中の座席選択セッション数
	ActiveSelections prometheus.Gauge
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
				Help: "Total number of booking commit attempts",
			},
			[]string{"outcome"},
		),
		BookingCommitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "booking_commit_duration_seconds",
				Help:    "Time spent committing a booking",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent acquiring distributed seat locks",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"status"},
		),
		ReceiptExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_exports_total",
				Help: "Total number of receipt exports",
			},
			[]string{"sink", "status"},
		),
		InventoryDrift: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inventory_drift_tickets",
				Help: "Cached available tickets minus tickets derived from the booking ledger",
			},
			[]string{"musical"},
		),
		ActiveSelections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_seat_selections",
				Help: "Current number of open seat selection sessions",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.BookingCommitDuration,
		m.DistributedLockDuration,
		m.ReceiptExportsTotal,
		m.InventoryDrift,
		m.ActiveSelections,
	)

	return m
}

// 以下の記録用メソッドは未初期化（nil）でも呼び出せる

// RecordBooking は予約確定の結果と所要時間を記録する
func (m *Metrics) RecordBooking(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(outcome).Inc()
	m.BookingCommitDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveLockDuration はロック取得までの時間を記録する
func (m *Metrics) ObserveLockDuration(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordReceiptExport はレシート出力の結果を記録する
func (m *Metrics) RecordReceiptExport(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.ReceiptExportsTotal.WithLabelValues(sink, status).Inc()
}

// SetInventoryDrift は残数の差異を記録する
func (m *Metrics) SetInventoryDrift(musical string, delta int) {
	if m == nil {
		return
	}
	m.InventoryDrift.WithLabelValues(musical).Set(float64(delta))
}

// SetActiveSelections は進行中の選択セッション数を記録する
func (m *Metrics) SetActiveSelections(n int) {
	if m == nil {
		return
	}
	m.ActiveSelections.Set(float64(n))
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
