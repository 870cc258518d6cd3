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

	// 座席保留の試行数（result: created, renewed, conflict, booked, error）
	SeatHoldsTotal *prometheus.CounterVec

	// 注文作成・状態遷移の数（result: created, completed, canceled, failed, conflict, rejected, error）
	OrdersTotal *prometheus.CounterVec

	// 発券数（status: pending_payment, booked, cancelled）
	TicketsTotal *prometheus.CounterVec

	// トランザクションの所要時間（operation）
	DBTxDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 掃除ワーカーが処理した件数（kind: orders, holds）
	SweptTotal *prometheus.CounterVec
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
		SeatHoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_holds_total",
				Help: "Total number of seat hold attempts",
			},
			[]string{"result"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_total",
				Help: "Total number of order creations and transitions",
			},
			[]string{"result"},
		),
		TicketsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickets_total",
				Help: "Total number of ticket status changes",
			},
			[]string{"status"},
		),
		DBTxDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_tx_duration_seconds",
				Help:    "Duration of checkout database transactions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swept_records_total",
				Help: "Records cleaned up by the sweeper worker",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SeatHoldsTotal,
		m.OrdersTotal,
		m.TicketsTotal,
		m.DBTxDuration,
		m.DistributedLockDuration,
		m.SweptTotal,
	)

	return m
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

// IncHold は nil 安全に保留結果を記録する
func (m *Metrics) IncHold(result string) {
	if m == nil {
		return
	}
	m.SeatHoldsTotal.WithLabelValues(result).Inc()
}

// IncOrder は nil 安全に注文結果を記録する
func (m *Metrics) IncOrder(result string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(result).Inc()
}

// AddTickets は nil 安全に発券数を記録する
func (m *Metrics) AddTickets(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TicketsTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveTx は nil 安全にトランザクション時間を記録する
func (m *Metrics) ObserveTx(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.DBTxDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveLock は nil 安全にロック操作時間を記録する
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}

// AddSwept は nil 安全に掃除件数を記録する
func (m *Metrics) AddSwept(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptTotal.WithLabelValues(kind).Add(float64(n))
}
