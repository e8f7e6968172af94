package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rsmcp_build_info",
			Help: "Build information of the warehouse MCP server",
		},
		[]string{"version", "commit", "date"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsmcp_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool", "outcome"},
	)

	ResourceReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsmcp_resource_reads_total",
			Help: "Total number of resource reads",
		},
		[]string{"kind", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rsmcp_request_duration_seconds",
			Help:    "Duration of requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
		[]string{"method"},
	)
)

// Outcome maps a failure flag to the outcome label.
func Outcome(failed bool) string {
	if failed {
		return OutcomeError
	}
	return OutcomeOK
}

// RegisterPool exports connection pool gauges read from stat at scrape time.
func RegisterPool(reg prometheus.Registerer, stat func() *pgxpool.Stat) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rsmcp_pool_acquired_conns",
		Help: "Connections currently borrowed from the pool",
	}, func() float64 { return float64(stat().AcquiredConns()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rsmcp_pool_idle_conns",
		Help: "Idle connections in the pool",
	}, func() float64 { return float64(stat().IdleConns()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rsmcp_pool_total_conns",
		Help: "Total connections in the pool",
	}, func() float64 { return float64(stat().TotalConns()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "rsmcp_pool_empty_acquire_total",
		Help: "Acquires that had to wait for a connection",
	}, func() float64 { return float64(stat().EmptyAcquireCount()) })
}
