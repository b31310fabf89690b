// Package metrics defines the Prometheus instruments exported on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "haybase_http_requests_total",
	Help: "HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "status"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "haybase_http_request_duration_seconds",
	Help:    "HTTP request latency by route pattern.",
	Buckets: prometheus.DefBuckets,
}, []string{"route"})

var MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "haybase_ledger_mutations_total",
	Help: "Successful ledger mutations by entity and verb.",
}, []string{"entity", "verb"})

var BalanceComputations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "haybase_balance_computations_total",
	Help: "Balance aggregation runs (dashboard, plan, wealth).",
})

var SnapshotsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "haybase_wealth_snapshots_recorded_total",
	Help: "Wealth snapshots recorded by the snapshot worker.",
})
