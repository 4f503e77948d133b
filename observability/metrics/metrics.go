package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission and query counters served on /metrics. Rejections are labelled
// by reason so operators can tell a fee-policy problem from a flood of
// replays.
var (
	TransactionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "mempool",
		Name:      "transactions_accepted_total",
		Help:      "Transactions admitted to the mempool.",
	})

	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "mempool",
		Name:      "transactions_rejected_total",
		Help:      "Transactions rejected at admission, by reason.",
	}, []string{"reason"})

	QueryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "rpc",
		Name:      "query_requests_total",
		Help:      "Read queries served, by endpoint and status.",
	}, []string{"endpoint", "status"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quarry",
		Subsystem: "rpc",
		Name:      "query_duration_seconds",
		Help:      "Read query latency, by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)
