package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequestsTotal counts calls made to the job-search backend.
	// route is the path template, code is the status or "error" on transport failure.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatcher_backend_requests_total",
			Help: "Total number of requests sent to the job-search backend.",
		},
		[]string{"route", "method", "code"},
	)

	// StoreOperationsTotal counts saved-search store operations by outcome kind.
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatcher_store_operations_total",
			Help: "Total number of saved-search store operations.",
		},
		[]string{"operation", "outcome"},
	)

	// SchedulerPollsTotal counts scheduler status polls: ok, failed, skipped or discarded.
	SchedulerPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatcher_scheduler_polls_total",
			Help: "Total number of scheduler status polls.",
		},
		[]string{"outcome"},
	)

	// HttpRequestsTotal counts requests served by the local API.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatcher_http_requests_total",
			Help: "Total number of http requests handled by the local API.",
		},
		[]string{"path", "method", "code"},
	)
)
