package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quill_requests_enqueued_total",
		Help: "Total number of requests placed on the outbound queue.",
	})

	resultsDrained = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quill_results_drained_total",
		Help: "Total number of result envelopes dispatched to callbacks.",
	})

	workersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quill_workers",
		Help: "Number of workers created by the pool.",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quill_queue_depth",
		Help: "Requests currently waiting on the outbound queue.",
	})

	saturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quill_pool_saturation",
		Help: "Pending outbound requests divided by the worker limit.",
	})
)

func init() {
	prometheus.MustRegister(requestsEnqueued)
	prometheus.MustRegister(resultsDrained)
	prometheus.MustRegister(workersGauge)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(saturation)
}
