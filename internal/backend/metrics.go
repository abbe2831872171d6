package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trtd",
			Subsystem: "backend",
			Name:      "submissions_total",
			Help:      "Total request submissions by outcome",
		},
		[]string{"outcome"},
	)

	generatedTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trtd",
			Subsystem: "backend",
			Name:      "generated_tokens_total",
			Help:      "Total tokens emitted to callers",
		},
	)

	streamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trtd",
			Subsystem: "backend",
			Name:      "stream_errors_total",
			Help:      "Total generation streams terminated by an executor error",
		},
	)

	inflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trtd",
			Subsystem: "backend",
			Name:      "inflight_requests",
			Help:      "Requests submitted and not yet fully drained",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, generatedTokensTotal, streamErrorsTotal, inflightRequests)
}
