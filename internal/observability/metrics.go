package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "double_take",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	FacesListed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "double_take",
		Name:      "faces_listed_total",
		Help:      "Total number of unknown faces returned by listing requests",
	})

	TrainingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "double_take",
		Name:      "training_requests_total",
		Help:      "Total tag/train requests by action and outcome",
	}, []string{"action", "outcome"})

	ProviderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "double_take",
		Name:      "provider_errors_total",
		Help:      "Total failed calls to the face recognition provider",
	})
)
