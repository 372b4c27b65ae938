// Package metrics exposes Prometheus collectors for backend traffic and
// payload normalization.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BackendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examreports",
			Name:      "backend_requests_total",
			Help:      "Total number of backend requests",
		},
		[]string{"endpoint", "status"},
	)

	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "examreports",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend requests",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	ShapeMismatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examreports",
			Name:      "shape_mismatches_total",
			Help:      "Responses whose envelope matched none of the known layouts",
		},
		[]string{"endpoint"},
	)

	StaleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examreports",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request superseded them",
		},
		[]string{"channel"},
	)

	CSVExports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "examreports",
			Name:      "csv_exports_total",
			Help:      "Total number of user report CSV exports",
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with reg. Only the first call has effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(BackendRequests, BackendDuration, ShapeMismatches, StaleResponses, CSVExports)
	})
}

// ObserveRequest records one backend request. status 0 means the backend
// was unreachable.
func ObserveRequest(endpoint string, status int, d time.Duration) {
	BackendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	BackendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
