// Package metrics provides Prometheus metrics for meter reading uploads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/septivank/meter-reading-uploads/internal/upload"
)

// Outcome labels for UploadsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
)

// Metrics holds all Prometheus metrics for the upload service.
type Metrics struct {
	UploadsTotal   *prometheus.CounterVec
	RowsTotal      *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	UploadRows     prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the upload metrics on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meter_uploads"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Total number of CSV uploads processed",
			},
			[]string{"outcome"},
		),
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of data rows processed",
			},
			[]string{"result"},
		),
		UploadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Time to process one upload",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		UploadRows: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_rows",
				Help:      "Number of data rows per upload",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~260k
			},
		),
		gatherer: reg,
	}
}

// ObserveUpload records a finished upload. A nil receiver is a no-op.
func (m *Metrics) ObserveUpload(result *upload.Result, duration time.Duration) {
	if m == nil || result == nil {
		return
	}

	outcome := OutcomeCompleted
	if result.TotalProcessed == 0 && len(result.Errors) > 0 {
		outcome = OutcomeRejected
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
	m.RowsTotal.WithLabelValues("successful").Add(float64(result.Successful))
	m.RowsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	m.UploadDuration.Observe(duration.Seconds())
	m.UploadRows.Observe(float64(result.TotalProcessed))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
